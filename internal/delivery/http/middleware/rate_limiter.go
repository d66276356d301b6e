package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// window tracks one client's requests in the current minute.
type window struct {
	count int
	start time.Time
}

// RateLimiter returns a middleware that enforces per-IP rate limiting with a fixed
// one-minute window. maxRequests <= 0 disables limiting. Stale entries are swept
// until ctx is cancelled.
func RateLimiter(ctx context.Context, maxRequests int) gin.HandlerFunc {
	if maxRequests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var mu sync.Mutex
	clients := make(map[string]*window)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				now := time.Now()
				for ip, w := range clients {
					if now.Sub(w.start) > 2*time.Minute {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	limitMsg := "Rate limit exceeded. Maximum " + strconv.Itoa(maxRequests) + " requests per minute."

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		w, ok := clients[ip]
		if !ok || now.Sub(w.start) > time.Minute {
			clients[ip] = &window{count: 1, start: now}
			mu.Unlock()
			c.Next()
			return
		}

		if w.count >= maxRequests {
			retry := time.Minute - now.Sub(w.start)
			mu.Unlock()
			c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": limitMsg})
			return
		}

		w.count++
		mu.Unlock()
		c.Next()
	}
}
