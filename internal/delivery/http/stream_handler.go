package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/orchestrator"
	"github.com/Harsh-BH/threatrelay/internal/poller"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamHandler runs an analysis server-side and streams its state transitions
// over a WebSocket.
type StreamHandler struct {
	dispatcher    orchestrator.Dispatcher
	checker       poller.StatusChecker
	policy        poller.Policy
	publicBaseURL string
	logger        *zap.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(
	dispatcher orchestrator.Dispatcher,
	checker poller.StatusChecker,
	policy poller.Policy,
	publicBaseURL string,
	logger *zap.Logger,
) *StreamHandler {
	return &StreamHandler{
		dispatcher:    dispatcher,
		checker:       checker,
		policy:        policy,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// Stream handles GET /api/v1/analyses/stream?workflow=&target= (WebSocket upgrade)
func (h *StreamHandler) Stream(c *gin.Context) {
	target := c.Query("target")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing target"})
		return
	}
	wf := domain.Workflow(c.DefaultQuery("workflow", string(domain.WorkflowPhishing)))

	o := orchestrator.New(h.dispatcher, h.checker, h.policy, h.logger,
		orchestrator.WithCallbackURL(callbackURL(c, h.publicBaseURL)),
	)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// The run stops early once the client goes away.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("Analysis stream opened", zap.String("workflow", string(wf)))

	out := o.RunObserved(ctx, orchestrator.Submission{Workflow: wf, Target: target},
		orchestrator.ObserverFunc(func(t orchestrator.Transition) {
			if err := conn.WriteJSON(t); err != nil {
				h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
				cancel()
			}
		}),
	)

	if err := conn.WriteJSON(out); err != nil {
		h.logger.Debug("WebSocket write failed (client disconnected)", zap.Error(err))
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(out.State)))
	h.logger.Debug("Analysis stream closed",
		zap.String("job_id", out.JobID),
		zap.String("state", string(out.State)),
	)
}
