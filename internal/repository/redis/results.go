package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

var _ repository.ResultStore = (*ResultStore)(nil)

const resultKeyPrefix = "threatrelay:result:"

// ResultStore keeps job records as JSON strings under a prefixed key.
type ResultStore struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisResultStore creates a Redis-backed result store. A zero ttl keeps
// records until they are taken.
func NewRedisResultStore(client *goredis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl, now: time.Now}
}

func (r *ResultStore) Put(ctx context.Context, jobID string, result *domain.AnalysisResult) error {
	payload, err := json.Marshal(&domain.JobRecord{
		JobID:     jobID,
		Result:    result,
		ArrivedAt: r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis: encode record: %w", err)
	}
	if err := r.client.Set(ctx, resultKeyPrefix+jobID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis: put result: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// TakeIfPresent relies on GETDEL, which reads and deletes the key in one command.
func (r *ResultStore) TakeIfPresent(ctx context.Context, jobID string) (*domain.JobRecord, bool, error) {
	payload, err := r.client.GetDel(ctx, resultKeyPrefix+jobID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: take result: %w: %w", domain.ErrStoreUnavailable, err)
	}

	rec := &domain.JobRecord{}
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, false, fmt.Errorf("redis: decode record: %w", err)
	}
	return rec, true, nil
}

// Evict is a no-op. Abandoned records expire through the key TTL instead.
func (r *ResultStore) Evict(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *ResultStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
