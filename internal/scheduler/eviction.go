// Package scheduler runs periodic maintenance for the correlation store.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/metrics"
)

// Evictor removes results that arrived before a cutoff.
type Evictor interface {
	Evict(ctx context.Context, olderThan time.Time) (int, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// EvictionSweep drops results nobody collected within the TTL.
type EvictionSweep struct {
	store    Evictor
	ttl      time.Duration
	schedule cron.Schedule
	logger   *zap.Logger
	now      func() time.Time
}

// NewEvictionSweep parses the cron expression (5-field or @every descriptor)
// and returns a sweep that evicts results older than ttl.
func NewEvictionSweep(store Evictor, ttl time.Duration, expr string, logger *zap.Logger) (*EvictionSweep, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("scheduler: eviction ttl must be positive, got %s", ttl)
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse schedule %q: %w", expr, err)
	}
	return &EvictionSweep{
		store:    store,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Sweep runs one eviction pass.
func (s *EvictionSweep) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.store.Evict(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scheduler: evict: %w", err)
	}
	if n > 0 {
		metrics.EvictedResults.Add(float64(n))
		s.logger.Info("Evicted abandoned results",
			zap.Int("count", n),
			zap.Time("cutoff", cutoff),
		)
	}
	return n, nil
}

// Next returns the next time the sweep fires after t.
func (s *EvictionSweep) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run fires the sweep on its schedule until ctx is cancelled and any running
// pass has finished.
func (s *EvictionSweep) Run(ctx context.Context) error {
	c := cron.New(cron.WithParser(parser))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Warn("Eviction sweep failed", zap.Error(err))
		}
	}))

	s.logger.Info("Eviction sweep started",
		zap.Duration("ttl", s.ttl),
		zap.Time("next_run", s.Next(time.Now())),
	)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Eviction sweep stopped")
	return nil
}
