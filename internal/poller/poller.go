// Package poller turns the status-check boundary into a blocking wait with a deadline.
package poller

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/metrics"
)

// Defaults give a two-minute budget.
const (
	DefaultMaxAttempts = 60
	DefaultInterval    = 2 * time.Second
)

// StatusChecker performs one status check for a job.
type StatusChecker interface {
	CheckStatus(ctx context.Context, jobID string) (*domain.StatusResponse, error)
}

// StatusCheckerFunc adapts a function to StatusChecker.
type StatusCheckerFunc func(ctx context.Context, jobID string) (*domain.StatusResponse, error)

func (f StatusCheckerFunc) CheckStatus(ctx context.Context, jobID string) (*domain.StatusResponse, error) {
	return f(ctx, jobID)
}

// Policy bounds a poll. The worst case wait is MaxAttempts × Interval.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPolicy returns 60 attempts two seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Interval: DefaultInterval}
}

// Budget is the longest a poll with this policy can take.
func (p Policy) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval
}

// Poller repeatedly checks a job's status until it completes or the policy runs out.
type Poller struct {
	checker StatusChecker
	logger  *zap.Logger
}

// New creates a poller over checker.
func New(checker StatusChecker, logger *zap.Logger) *Poller {
	return &Poller{checker: checker, logger: logger}
}

// Poll returns the job's result as soon as a check reports it completed.
// After every check that does not complete it waits Interval, including the last,
// so a timeout is reported no earlier than MaxAttempts × Interval. The same budget
// is a hard deadline: a check still running when it passes is cut off and the poll
// ends with ErrPollTimeout. A check error on the final attempt is returned; earlier
// errors are retried.
func (p *Poller) Poll(ctx context.Context, jobID string, policy Policy) (*domain.AnalysisResult, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	start := time.Now()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	pollCtx := ctx
	if budget := policy.Budget(); budget > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithDeadline(ctx, start.Add(budget))
		defer cancel()
	}
	deadline, _ := pollCtx.Deadline()

	p.logger.Debug("Polling for result",
		zap.String("job_id", jobID),
		zap.Int("max_attempts", policy.MaxAttempts),
		zap.Duration("interval", policy.Interval),
		zap.Time("deadline", deadline),
	)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		resp, err := p.checker.CheckStatus(pollCtx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if pollCtx.Err() != nil {
				return nil, p.timeout(jobID, attempt, start)
			}
			if attempt == policy.MaxAttempts {
				return nil, fmt.Errorf("poll %s: attempt %d: %w", jobID, attempt, err)
			}
			p.logger.Warn("Status check failed, retrying",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		case resp != nil && resp.Status == domain.JobStatusCompleted && resp.Result != nil:
			p.logger.Info("Result received",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.Duration("elapsed", time.Since(start)),
			)
			return resp.Result, nil
		}

		timer := time.NewTimer(policy.Interval)
		select {
		case <-timer.C:
		case <-pollCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, p.timeout(jobID, attempt, start)
		}
	}

	return nil, p.timeout(jobID, policy.MaxAttempts, start)
}

func (p *Poller) timeout(jobID string, attempts int, start time.Time) error {
	p.logger.Warn("Polling timed out",
		zap.String("job_id", jobID),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", time.Since(start)),
	)
	return fmt.Errorf("%w: job %s after %d attempts", domain.ErrPollTimeout, jobID, attempts)
}
