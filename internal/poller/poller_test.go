package poller_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/poller"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var processing = &domain.StatusResponse{Status: domain.JobStatusProcessing, Message: "Analysis still in progress"}

func completed(jobID string) *domain.StatusResponse {
	return &domain.StatusResponse{
		Status: domain.JobStatusCompleted,
		Result: &domain.AnalysisResult{JobID: jobID, Verdict: "phishing", Score: "9"},
	}
}

// scripted answers each check with the next response; the last one repeats.
func scripted(calls *atomic.Int32, answers ...func() (*domain.StatusResponse, error)) poller.StatusCheckerFunc {
	return func(_ context.Context, _ string) (*domain.StatusResponse, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(answers) {
			n = len(answers) - 1
		}
		return answers[n]()
	}
}

func answer(resp *domain.StatusResponse, err error) func() (*domain.StatusResponse, error) {
	return func() (*domain.StatusResponse, error) { return resp, err }
}

func TestPoll_CompletesOnFirstAttempt(t *testing.T) {
	var calls atomic.Int32
	p := poller.New(scripted(&calls, answer(completed("job_1"), nil)), zap.NewNop())

	start := time.Now()
	res, err := p.Poll(context.Background(), "job_1", poller.Policy{MaxAttempts: 5, Interval: time.Second})
	require.NoError(t, err)
	require.Equal(t, "job_1", res.JobID)
	require.Equal(t, domain.Score("9"), res.Score)
	require.Equal(t, int32(1), calls.Load())
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPoll_CompletesAfterProcessing(t *testing.T) {
	var calls atomic.Int32
	p := poller.New(scripted(&calls,
		answer(processing, nil),
		answer(processing, nil),
		answer(completed("job_1"), nil),
	), zap.NewNop())

	res, err := p.Poll(context.Background(), "job_1", poller.Policy{MaxAttempts: 10, Interval: 5 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, "phishing", res.Verdict)
	require.Equal(t, int32(3), calls.Load())
}

func TestPoll_TimesOutNoEarlierThanBudget(t *testing.T) {
	var calls atomic.Int32
	p := poller.New(scripted(&calls, answer(processing, nil)), zap.NewNop())

	start := time.Now()
	_, err := p.Poll(context.Background(), "job_1", poller.Policy{MaxAttempts: 3, Interval: 10 * time.Millisecond})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, domain.ErrPollTimeout)
	require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	require.Equal(t, int32(3), calls.Load())
}

func TestPoll_TransientErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	p := poller.New(scripted(&calls,
		answer(nil, errors.New("connection reset")),
		answer(completed("job_1"), nil),
	), zap.NewNop())

	res, err := p.Poll(context.Background(), "job_1", poller.Policy{MaxAttempts: 3, Interval: 5 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, "job_1", res.JobID)
}

func TestPoll_ErrorOnLastAttemptIsReturned(t *testing.T) {
	cause := errors.New("server unavailable")
	var calls atomic.Int32
	p := poller.New(scripted(&calls,
		answer(processing, nil),
		answer(nil, cause),
	), zap.NewNop())

	_, err := p.Poll(context.Background(), "job_1", poller.Policy{MaxAttempts: 2, Interval: 50 * time.Millisecond})
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, domain.ErrPollTimeout)
}

func TestPoll_SlowCheckIsCutOffAtDeadline(t *testing.T) {
	var calls atomic.Int32
	slow := poller.StatusCheckerFunc(func(ctx context.Context, _ string) (*domain.StatusResponse, error) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
			return processing, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	p := poller.New(slow, zap.NewNop())

	start := time.Now()
	_, err := p.Poll(context.Background(), "job_1", poller.Policy{MaxAttempts: 3, Interval: 10 * time.Millisecond})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, domain.ErrPollTimeout)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestPoll_ContextCancelStopsWaiting(t *testing.T) {
	var calls atomic.Int32
	p := poller.New(scripted(&calls, answer(processing, nil)), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Poll(ctx, "job_1", poller.Policy{MaxAttempts: 100, Interval: time.Second})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestPolicy_Defaults(t *testing.T) {
	p := poller.DefaultPolicy()
	require.Equal(t, 60, p.MaxAttempts)
	require.Equal(t, 2*time.Second, p.Interval)
	require.Equal(t, 2*time.Minute, p.Budget())
}
