package scheduler

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
	"github.com/Harsh-BH/threatrelay/internal/repository/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewEvictionSweep_Validation(t *testing.T) {
	store := mock.NewMockResultStore()

	_, err := NewEvictionSweep(store, 0, "@every 1m", zap.NewNop())
	require.Error(t, err)

	_, err = NewEvictionSweep(store, time.Minute, "not a schedule", zap.NewNop())
	require.Error(t, err)

	s, err := NewEvictionSweep(store, time.Minute, "*/5 * * * *", zap.NewNop())
	require.NoError(t, err)
	base := time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC), s.Next(base))
}

func TestSweep_UsesTTLCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var cutoff time.Time
	store := mock.NewMockResultStore()
	store.EvictFunc = func(_ context.Context, olderThan time.Time) (int, error) {
		cutoff = olderThan
		return 2, nil
	}

	s, err := NewEvictionSweep(store, 10*time.Minute, "@every 1m", zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return now }

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, now.Add(-10*time.Minute), cutoff)
}

func TestSweep_WrapsStoreError(t *testing.T) {
	store := mock.NewMockResultStore()
	store.EvictFunc = func(context.Context, time.Time) (int, error) {
		return 0, domain.ErrStoreUnavailable
	}
	s, err := NewEvictionSweep(store, time.Minute, "@every 1m", zap.NewNop())
	require.NoError(t, err)

	_, err = s.Sweep(context.Background())
	require.True(t, errors.Is(err, domain.ErrTransport))
}

func TestRun_FiresUntilCancelled(t *testing.T) {
	var sweeps atomic.Int32
	store := mock.NewMockResultStore()
	store.EvictFunc = func(context.Context, time.Time) (int, error) {
		sweeps.Add(1)
		return 0, nil
	}
	s, err := NewEvictionSweep(store, time.Minute, "@every 1s", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeps.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
