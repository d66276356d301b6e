package repository

import (
	"context"
	"time"

	"github.com/Harsh-BH/threatrelay/internal/domain"
)

// ResultStore correlates asynchronous completions with the jobs waiting on them.
// Implementations must be safe for concurrent use.
type ResultStore interface {
	// Put inserts or overwrites the result for a job id.
	Put(ctx context.Context, jobID string, result *domain.AnalysisResult) error

	// TakeIfPresent atomically returns and removes the record for a job id.
	// Of two concurrent takes for the same id, at most one reports ok.
	TakeIfPresent(ctx context.Context, jobID string) (*domain.JobRecord, bool, error)

	// Evict removes records that arrived before the cutoff and reports how many.
	Evict(ctx context.Context, olderThan time.Time) (int, error)
}

// EventRepository persists the local event feed.
type EventRepository interface {
	// Append adds an event to the feed.
	Append(ctx context.Context, event *domain.Event) error

	// List returns up to limit events, newest first.
	List(ctx context.Context, limit int) ([]*domain.Event, error)
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
