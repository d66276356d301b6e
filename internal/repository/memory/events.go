package memory

import (
	"context"
	"sync"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

var _ repository.EventRepository = (*EventFeed)(nil)

// EventFeed keeps the most recent events in a fixed-size ring, newest first on read.
type EventFeed struct {
	mu    sync.RWMutex
	ring  []*domain.Event
	next  int
	count int
	byID  map[string]struct{}
}

// NewEventFeed creates a feed that retains at most capacity events.
func NewEventFeed(capacity int) *EventFeed {
	if capacity < 1 {
		capacity = 1
	}
	return &EventFeed{
		ring: make([]*domain.Event, capacity),
		byID: make(map[string]struct{}, capacity),
	}
}

func (f *EventFeed) Append(_ context.Context, event *domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.byID[event.ID]; dup {
		return domain.ErrDuplicateEvent
	}
	if old := f.ring[f.next]; old != nil {
		delete(f.byID, old.ID)
	}
	f.ring[f.next] = event
	f.byID[event.ID] = struct{}{}
	f.next = (f.next + 1) % len(f.ring)
	if f.count < len(f.ring) {
		f.count++
	}
	return nil
}

func (f *EventFeed) List(_ context.Context, limit int) ([]*domain.Event, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > f.count {
		limit = f.count
	}
	out := make([]*domain.Event, 0, limit)
	idx := f.next
	for i := 0; i < limit; i++ {
		idx = (idx - 1 + len(f.ring)) % len(f.ring)
		out = append(out, f.ring[idx])
	}
	return out, nil
}

// Ping always succeeds.
func (f *EventFeed) Ping(context.Context) error { return nil }
