package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/metrics"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

// Ensure ResultStore implements repository.ResultStore.
var _ repository.ResultStore = (*ResultStore)(nil)

// ResultStore is a process-local correlation store. A single mutex guards the
// map, so a lookup and its delete can never interleave with another take.
type ResultStore struct {
	mu      sync.Mutex
	records map[string]*domain.JobRecord
	now     func() time.Time
}

// NewResultStore creates an empty in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		records: make(map[string]*domain.JobRecord),
		now:     time.Now,
	}
}

func (s *ResultStore) Put(_ context.Context, jobID string, result *domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[jobID] = &domain.JobRecord{
		JobID:     jobID,
		Result:    result,
		ArrivedAt: s.now(),
	}
	metrics.PendingResults.Set(float64(len(s.records)))
	return nil
}

func (s *ResultStore) TakeIfPresent(_ context.Context, jobID string) (*domain.JobRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[jobID]
	if !ok {
		return nil, false, nil
	}
	delete(s.records, jobID)
	metrics.PendingResults.Set(float64(len(s.records)))
	return rec, true, nil
}

func (s *ResultStore) Evict(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.records {
		if rec.ArrivedAt.Before(olderThan) {
			delete(s.records, id)
			n++
		}
	}
	metrics.PendingResults.Set(float64(len(s.records)))
	return n, nil
}

// Len returns the number of stored records.
func (s *ResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Ping always succeeds.
func (s *ResultStore) Ping(context.Context) error { return nil }
