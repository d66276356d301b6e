package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Harsh-BH/threatrelay/internal/domain"
	"github.com/Harsh-BH/threatrelay/internal/repository"
)

// Ensure the mocks implement their interfaces.
var (
	_ repository.ResultStore     = (*MockResultStore)(nil)
	_ repository.EventRepository = (*MockEventRepository)(nil)
)

// MockResultStore is an in-memory mock of the result store for testing.
type MockResultStore struct {
	mu      sync.Mutex
	records map[string]*domain.JobRecord

	// Hook functions for injecting errors
	PutFunc           func(ctx context.Context, jobID string, result *domain.AnalysisResult) error
	TakeIfPresentFunc func(ctx context.Context, jobID string) (*domain.JobRecord, bool, error)
	EvictFunc         func(ctx context.Context, olderThan time.Time) (int, error)

	PutCalls  int
	TakeCalls int
}

// NewMockResultStore creates a new mock result store.
func NewMockResultStore() *MockResultStore {
	return &MockResultStore{
		records: make(map[string]*domain.JobRecord),
	}
}

func (m *MockResultStore) Put(ctx context.Context, jobID string, result *domain.AnalysisResult) error {
	m.mu.Lock()
	m.PutCalls++
	m.mu.Unlock()
	if m.PutFunc != nil {
		return m.PutFunc(ctx, jobID, result)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[jobID] = &domain.JobRecord{JobID: jobID, Result: result, ArrivedAt: time.Now()}
	return nil
}

func (m *MockResultStore) TakeIfPresent(ctx context.Context, jobID string) (*domain.JobRecord, bool, error) {
	m.mu.Lock()
	m.TakeCalls++
	m.mu.Unlock()
	if m.TakeIfPresentFunc != nil {
		return m.TakeIfPresentFunc(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[jobID]
	if ok {
		delete(m.records, jobID)
	}
	return rec, ok, nil
}

func (m *MockResultStore) Evict(ctx context.Context, olderThan time.Time) (int, error) {
	if m.EvictFunc != nil {
		return m.EvictFunc(ctx, olderThan)
	}
	return 0, nil
}

// Get returns a stored record without removing it (for test assertions).
func (m *MockResultStore) Get(jobID string) (*domain.JobRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[jobID]
	return rec, ok
}

// MockEventRepository records appended events for testing.
type MockEventRepository struct {
	mu     sync.Mutex
	events []*domain.Event

	AppendFunc func(ctx context.Context, event *domain.Event) error
	ListFunc   func(ctx context.Context, limit int) ([]*domain.Event, error)
}

// NewMockEventRepository creates a new mock event repository.
func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Append(ctx context.Context, event *domain.Event) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventRepository) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Event, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

// GetAll returns all appended events in order (for test assertions).
func (m *MockEventRepository) GetAll() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}
