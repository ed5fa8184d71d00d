package compliance

import (
	"context"
	"sync"

	"driftgate/internal/compliance/metrics"
	id "driftgate/pkg/domain"
)

const defaultRetained = 20

// MemoryStore keeps the most recent finalized reports per repository for the
// query API. The audit trail is the durable record; this is a bounded
// convenience cache.
type MemoryStore struct {
	mu       sync.RWMutex
	retained int
	reports  map[string][]Report
	metrics  *metrics.Metrics
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithMetrics observes each appended report.
func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *MemoryStore) {
		s.metrics = m
	}
}

// NewMemoryStore constructs a store retaining the default number of reports
// per repository.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{retained: defaultRetained, reports: make(map[string][]Report)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append records a finalized report, evicting the oldest beyond the
// retention bound.
func (s *MemoryStore) Append(_ context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := report.Repo.Slug()
	entries := append(s.reports[key], report)
	if len(entries) > s.retained {
		entries = entries[len(entries)-s.retained:]
	}
	s.reports[key] = entries
	if s.metrics != nil {
		s.metrics.ObserveReport(report.OverallPercent, report.OverallDiffs)
	}
	return nil
}

// ListByRepo returns retained reports for one repository, oldest first.
func (s *MemoryStore) ListByRepo(_ context.Context, repo id.RepoRef) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Report{}, s.reports[repo.Slug()]...), nil
}

// Latest returns the most recent report for one repository, or nil.
func (s *MemoryStore) Latest(_ context.Context, repo id.RepoRef) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.reports[repo.Slug()]
	if len(entries) == 0 {
		return nil, nil
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}
