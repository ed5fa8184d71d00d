package audit

import (
	"context"
	"sync"

	id "driftgate/pkg/domain"
)

// InMemoryStore keeps events per repository. It backs dev mode and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
	order  []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := event.Repo.Slug()
	s.events[key] = append(s.events[key], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByRepo(_ context.Context, repo id.RepoRef) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[repo.Slug()]...), nil
}

// ListRecent returns the most recent N events across all repositories.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.order) - limit
	if start < 0 {
		start = 0
	}
	return append([]Event{}, s.order[start:]...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]Event)
	s.order = nil
}
