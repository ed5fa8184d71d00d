package optout

import (
	"context"
	"sync"
)

// InMemoryStore is the development and unit-test preference store.
type InMemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]Preference
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{prefs: make(map[string]Preference)}
}

func (s *InMemoryStore) Get(_ context.Context, scope string) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.prefs[scope]
	if !ok {
		return nil, ErrNotFound
	}
	copied := pref
	return &copied, nil
}

func (s *InMemoryStore) Put(_ context.Context, pref Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[pref.Scope] = pref
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prefs[scope]; !ok {
		return ErrNotFound
	}
	delete(s.prefs, scope)
	return nil
}
