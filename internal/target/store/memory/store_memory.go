// Package memory provides the in-memory target store used in development and
// unit tests.
package memory

import (
	"context"
	"sync"

	"driftgate/internal/target"
	"driftgate/internal/target/store"
)

// InMemoryStore keeps targets in a two-level map keyed by scope then
// (kind, name).
type InMemoryStore struct {
	mu     sync.RWMutex
	scopes map[string]map[string]target.Target
}

func New() *InMemoryStore {
	return &InMemoryStore{scopes: make(map[string]map[string]target.Target)}
}

func (s *InMemoryStore) Get(_ context.Context, scope target.Scope, kind, name string) (*target.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.scopes[scope.Key()]
	if !ok {
		return nil, store.ErrNotFound
	}
	t, ok := layer[kind+"::"+name]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := t
	return &copied, nil
}

func (s *InMemoryStore) Set(_ context.Context, scope target.Scope, t target.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	layer, ok := s.scopes[scope.Key()]
	if !ok {
		layer = make(map[string]target.Target)
		s.scopes[scope.Key()] = layer
	}
	layer[t.Kind+"::"+t.Name] = t
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, scope target.Scope, kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	layer, ok := s.scopes[scope.Key()]
	if !ok {
		return store.ErrNotFound
	}
	key := kind + "::" + name
	if _, ok := layer[key]; !ok {
		return store.ErrNotFound
	}
	delete(layer, key)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, scope target.Scope) ([]target.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer := s.scopes[scope.Key()]
	out := make([]target.Target, 0, len(layer))
	for _, t := range layer {
		out = append(out, t)
	}
	return out, nil
}
