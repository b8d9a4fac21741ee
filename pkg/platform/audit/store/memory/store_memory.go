// Package memory provides an in-memory audit store for tests and for
// running the server without a database.
package memory

import (
	"context"
	"sync"

	"vigil/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListBySubject returns events for a subject in append order.
func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.SubjectID.String() == subjectID {
			out = append(out, e)
		}
	}
	return out
}

// ListAll returns a copy of every stored event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
