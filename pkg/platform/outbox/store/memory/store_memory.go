// Package memory provides an in-memory outbox store for tests and for
// running the server without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/platform/outbox"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries []outbox.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(_ context.Context, entry outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]outbox.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []outbox.Entry
	for _, e := range s.entries {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.entries {
		if marked[s.entries[i].ID] && s.entries[i].PublishedAt == nil {
			stamped := at
			s.entries[i].PublishedAt = &stamped
		}
	}
	return nil
}

// All returns a copy of every entry in insertion order.
func (s *InMemoryStore) All() []outbox.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]outbox.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
