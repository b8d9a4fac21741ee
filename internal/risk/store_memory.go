package risk

import (
	"context"
	"sync"

	id "vigil/pkg/domain"
)

type InMemoryStore struct {
	mu   sync.RWMutex
	logs []*AssessmentLog
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, log *AssessmentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *log
	s.logs = append(s.logs, &clone)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*AssessmentLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*AssessmentLog
	for _, l := range s.logs {
		if l.SubjectID == subjectID {
			clone := *l
			out = append(out, &clone)
		}
	}
	return out, nil
}
