package rules

import (
	"context"
	"sync"

	id "vigil/pkg/domain"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	rules map[id.RuleID]*WorkflowRule
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rules: make(map[id.RuleID]*WorkflowRule)}
}

func (s *InMemoryStore) Save(_ context.Context, rule *WorkflowRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rule
	s.rules[rule.ID] = &clone
	return nil
}

func (s *InMemoryStore) ListActive(_ context.Context, tenantID id.TenantID) ([]*WorkflowRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*WorkflowRule
	for _, rule := range s.rules {
		if rule.TenantID == tenantID && rule.Active {
			clone := *rule
			out = append(out, &clone)
		}
	}
	return out, nil
}
