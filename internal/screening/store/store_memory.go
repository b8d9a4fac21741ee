package store

import (
	"context"
	"sort"
	"sync"

	"vigil/internal/screening/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	checks map[id.CheckID]*models.ScreeningCheck
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{checks: make(map[id.CheckID]*models.ScreeningCheck)}
}

func cloneCheck(c *models.ScreeningCheck) *models.ScreeningCheck {
	clone := *c
	clone.Hits = append([]models.ScreeningHit{}, c.Hits...)
	return &clone
}

func (s *InMemoryStore) SaveCheck(_ context.Context, check *models.ScreeningCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[check.ID] = cloneCheck(check)
	return nil
}

func (s *InMemoryStore) GetCheck(_ context.Context, checkID id.CheckID) (*models.ScreeningCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	check, ok := s.checks[checkID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCheck(check), nil
}

func (s *InMemoryStore) GetHit(_ context.Context, hitID id.HitID) (*models.ScreeningHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, check := range s.checks {
		for i := range check.Hits {
			if check.Hits[i].ID == hitID {
				hit := check.Hits[i]
				return &hit, nil
			}
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpdateHitResolution(_ context.Context, hit *models.ScreeningHit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	check, ok := s.checks[hit.CheckID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for i := range check.Hits {
		if check.Hits[i].ID == hit.ID {
			check.Hits[i].Resolution = hit.Resolution
			check.Hits[i].ResolvedBy = hit.ResolvedBy
			check.Hits[i].ResolvedAt = hit.ResolvedAt
			return nil
		}
	}
	return sentinel.ErrNotFound
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*models.ScreeningCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ScreeningCheck
	for _, check := range s.checks {
		if check.SubjectID == subjectID {
			out = append(out, cloneCheck(check))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}
