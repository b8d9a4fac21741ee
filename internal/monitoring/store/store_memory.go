package store

import (
	"context"
	"sort"
	"sync"

	"vigil/internal/monitoring/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

type InMemorySubjectStore struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]*models.Subject
}

func NewInMemorySubjectStore() *InMemorySubjectStore {
	return &InMemorySubjectStore{subjects: make(map[id.SubjectID]*models.Subject)}
}

func cloneSubject(s *models.Subject) *models.Subject {
	clone := *s
	if s.LastCheckID != nil {
		checkID := *s.LastCheckID
		clone.LastCheckID = &checkID
	}
	if s.Questionnaire != nil {
		clone.Questionnaire = make(map[string]string, len(s.Questionnaire))
		for k, v := range s.Questionnaire {
			clone.Questionnaire[k] = v
		}
	}
	return &clone
}

func (s *InMemorySubjectStore) Save(_ context.Context, subject *models.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = cloneSubject(subject)
	return nil
}

func (s *InMemorySubjectStore) Get(_ context.Context, subjectID id.SubjectID) (*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subject, ok := s.subjects[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneSubject(subject), nil
}

func (s *InMemorySubjectStore) ListMonitored(_ context.Context, tenantID id.TenantID) ([]*models.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Subject
	for _, subject := range s.subjects {
		if subject.TenantID == tenantID && subject.Monitored {
			out = append(out, cloneSubject(subject))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type InMemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[id.AlertID]*models.MonitoringAlert
}

func NewInMemoryAlertStore() *InMemoryAlertStore {
	return &InMemoryAlertStore{alerts: make(map[id.AlertID]*models.MonitoringAlert)}
}

func cloneAlert(a *models.MonitoringAlert) *models.MonitoringAlert {
	clone := *a
	clone.HitKinds = append(clone.HitKinds[:0:0], a.HitKinds...)
	clone.Hits = append(clone.Hits[:0:0], a.Hits...)
	return &clone
}

func (s *InMemoryAlertStore) Save(_ context.Context, alert *models.MonitoringAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

func (s *InMemoryAlertStore) Get(_ context.Context, alertID id.AlertID) (*models.MonitoringAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAlert(alert), nil
}

func (s *InMemoryAlertStore) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*models.MonitoringAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.MonitoringAlert
	for _, alert := range s.alerts {
		if alert.SubjectID == subjectID {
			out = append(out, cloneAlert(alert))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
