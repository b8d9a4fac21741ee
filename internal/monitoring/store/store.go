// Package store persists the monitored population and its alerts.
package store

import (
	"context"

	"vigil/internal/monitoring/models"
	id "vigil/pkg/domain"
)

// SubjectStore is the persistence boundary for applicants.
type SubjectStore interface {
	Save(ctx context.Context, subject *models.Subject) error
	Get(ctx context.Context, subjectID id.SubjectID) (*models.Subject, error)

	// ListMonitored returns the tenant's subjects flagged for ongoing
	// monitoring, ordered by creation time.
	ListMonitored(ctx context.Context, tenantID id.TenantID) ([]*models.Subject, error)
}

// AlertStore is the persistence boundary for monitoring alerts.
type AlertStore interface {
	Save(ctx context.Context, alert *models.MonitoringAlert) error
	Get(ctx context.Context, alertID id.AlertID) (*models.MonitoringAlert, error)
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.MonitoringAlert, error)
}
