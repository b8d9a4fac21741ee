// Package store persists screening checks and their hits.
package store

import (
	"context"

	"vigil/internal/screening/models"
	id "vigil/pkg/domain"
)

// Store is the persistence boundary for screening runs.
//
// Implementations return sentinel.ErrNotFound for missing rows; services
// translate sentinels into coded domain errors.
type Store interface {
	// SaveCheck persists a check and all of its hits atomically. A run is
	// never left with a check but none of its intended hits, nor vice versa.
	SaveCheck(ctx context.Context, check *models.ScreeningCheck) error

	// GetCheck loads a check with its hits.
	GetCheck(ctx context.Context, checkID id.CheckID) (*models.ScreeningCheck, error)

	// GetHit loads a single hit.
	GetHit(ctx context.Context, hitID id.HitID) (*models.ScreeningHit, error)

	// UpdateHitResolution persists a hit's resolution fields.
	UpdateHitResolution(ctx context.Context, hit *models.ScreeningHit) error

	// ListBySubject returns the subject's checks ordered by start time.
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.ScreeningCheck, error)
}
