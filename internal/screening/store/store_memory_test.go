package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/screening/models"
	id "vigil/pkg/domain"
	"vigil/pkg/platform/sentinel"
)

func completedCheck(t *testing.T, subjectID id.SubjectID, startedAt time.Time, hits ...models.ScreeningHit) *models.ScreeningCheck {
	t.Helper()
	query, err := models.NewIdentityQuery("Jane Doe", nil, "GB", models.EntityIndividual)
	require.NoError(t, err)
	check := models.NewScreeningCheck(id.NewTenantID(), subjectID, query, []models.CheckKind{models.CheckSanctions}, startedAt)
	check.Hits = hits
	require.NoError(t, check.Complete(startedAt.Add(time.Second)))
	return check
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	subjectID := id.NewSubjectID()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and get round-trips hits", func(t *testing.T) {
		s := NewInMemoryStore()
		check := completedCheck(t, subjectID, base, models.ScreeningHit{
			ID:       id.NewHitID(),
			EntityID: "Q123",
			Kind:     models.HitSanctions,
		})
		check.Hits[0].CheckID = check.ID
		require.NoError(t, s.SaveCheck(ctx, check))

		got, err := s.GetCheck(ctx, check.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunHit, got.Status)
		require.Len(t, got.Hits, 1)
		assert.Equal(t, "Q123", got.Hits[0].EntityID)
	})

	t.Run("get missing check returns sentinel", func(t *testing.T) {
		s := NewInMemoryStore()
		_, err := s.GetCheck(ctx, id.NewCheckID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("failed checks keep their status on save", func(t *testing.T) {
		s := NewInMemoryStore()
		query, err := models.NewIdentityQuery("Jane Doe", nil, "GB", models.EntityIndividual)
		require.NoError(t, err)
		failed := models.NewScreeningCheck(id.NewTenantID(), subjectID, query, nil, base)
		require.NoError(t, failed.Fail(base.Add(time.Minute)))
		require.NoError(t, s.SaveCheck(ctx, failed))

		got, err := s.GetCheck(ctx, failed.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunError, got.Status)
	})

	t.Run("update hit resolution persists", func(t *testing.T) {
		s := NewInMemoryStore()
		hit := models.ScreeningHit{
			ID:         id.NewHitID(),
			EntityID:   "Q9",
			Kind:       models.HitPEP,
			Resolution: models.ResolutionPending,
		}
		check := completedCheck(t, subjectID, base, hit)
		check.Hits[0].CheckID = check.ID
		require.NoError(t, s.SaveCheck(ctx, check))

		loaded, err := s.GetHit(ctx, hit.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Resolve(models.ResolutionConfirmedFalse, "analyst@example.com", base.Add(time.Hour)))
		require.NoError(t, s.UpdateHitResolution(ctx, loaded))

		again, err := s.GetHit(ctx, hit.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ResolutionConfirmedFalse, again.Resolution)
		assert.Equal(t, "analyst@example.com", again.ResolvedBy)
	})

	t.Run("list by subject orders by start time", func(t *testing.T) {
		s := NewInMemoryStore()
		other := id.NewSubjectID()

		late := completedCheck(t, subjectID, base.Add(time.Hour))
		early := completedCheck(t, subjectID, base)
		foreign := completedCheck(t, other, base)
		require.NoError(t, s.SaveCheck(ctx, late))
		require.NoError(t, s.SaveCheck(ctx, early))
		require.NoError(t, s.SaveCheck(ctx, foreign))

		checks, err := s.ListBySubject(ctx, subjectID)
		require.NoError(t, err)
		require.Len(t, checks, 2)
		assert.Equal(t, early.ID, checks[0].ID)
		assert.Equal(t, late.ID, checks[1].ID)
	})
}
