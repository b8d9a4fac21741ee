package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vigil/internal/screening/models"
	"vigil/internal/screening/service/mocks"
	"vigil/internal/screening/store"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/audit/publishers/compliance"
	auditmemory "vigil/pkg/platform/audit/store/memory"
	"vigil/pkg/platform/events"
	outboxmemory "vigil/pkg/platform/outbox/store/memory"
	"vigil/pkg/requestcontext"
)

type fixture struct {
	gateway  *mocks.MockGateway
	store    *store.InMemoryStore
	locker   *MemoryLocker
	audits   *auditmemory.InMemoryStore
	outbox   *outboxmemory.InMemoryStore
	orch     *Orchestrator
	tenantID id.TenantID
	subject  id.SubjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		gateway:  mocks.NewMockGateway(ctrl),
		store:    store.NewInMemoryStore(),
		locker:   NewMemoryLocker(),
		audits:   auditmemory.NewInMemoryStore(),
		outbox:   outboxmemory.NewInMemoryStore(),
		tenantID: id.NewTenantID(),
		subject:  id.NewSubjectID(),
	}
	f.orch = NewOrchestrator(
		f.gateway,
		f.store,
		f.locker,
		NopTxRunner{},
		compliance.New(f.audits),
		events.NewOutboxEmitter(f.outbox),
	)
	return f
}

func (f *fixture) query(t *testing.T) models.IdentityQuery {
	t.Helper()
	dob := time.Date(1964, 8, 30, 0, 0, 0, 0, time.UTC)
	q, err := models.NewIdentityQuery("Viktor Petrov", &dob, "RU", models.EntityIndividual)
	require.NoError(t, err)
	return q
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	kinds := []models.CheckKind{models.CheckSanctions, models.CheckPEP}

	t.Run("zero candidates yields clear check with events", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, nil)

		check, err := f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.NoError(t, err)
		assert.Equal(t, models.RunClear, check.Status)
		assert.Zero(t, check.HitCount)

		audits := f.audits.ListAll(ctx)
		require.Len(t, audits, 1)
		assert.Equal(t, string(audit.EventCheckCompleted), audits[0].Action)

		entries := f.outbox.All()
		require.Len(t, entries, 1)
		assert.Equal(t, events.TypeCheckCompleted, entries[0].EventType)
	})

	t.Run("exact candidate yields true positive sanctions hit", func(t *testing.T) {
		f := newFixture(t)
		dob := time.Date(1964, 8, 30, 0, 0, 0, 0, time.UTC)
		f.gateway.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]models.Candidate{{
			EntityID:    "Q4242",
			Names:       []string{"Viktor Petrov"},
			BirthDates:  []time.Time{dob},
			Countries:   []string{"RU"},
			Topics:      []string{"sanction"},
			Dataset:     "ofac-sdn",
			ListVersion: "2026-08-01",
		}}, nil)

		check, err := f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.NoError(t, err)
		assert.Equal(t, models.RunHit, check.Status)
		require.Len(t, check.Hits, 1)

		hit := check.Hits[0]
		assert.Equal(t, 100.0, hit.Confidence)
		assert.Equal(t, models.MatchTruePositive, hit.Category)
		assert.Equal(t, models.HitSanctions, hit.Kind)
		assert.Equal(t, models.ResolutionPending, hit.Resolution)
		assert.Equal(t, "ofac-sdn", hit.ListSource)
		assert.Equal(t, "2026-08-01", hit.ListVersion)

		persisted, err := f.store.GetCheck(ctx, check.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, persisted.HitCount)
	})

	t.Run("nameless candidate is skipped", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]models.Candidate{
			{EntityID: "Q1"},
		}, nil)

		check, err := f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.NoError(t, err)
		assert.Equal(t, models.RunClear, check.Status)
	})

	t.Run("transport failure persists error check and propagates retryable", func(t *testing.T) {
		f := newFixture(t)
		cause := dErrors.New(dErrors.CodeUnavailable, "provider returned 502")
		f.gateway.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, cause)

		_, err := f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.Error(t, err)
		assert.True(t, dErrors.Retryable(err))

		checks, listErr := f.store.ListBySubject(ctx, f.subject)
		require.NoError(t, listErr)
		require.Len(t, checks, 1)
		assert.Equal(t, models.RunError, checks[0].Status)

		audits := f.audits.ListAll(ctx)
		require.Len(t, audits, 1)
		assert.Equal(t, string(audit.EventCheckFailed), audits[0].Action)
	})

	t.Run("configuration failure propagates non-retryable", func(t *testing.T) {
		f := newFixture(t)
		cause := dErrors.New(dErrors.CodeConfiguration, "provider API key is not configured")
		f.gateway.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, cause)

		_, err := f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.Error(t, err)
		assert.False(t, dErrors.Retryable(err))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	})

	t.Run("concurrent run for same subject is rejected", func(t *testing.T) {
		f := newFixture(t)
		release, err := f.locker.Acquire(ctx, lockPrefix+f.subject.String(), time.Minute)
		require.NoError(t, err)
		defer release()

		_, err = f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("lock is released after the run", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.EXPECT().Search(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

		_, err := f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.NoError(t, err)
		_, err = f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.NoError(t, err)
	})
}

func TestResolveHit(t *testing.T) {
	ctx := requestcontext.WithActor(context.Background(), "analyst@example.com")
	kinds := []models.CheckKind{models.CheckSanctions}

	seedHit := func(t *testing.T, f *fixture) id.HitID {
		t.Helper()
		f.gateway.EXPECT().Search(gomock.Any(), gomock.Any()).Return([]models.Candidate{{
			EntityID: "Q1",
			Names:    []string{"Viktor Petrov"},
			Topics:   []string{"sanction"},
		}}, nil)
		check, err := f.orch.Run(ctx, f.tenantID, f.subject, f.query(t), kinds)
		require.NoError(t, err)
		require.Len(t, check.Hits, 1)
		return check.Hits[0].ID
	}

	t.Run("resolves pending hit once", func(t *testing.T) {
		f := newFixture(t)
		hitID := seedHit(t, f)

		hit, err := f.orch.ResolveHit(ctx, f.tenantID, hitID, models.ResolutionConfirmedFalse)
		require.NoError(t, err)
		assert.Equal(t, models.ResolutionConfirmedFalse, hit.Resolution)
		assert.Equal(t, "analyst@example.com", hit.ResolvedBy)

		_, err = f.orch.ResolveHit(ctx, f.tenantID, hitID, models.ResolutionConfirmedTrue)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("unknown hit is not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.ResolveHit(ctx, f.tenantID, id.NewHitID(), models.ResolutionConfirmedTrue)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
