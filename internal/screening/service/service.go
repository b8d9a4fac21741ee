// Package service drives screening runs end to end.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigil/internal/screening/matcher"
	"vigil/internal/screening/metrics"
	"vigil/internal/screening/models"
	"vigil/internal/screening/store"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/events"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Gateway

const (
	lockPrefix = "screening:subject:"
	lockTTL    = 2 * time.Minute
)

// Gateway fetches candidate records from the screening provider.
type Gateway interface {
	Search(ctx context.Context, query models.IdentityQuery) ([]models.Candidate, error)
}

// AuditPublisher emits audit events with fail-closed semantics.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner executes fn inside one SQL transaction carried on the context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTxRunner runs fn directly. Used with the in-memory stores.
type NopTxRunner struct{}

func (NopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Orchestrator runs one screening pass for one subject: provider search,
// per-candidate scoring and classification, and atomic persistence of the
// check with its hits.
type Orchestrator struct {
	gateway Gateway
	store   store.Store
	locker  Locker
	txr     TxRunner
	auditor AuditPublisher
	emitter events.Emitter

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// OrchestratorOption configures the Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator wires the screening run pipeline.
func NewOrchestrator(gateway Gateway, st store.Store, locker Locker, txr TxRunner, auditor AuditPublisher, emitter events.Emitter, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		gateway: gateway,
		store:   st,
		locker:  locker,
		txr:     txr,
		auditor: auditor,
		emitter: emitter,
		logger:  slog.Default(),
		tracer:  otel.Tracer("vigil/screening"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one screening run and returns the persisted check.
//
// Failure semantics follow the provider error taxonomy: on a gateway
// failure the check is persisted with status error and the failure is
// propagated so callers can apply their retry policy. Concurrent runs for
// the same subject are rejected with CodeConflict.
func (o *Orchestrator) Run(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, query models.IdentityQuery, kinds []models.CheckKind) (*models.ScreeningCheck, error) {
	ctx, span := o.tracer.Start(ctx, "screening.run", trace.WithAttributes(
		attribute.String("subject_id", subjectID.String()),
	))
	defer span.End()

	start := time.Now()

	release, err := o.locker.Acquire(ctx, lockPrefix+subjectID.String(), lockTTL)
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			o.metrics.IncLockContention()
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "subject is already being screened")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "subject lock unavailable")
	}
	defer release()

	now := requestcontext.Now(ctx)
	check := models.NewScreeningCheck(tenantID, subjectID, query, kinds, now)

	providerStart := time.Now()
	candidates, err := o.gateway.Search(ctx, query)
	o.metrics.ObserveProviderLatency(time.Since(providerStart))
	if err != nil {
		return nil, o.failRun(ctx, check, err)
	}

	for _, candidate := range candidates {
		hit, ok := o.buildHit(ctx, check, candidate, now)
		if !ok {
			continue
		}
		check.Hits = append(check.Hits, hit)
	}

	if err := check.Complete(requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = o.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := o.store.SaveCheck(ctx, check); err != nil {
			return err
		}
		if err := o.auditor.Emit(ctx, o.checkEvent(ctx, check, audit.EventCheckCompleted)); err != nil {
			return err
		}
		return o.emitter.Emit(ctx, events.Event{
			Type:      events.TypeCheckCompleted,
			TenantID:  tenantID.String(),
			SubjectID: subjectID.String(),
			Data:      checkEventData(check),
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist screening run")
	}

	o.metrics.IncRunOutcome(string(check.Status))
	o.metrics.ObserveHits(check.HitCount)
	o.metrics.ObserveRunLatency(time.Since(start))
	o.logger.InfoContext(ctx, "screening run completed",
		"check_id", check.ID,
		"subject_id", subjectID,
		"status", check.Status,
		"hit_count", check.HitCount,
	)
	return check, nil
}

// failRun persists the error-status check in its own transaction and
// propagates the gateway failure with its retryability intact.
func (o *Orchestrator) failRun(ctx context.Context, check *models.ScreeningCheck, cause error) error {
	if err := check.Fail(requestcontext.Now(ctx)); err != nil {
		return err
	}
	persistErr := o.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := o.store.SaveCheck(ctx, check); err != nil {
			return err
		}
		return o.auditor.Emit(ctx, o.checkEvent(ctx, check, audit.EventCheckFailed))
	})
	if persistErr != nil {
		o.logger.ErrorContext(ctx, "failed to persist error-status check",
			"check_id", check.ID,
			"error", persistErr,
		)
	}
	o.metrics.IncRunOutcome(string(models.RunError))
	return fmt.Errorf("screening provider search: %w", cause)
}

// buildHit scores and classifies one candidate. Candidates that cannot be
// scored are skipped with a warning rather than failing the run.
func (o *Orchestrator) buildHit(ctx context.Context, check *models.ScreeningCheck, candidate models.Candidate, now time.Time) (models.ScreeningHit, bool) {
	if len(candidate.Names) == 0 {
		o.logger.WarnContext(ctx, "skipping nameless candidate", "entity_id", candidate.EntityID)
		return models.ScreeningHit{}, false
	}

	query := models.IdentityQuery{
		Name:      check.SubjectName,
		BirthDate: check.SubjectBirthDate,
		Country:   check.SubjectCountry,
		Kind:      check.EntityKind,
	}
	result := matcher.Score(query, candidate)

	return models.ScreeningHit{
		ID:            id.NewHitID(),
		CheckID:       check.ID,
		EntityID:      candidate.EntityID,
		MatchedName:   candidate.Names[0],
		Confidence:    result.Confidence,
		Kind:          matcher.KindFromTopics(candidate.Topics),
		Category:      matcher.Classify(result.Confidence),
		MatchedFields: result.MatchedFields,
		PEPTier:       matcher.PEPTier(candidate.Position, candidate.Topics),
		PEPRelation:   matcher.PEPRelation(candidate.Position, candidate.Topics),
		CategoryTags:  matcher.CategoryTags(candidate.Topics),
		Resolution:    models.ResolutionPending,
		ListSource:    candidate.Dataset,
		ListVersion:   candidate.ListVersion,
		CreatedAt:     now,
	}, true
}

// ResolveHit applies an analyst's one-way resolution to a hit.
func (o *Orchestrator) ResolveHit(ctx context.Context, tenantID id.TenantID, hitID id.HitID, status models.ResolutionStatus) (*models.ScreeningHit, error) {
	hit, err := o.store.GetHit(ctx, hitID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "screening hit not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load screening hit")
	}

	actor := requestcontext.Actor(ctx)
	previous := hit.Resolution
	if err := hit.Resolve(status, actor, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = o.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := o.store.UpdateHitResolution(ctx, hit); err != nil {
			return err
		}
		return o.auditor.Emit(ctx, audit.Event{
			TenantID:     tenantID,
			Actor:        actor,
			Action:       string(audit.EventHitResolved),
			ResourceType: "screening_hit",
			ResourceID:   hit.ID.String(),
			OldValue:     []byte(fmt.Sprintf(`{"resolution":%q}`, previous)),
			NewValue:     []byte(fmt.Sprintf(`{"resolution":%q}`, hit.Resolution)),
			RequestID:    requestcontext.RequestID(ctx),
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist hit resolution")
	}
	return hit, nil
}

func (o *Orchestrator) checkEvent(ctx context.Context, check *models.ScreeningCheck, action audit.AuditEvent) audit.Event {
	return audit.Event{
		TenantID:     check.TenantID,
		SubjectID:    check.SubjectID,
		Actor:        requestcontext.Actor(ctx),
		Action:       string(action),
		ResourceType: "screening_check",
		ResourceID:   check.ID.String(),
		NewValue:     checkEventData(check),
		RequestID:    requestcontext.RequestID(ctx),
	}
}

func checkEventData(check *models.ScreeningCheck) []byte {
	return []byte(fmt.Sprintf(`{"check_id":%q,"status":%q,"hit_count":%d}`,
		check.ID, check.Status, check.HitCount))
}
