package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"vigil/internal/monitoring/metrics"
	"vigil/internal/monitoring/models"
	"vigil/internal/monitoring/store"
	"vigil/internal/risk"
	"vigil/internal/rules"
	screening "vigil/internal/screening/models"
	screeningstore "vigil/internal/screening/store"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/events"
	"vigil/pkg/platform/sentinel"
	"vigil/pkg/requestcontext"
)

const defaultConcurrency = 4

// Batch outcome labels used for metrics and logging.
const (
	outcomeScreened = "screened"
	outcomeAlerted  = "alerted"
	outcomeError    = "error"
	outcomeSkipped  = "skipped"
)

// Screener runs one screening pass for one subject. Satisfied by the
// screening orchestrator.
type Screener interface {
	Run(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, query screening.IdentityQuery, kinds []screening.CheckKind) (*screening.ScreeningCheck, error)
}

// AuditPublisher emits audit events with fail-closed semantics.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner executes fn inside one SQL transaction carried on the context.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Runner drives the periodic re-screening of the monitored population.
// Each subject's pass is self-contained: screen, diff against the subject's
// recorded baseline check, alert on new risk, and re-evaluate workflow rules.
type Runner struct {
	screener   Screener
	checks     screeningstore.Store
	subjects   store.SubjectStore
	alerts     store.AlertStore
	ruleStore  rules.Store
	ruleEngine *rules.Engine
	riskStore  risk.Store
	txr        TxRunner
	auditor    AuditPublisher
	emitter    events.Emitter

	kinds       []screening.CheckKind
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithConcurrency bounds the per-subject fan-out. Size to the provider's
// rate limit.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithCheckKinds overrides the list categories requested per pass.
func WithCheckKinds(kinds []screening.CheckKind) RunnerOption {
	return func(r *Runner) { r.kinds = kinds }
}

// NewRunner wires the monitoring pipeline.
func NewRunner(screener Screener, checks screeningstore.Store, subjects store.SubjectStore, alerts store.AlertStore, ruleStore rules.Store, riskStore risk.Store, txr TxRunner, auditor AuditPublisher, emitter events.Emitter, opts ...RunnerOption) *Runner {
	r := &Runner{
		screener:   screener,
		checks:     checks,
		subjects:   subjects,
		alerts:     alerts,
		ruleStore:  ruleStore,
		ruleEngine: rules.NewEngine(),
		riskStore:  riskStore,
		txr:        txr,
		auditor:    auditor,
		emitter:    emitter,
		kinds: []screening.CheckKind{
			screening.CheckSanctions, screening.CheckPEP, screening.CheckAdverseMedia,
		},
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		tracer:      otel.Tracer("vigil/monitoring"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunBatch re-screens every monitored subject for the tenant with bounded
// fan-out. Per-subject failures are isolated: a poison subject cannot block
// monitoring for the rest of the tenant.
func (r *Runner) RunBatch(ctx context.Context, tenantID id.TenantID) (*models.BatchResult, error) {
	ctx, span := r.tracer.Start(ctx, "monitoring.batch", trace.WithAttributes(
		attribute.String("tenant_id", tenantID.String()),
	))
	defer span.End()

	start := time.Now()
	subjects, err := r.subjects.ListMonitored(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list monitored subjects")
	}

	result := &models.BatchResult{StartedAt: start}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, subject := range subjects {
		g.Go(func() error {
			outcome, alerted := r.processSubject(gctx, subject)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSkipped:
				result.Skipped++
			case outcomeError:
				result.Errors++
			default:
				result.Screened++
			}
			if alerted {
				result.NewAlerts++
			}
			return nil
		})
	}
	// Workers never return errors; Wait is for completion only.
	_ = g.Wait()

	result.CompletedAt = time.Now()
	r.metrics.ObserveBatch(len(subjects), result.CompletedAt.Sub(start))

	if err := r.auditor.Emit(ctx, audit.Event{
		TenantID:     tenantID,
		Actor:        requestcontext.Actor(ctx),
		Action:       string(audit.EventBatchCompleted),
		ResourceType: "monitoring_batch",
		ResourceID:   tenantID.String(),
		NewValue: []byte(fmt.Sprintf(`{"screened":%d,"new_alerts":%d,"errors":%d,"skipped":%d}`,
			result.Screened, result.NewAlerts, result.Errors, result.Skipped)),
	}); err != nil {
		r.logger.ErrorContext(ctx, "batch audit emission failed", "error", err)
	}

	r.logger.InfoContext(ctx, "monitoring batch completed",
		"tenant_id", tenantID,
		"screened", result.Screened,
		"new_alerts", result.NewAlerts,
		"errors", result.Errors,
		"skipped", result.Skipped,
	)
	return result, nil
}

// RunSubject executes one on-demand monitoring pass for a single subject.
func (r *Runner) RunSubject(ctx context.Context, subjectID id.SubjectID) (*models.MonitoringAlert, error) {
	subject, err := r.subjects.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "subject not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load subject")
	}
	return r.monitorSubject(ctx, subject)
}

// processSubject classifies one subject's pass for batch accounting.
// Subjects without a usable name and provider configuration failures are
// skips; everything else that fails is an error.
func (r *Runner) processSubject(ctx context.Context, subject *models.Subject) (outcome string, alerted bool) {
	alert, err := r.monitorSubject(ctx, subject)
	if err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeValidation):
			r.logger.WarnContext(ctx, "subject skipped", "subject_id", subject.ID, "reason", err)
			r.metrics.IncSubjectOutcome(outcomeSkipped)
			return outcomeSkipped, false
		case dErrors.HasCode(err, dErrors.CodeConfiguration):
			r.logger.WarnContext(ctx, "subject skipped: provider not configured", "subject_id", subject.ID)
			r.metrics.IncSubjectOutcome(outcomeSkipped)
			return outcomeSkipped, false
		default:
			r.logger.ErrorContext(ctx, "subject monitoring failed", "subject_id", subject.ID, "error", err)
			r.metrics.IncSubjectOutcome(outcomeError)
			return outcomeError, false
		}
	}
	if alert != nil {
		r.metrics.IncSubjectOutcome(outcomeAlerted)
		return outcomeScreened, true
	}
	r.metrics.IncSubjectOutcome(outcomeScreened)
	return outcomeScreened, false
}

// monitorSubject is one full pass: screen, diff, alert, re-evaluate rules.
func (r *Runner) monitorSubject(ctx context.Context, subject *models.Subject) (*models.MonitoringAlert, error) {
	ctx, span := r.tracer.Start(ctx, "monitoring.subject", trace.WithAttributes(
		attribute.String("subject_id", subject.ID.String()),
	))
	defer span.End()

	query, err := subject.IdentityQuery()
	if err != nil {
		return nil, err
	}

	check, err := r.screener.Run(ctx, subject.TenantID, subject.ID, query, r.kinds)
	if err != nil {
		return nil, err
	}

	previous, err := r.baseline(ctx, subject)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	newHits := NewHits(previous, check.Hits)
	alert := GenerateAlert(subject, previous, check, newHits, now)

	// The baseline advances with the alert in one transaction: either both
	// land or neither does. A pass whose writes fail never becomes the diff
	// baseline, so its hits are still new on the next pass.
	err = r.txr.RunInTx(ctx, func(ctx context.Context) error {
		if alert != nil {
			if err := r.alerts.Save(ctx, alert); err != nil {
				return err
			}
			if err := r.auditor.Emit(ctx, audit.Event{
				TenantID:     subject.TenantID,
				SubjectID:    subject.ID,
				Actor:        requestcontext.Actor(ctx),
				Action:       string(audit.EventAlertCreated),
				ResourceType: "monitoring_alert",
				ResourceID:   alert.ID.String(),
				NewValue: []byte(fmt.Sprintf(`{"severity":%q,"hit_count":%d}`,
					alert.Severity, alert.HitCount)),
				RequestID: requestcontext.RequestID(ctx),
			}); err != nil {
				return err
			}
			if err := r.emitter.Emit(ctx, events.Event{
				Type:      events.TypeAlertCreated,
				TenantID:  subject.TenantID.String(),
				SubjectID: subject.ID.String(),
				Data: []byte(fmt.Sprintf(`{"alert_id":%q,"severity":%q,"hit_count":%d}`,
					alert.ID, alert.Severity, alert.HitCount)),
			}); err != nil {
				return err
			}
		}
		subject.LastCheckID = &check.ID
		subject.UpdatedAt = now
		return r.subjects.Save(ctx, subject)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist monitoring pass")
	}
	if alert == nil {
		return nil, nil
	}
	r.metrics.IncAlertCreated(string(alert.Severity))

	if err := r.reevaluate(ctx, subject, check); err != nil {
		r.logger.ErrorContext(ctx, "rule re-evaluation failed", "subject_id", subject.ID, "error", err)
	}
	return alert, nil
}

// baseline loads the check recorded as the subject's diff baseline. A
// subject without one diffs against nothing, so every hit counts as new.
func (r *Runner) baseline(ctx context.Context, subject *models.Subject) (*screening.ScreeningCheck, error) {
	if subject.LastCheckID == nil {
		return nil, nil
	}
	previous, err := r.checks.GetCheck(ctx, *subject.LastCheckID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.logger.WarnContext(ctx, "baseline check missing, treating all hits as new",
				"subject_id", subject.ID, "check_id", *subject.LastCheckID)
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load baseline check")
	}
	return previous, nil
}

// TransitionAlert moves an alert through its triage lifecycle.
func (r *Runner) TransitionAlert(ctx context.Context, alertID id.AlertID, next models.AlertStatus, note string) (*models.MonitoringAlert, error) {
	alert, err := r.alerts.Get(ctx, alertID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "monitoring alert not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load monitoring alert")
	}

	actor := requestcontext.Actor(ctx)
	previous := alert.Status
	if err := alert.Transition(next, actor, note, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	err = r.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := r.alerts.Save(ctx, alert); err != nil {
			return err
		}
		return r.auditor.Emit(ctx, audit.Event{
			TenantID:     alert.TenantID,
			SubjectID:    alert.SubjectID,
			Actor:        actor,
			Action:       string(audit.EventAlertStatusChanged),
			ResourceType: "monitoring_alert",
			ResourceID:   alert.ID.String(),
			OldValue:     []byte(fmt.Sprintf(`{"status":%q}`, previous)),
			NewValue:     []byte(fmt.Sprintf(`{"status":%q}`, alert.Status)),
			RequestID:    requestcontext.RequestID(ctx),
			Reason:       note,
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist alert transition")
	}
	return alert, nil
}

// reevaluate runs the workflow rules against the subject's refreshed risk
// facts and applies the matched action to the subject.
func (r *Runner) reevaluate(ctx context.Context, subject *models.Subject, check *screening.ScreeningCheck) error {
	ruleSet, err := r.ruleStore.ListActive(ctx, subject.TenantID)
	if err != nil {
		return fmt.Errorf("list active rules: %w", err)
	}

	facts, signals := buildRiskFacts(subject, check)
	matched := r.ruleEngine.Evaluate(facts, ruleSet)

	recommended := rules.ActionManualReview
	if matched != nil {
		recommended = matched.Action
	}
	nextStatus := statusForAction(recommended)
	now := requestcontext.Now(ctx)

	return r.txr.RunInTx(ctx, func(ctx context.Context) error {
		previousStatus := subject.Status
		subject.RiskScore = facts.RiskScore
		subject.RiskLevel = facts.RiskLevel
		if nextStatus != subject.Status {
			subject.ApplyStatus(nextStatus, now)
		} else {
			subject.UpdatedAt = now
		}
		if err := r.subjects.Save(ctx, subject); err != nil {
			return err
		}

		log := risk.NewAssessmentLog(subject.TenantID, subject.ID, facts.RiskScore, signals,
			string(recommended), string(nextStatus), now)
		if err := r.riskStore.Append(ctx, log); err != nil {
			return err
		}
		if err := r.auditor.Emit(ctx, audit.Event{
			TenantID:     subject.TenantID,
			SubjectID:    subject.ID,
			Actor:        requestcontext.Actor(ctx),
			Action:       string(audit.EventRiskAssessed),
			ResourceType: "risk_assessment",
			ResourceID:   log.ID.String(),
			NewValue: []byte(fmt.Sprintf(`{"level":%q,"score":%d,"recommended":%q}`,
				log.Level, log.Score, recommended)),
			RequestID: requestcontext.RequestID(ctx),
		}); err != nil {
			return err
		}
		if previousStatus == subject.Status {
			return nil
		}
		return r.auditor.Emit(ctx, audit.Event{
			TenantID:     subject.TenantID,
			SubjectID:    subject.ID,
			Actor:        requestcontext.Actor(ctx),
			Action:       string(audit.EventSubjectStatusChanged),
			ResourceType: "subject",
			ResourceID:   subject.ID.String(),
			OldValue:     []byte(fmt.Sprintf(`{"status":%q}`, previousStatus)),
			NewValue:     []byte(fmt.Sprintf(`{"status":%q}`, subject.Status)),
			RequestID:    requestcontext.RequestID(ctx),
		})
	})
}

// hit weights per kind for the risk score roll-up.
var kindWeights = map[screening.HitKind]float64{
	screening.HitSanctions:    1.0,
	screening.HitPEP:          0.8,
	screening.HitAdverseMedia: 0.6,
	screening.HitOther:        0.4,
}

// buildRiskFacts derives the rule-engine facts and the itemized signal list
// from the subject's latest check. Hits confirmed false by an analyst do
// not contribute.
func buildRiskFacts(subject *models.Subject, check *screening.ScreeningCheck) (rules.RiskFacts, []risk.Signal) {
	facts := rules.RiskFacts{
		Country:       subject.Country,
		EntityKind:    string(subject.Kind),
		Questionnaire: subject.Questionnaire,
	}

	var signals []risk.Signal
	var score float64
	for _, hit := range check.Hits {
		if hit.Resolution == screening.ResolutionConfirmedFalse {
			continue
		}
		if hit.Category != screening.MatchTruePositive && hit.Category != screening.MatchPotential {
			continue
		}
		switch hit.Kind {
		case screening.HitSanctions:
			facts.SanctionsHit = true
		case screening.HitPEP:
			facts.PEPHit = true
		case screening.HitAdverseMedia:
			facts.AdverseMediaHit = true
		}
		weight := kindWeights[hit.Kind]
		weighted := hit.Confidence * weight
		if weighted > score {
			score = weighted
		}
		signals = append(signals, risk.Signal{
			Category: string(hit.Kind),
			Name:     hit.MatchedName,
			Score:    int(hit.Confidence),
			Weight:   weight,
		})
	}

	facts.RiskScore = int(score)
	facts.RiskLevel = string(risk.LevelForScore(facts.RiskScore))
	return facts, signals
}

// statusForAction maps a rule action onto a subject status.
func statusForAction(action rules.Action) models.SubjectStatus {
	switch action {
	case rules.ActionAutoApprove:
		return models.SubjectApproved
	case rules.ActionAutoReject:
		return models.SubjectRejected
	case rules.ActionEscalate:
		return models.SubjectEscalated
	case rules.ActionHold:
		return models.SubjectHold
	default:
		return models.SubjectManualReview
	}
}
