// Package models defines the monitored population and its alerts.
package models

import (
	"time"

	screening "vigil/internal/screening/models"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// SubjectStatus is the applicant's current disposition.
type SubjectStatus string

const (
	SubjectPending      SubjectStatus = "pending"
	SubjectApproved     SubjectStatus = "approved"
	SubjectManualReview SubjectStatus = "manual_review"
	SubjectRejected     SubjectStatus = "rejected"
	SubjectEscalated    SubjectStatus = "escalated"
	SubjectHold         SubjectStatus = "hold"
)

// Subject is one monitored applicant: the identity screened on each pass
// plus the risk state mutated by rule evaluation.
type Subject struct {
	ID       id.SubjectID
	TenantID id.TenantID

	FullName  string
	BirthDate *time.Time
	Country   string
	Kind      screening.EntityKind

	// Questionnaire holds the applicant's onboarding answers keyed by
	// question identifier, matched by questionnaire.* rule conditions.
	Questionnaire map[string]string

	Status    SubjectStatus
	RiskScore int
	RiskLevel string

	// Monitored marks the subject for the periodic re-screening batch.
	Monitored bool

	// LastCheckID is the newest check whose monitoring pass was recorded in
	// full. The next pass diffs against its hits. It advances in the same
	// transaction that persists the pass's alert, so a failed pass never
	// becomes the diff baseline and its hits stay new on retry.
	LastCheckID *id.CheckID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IdentityQuery builds the screening query from the subject's identity.
func (s *Subject) IdentityQuery() (screening.IdentityQuery, error) {
	return screening.NewIdentityQuery(s.FullName, s.BirthDate, s.Country, s.Kind)
}

// ApplyStatus transitions the subject to a new status.
func (s *Subject) ApplyStatus(status SubjectStatus, now time.Time) {
	s.Status = status
	s.UpdatedAt = now
}

// AlertKind classifies why a monitoring alert exists.
type AlertKind string

const (
	AlertNewHit       AlertKind = "new_hit"
	AlertUpgradedRisk AlertKind = "upgraded_risk"
	AlertListUpdate   AlertKind = "list_update"
	AlertReactivation AlertKind = "reactivation"
)

// Severity ranks alerts for triage. Derived at creation, never user-set.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// AlertStatus is the alert's triage lifecycle.
// open → reviewing → resolved | dismissed, or → escalated.
type AlertStatus string

const (
	AlertOpen      AlertStatus = "open"
	AlertReviewing AlertStatus = "reviewing"
	AlertResolved  AlertStatus = "resolved"
	AlertDismissed AlertStatus = "dismissed"
	AlertEscalated AlertStatus = "escalated"
)

// alertTransitions lists the permitted status moves.
var alertTransitions = map[AlertStatus][]AlertStatus{
	AlertOpen:      {AlertReviewing, AlertEscalated},
	AlertReviewing: {AlertResolved, AlertDismissed, AlertEscalated},
}

// CanTransitionTo reports whether the move is permitted.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	for _, allowed := range alertTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// HitSnapshot is the embedded copy of one new hit inside an alert. The
// snapshot survives even if the underlying hit rows are later purged.
type HitSnapshot struct {
	EntityID   string            `json:"entity_id"`
	Name       string            `json:"name"`
	Kind       screening.HitKind `json:"kind"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"source"`
}

// MonitoringAlert batches all new hits found for one subject in a single
// monitoring pass. One alert per pass, never one per hit.
type MonitoringAlert struct {
	ID        id.AlertID
	TenantID  id.TenantID
	SubjectID id.SubjectID

	Kind     AlertKind
	Severity Severity

	// PreviousCheckID is nil when the subject had no prior completed check.
	PreviousCheckID *id.CheckID
	NewCheckID      id.CheckID

	HitCount int
	HitKinds []screening.HitKind
	Hits     []HitSnapshot

	Status     AlertStatus
	ResolvedBy string
	ResolvedAt *time.Time
	Resolution string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition moves the alert through its lifecycle, recording resolution
// metadata on terminal states.
func (a *MonitoringAlert) Transition(next AlertStatus, actor, note string, now time.Time) error {
	if !a.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "alert cannot move from %q to %q", a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = now
	switch next {
	case AlertResolved, AlertDismissed, AlertEscalated:
		a.ResolvedBy = actor
		a.ResolvedAt = &now
		a.Resolution = note
	}
	return nil
}

// BatchResult aggregates one monitoring pass over the monitored population.
type BatchResult struct {
	Screened  int
	NewAlerts int
	Errors    int
	Skipped   int

	StartedAt   time.Time
	CompletedAt time.Time
}
