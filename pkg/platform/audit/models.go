// Package audit defines the append-only audit event model.
//
// Every state transition on an applicant, screening check, screening hit, or
// monitoring alert caused by this engine emits exactly one audit record. The
// engine only writes to the sink; querying and tamper-evidence live in the
// external audit system that consumes the events.
package audit

import (
	"context"
	"encoding/json"
	"time"

	id "vigil/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	TenantID  id.TenantID
	SubjectID id.SubjectID

	// Actor is who performed the action: an operator identifier, or
	// "system" for scheduled monitoring work.
	Actor string

	// Action names the transition, e.g. "screening_check_completed".
	Action string

	// ResourceType and ResourceID locate the mutated aggregate.
	ResourceType string
	ResourceID   string

	// OldValue and NewValue snapshot the transition for forensics. JSON;
	// may be nil when the transition has no meaningful before-state.
	OldValue json.RawMessage
	NewValue json.RawMessage

	// RequestID correlates the event with the triggering operation.
	RequestID string
	Reason    string
}

// AuditEvent enumerates the actions this engine emits.
type AuditEvent string

const (
	// Screening events
	EventCheckCreated   AuditEvent = "screening_check_created"
	EventCheckCompleted AuditEvent = "screening_check_completed"
	EventCheckFailed    AuditEvent = "screening_check_failed"
	EventHitResolved    AuditEvent = "screening_hit_resolved"

	// Monitoring events
	EventAlertCreated       AuditEvent = "monitoring_alert_created"
	EventAlertStatusChanged AuditEvent = "monitoring_alert_status_changed"
	EventBatchCompleted     AuditEvent = "monitoring_batch_completed"

	// Applicant events
	EventSubjectStatusChanged AuditEvent = "subject_status_changed"
	EventRiskAssessed         AuditEvent = "risk_assessment_recorded"
)

// eventCategories maps each action to its category. Compliance events carry
// regulatory weight; operations events are process bookkeeping.
var eventCategories = map[AuditEvent]EventCategory{
	EventCheckCreated:         CategoryCompliance,
	EventCheckCompleted:       CategoryCompliance,
	EventCheckFailed:          CategoryOperations,
	EventHitResolved:          CategoryCompliance,
	EventAlertCreated:         CategoryCompliance,
	EventAlertStatusChanged:   CategoryCompliance,
	EventBatchCompleted:       CategoryOperations,
	EventSubjectStatusChanged: CategoryCompliance,
	EventRiskAssessed:         CategoryCompliance,
}

// Category returns the category for an action, defaulting to operations for
// unrecognized actions so nothing is silently promoted to compliance.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events. Implementations must be safe for concurrent
// use and must respect an active SQL transaction in the context.
type Store interface {
	Append(ctx context.Context, event Event) error
}
