// Package rules evaluates tenant-configured workflow rules against an
// applicant's risk facts.
//
// Rules form a priority chain: the highest-priority active rule whose
// conditions are all satisfied determines the action. Conditions are a
// closed set of predicates interpreted from stored JSON values; a rule
// carrying an unknown condition key or a malformed value never matches,
// so one bad rule cannot halt evaluation of the rest.
package rules

import (
	"encoding/json"
	"time"

	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// Action is the disposition a matched rule applies to an applicant.
type Action string

const (
	ActionAutoApprove  Action = "auto_approve"
	ActionManualReview Action = "manual_review"
	ActionAutoReject   Action = "auto_reject"
	ActionEscalate     Action = "escalate"
	ActionHold         Action = "hold"
)

// Valid reports whether the action is one of the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionAutoApprove, ActionManualReview, ActionAutoReject, ActionEscalate, ActionHold:
		return true
	}
	return false
}

// Condition keys understood by the engine. Question answers use the
// "questionnaire." prefix followed by the question identifier.
const (
	CondSanctionsHit    = "sanctions_hit"
	CondPEPHit          = "pep_hit"
	CondAdverseMediaHit = "adverse_media_hit"
	CondRiskLevel       = "risk_level"
	CondCountry         = "country"
	CondMinRiskScore    = "min_risk_score"
	CondEntityKind      = "entity_kind"

	questionnairePrefix = "questionnaire."
)

// WorkflowRule is one tenant-scoped rule in the priority chain.
//
// Invariants:
//   - Priority orders evaluation, higher first
//   - Conditions are all-AND across present keys; an empty map always matches
//   - Only active rules participate in evaluation
type WorkflowRule struct {
	ID       id.RuleID
	TenantID id.TenantID
	Name     string
	Priority int

	// Conditions maps a condition key to its stored JSON value: a scalar
	// for equality, or a list for membership.
	Conditions map[string]json.RawMessage

	Action Action

	// AssignTo optionally names the queue or team receiving the case.
	AssignTo string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWorkflowRule validates and constructs a rule.
func NewWorkflowRule(ruleID id.RuleID, tenantID id.TenantID, name string, priority int, conditions map[string]json.RawMessage, action Action, now time.Time) (*WorkflowRule, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rule name is required")
	}
	if !action.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown rule action")
	}
	if conditions == nil {
		conditions = map[string]json.RawMessage{}
	}
	return &WorkflowRule{
		ID:         ruleID,
		TenantID:   tenantID,
		Name:       name,
		Priority:   priority,
		Conditions: conditions,
		Action:     action,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RiskFacts is the snapshot of an applicant the engine evaluates against.
// Construction happens at the caller; the engine never reads stores.
type RiskFacts struct {
	SanctionsHit    bool
	PEPHit          bool
	AdverseMediaHit bool

	RiskScore int
	RiskLevel string

	// Country is the applicant's ISO 3166-1 alpha-2 country code.
	Country string

	// EntityKind is "individual" or "organization".
	EntityKind string

	// Questionnaire holds answers keyed by question identifier.
	Questionnaire map[string]string
}
