// Package domain provides typed identifiers shared across modules.
//
// Every aggregate gets its own UUID-backed type so the compiler rejects
// cross-type assignment (a SubjectID can never be passed where a TenantID
// is expected). Parsing happens once at trust boundaries; internal code
// works with the typed values only.
package domain

import (
	"github.com/google/uuid"

	dErrors "vigil/pkg/domain-errors"
)

type (
	// TenantID identifies the tenant that owns subjects, rules, and alerts.
	TenantID uuid.UUID

	// SubjectID identifies a screened applicant (individual or organization).
	SubjectID uuid.UUID

	// CheckID identifies one screening run for one subject.
	CheckID uuid.UUID

	// HitID identifies a single candidate match within a screening check.
	HitID uuid.UUID

	// AlertID identifies a monitoring alert.
	AlertID uuid.UUID

	// RuleID identifies a workflow rule.
	RuleID uuid.UUID
)

func (id TenantID) String() string  { return uuid.UUID(id).String() }
func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id CheckID) String() string   { return uuid.UUID(id).String() }
func (id HitID) String() string     { return uuid.UUID(id).String() }
func (id AlertID) String() string   { return uuid.UUID(id).String() }
func (id RuleID) String() string    { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CheckID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id HitID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id AlertID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewTenantID mints a fresh tenant identifier.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewSubjectID mints a fresh subject identifier.
func NewSubjectID() SubjectID { return SubjectID(uuid.New()) }

// NewRuleID mints a fresh workflow rule identifier.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

// NewCheckID mints a fresh screening check identifier.
func NewCheckID() CheckID { return CheckID(uuid.New()) }

// NewHitID mints a fresh screening hit identifier.
func NewHitID() HitID { return HitID(uuid.New()) }

// NewAlertID mints a fresh monitoring alert identifier.
func NewAlertID() AlertID { return AlertID(uuid.New()) }

// parseUUID enforces the shared invariant: valid, non-empty, non-nil.
func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is required")
	}
	if len(raw) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is too long")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseTenantID parses a tenant identifier from its string form.
func ParseTenantID(raw string) (TenantID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return TenantID(uuid.Nil), err
	}
	return TenantID(parsed), nil
}

// ParseSubjectID parses a subject identifier from its string form.
func ParseSubjectID(raw string) (SubjectID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return SubjectID(uuid.Nil), err
	}
	return SubjectID(parsed), nil
}

// ParseCheckID parses a screening check identifier from its string form.
func ParseCheckID(raw string) (CheckID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return CheckID(uuid.Nil), err
	}
	return CheckID(parsed), nil
}

// ParseAlertID parses a monitoring alert identifier from its string form.
func ParseAlertID(raw string) (AlertID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return AlertID(uuid.Nil), err
	}
	return AlertID(parsed), nil
}

// ParseRuleID parses a workflow rule identifier from its string form.
func ParseRuleID(raw string) (RuleID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return RuleID(uuid.Nil), err
	}
	return RuleID(parsed), nil
}
