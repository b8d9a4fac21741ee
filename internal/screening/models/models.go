// Package models defines the screening aggregates.
//
// A ScreeningCheck is one screening run for one subject. It snapshots the
// identity actually screened so later subject edits never rewrite history,
// and owns the ScreeningHits produced by that run. Hits are immutable facts
// about a point-in-time run; only their resolution fields may change, once.
package models

import (
	"time"

	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
)

// EntityKind distinguishes individual and business screening.
type EntityKind string

const (
	EntityIndividual   EntityKind = "individual"
	EntityOrganization EntityKind = "organization"
)

// CheckKind is a requested screening list category.
type CheckKind string

const (
	CheckSanctions    CheckKind = "sanctions"
	CheckPEP          CheckKind = "pep"
	CheckAdverseMedia CheckKind = "adverse_media"
)

// HitKind classifies a hit by the list category it matched.
type HitKind string

const (
	HitSanctions    HitKind = "sanctions"
	HitPEP          HitKind = "pep"
	HitAdverseMedia HitKind = "adverse_media"
	HitOther        HitKind = "other"
)

// MatchCategory is the confidence classification of a hit.
type MatchCategory string

const (
	MatchTruePositive  MatchCategory = "true_positive"
	MatchPotential     MatchCategory = "potential_match"
	MatchFalsePositive MatchCategory = "false_positive"
	MatchUnknown       MatchCategory = "unknown"
)

// RunStatus is the lifecycle of a screening check.
// pending → clear | hit | error; the end states are terminal.
type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunClear   RunStatus = "clear"
	RunHit     RunStatus = "hit"
	RunError   RunStatus = "error"
)

// ResolutionStatus is the analyst disposition of a hit.
// pending → confirmed_true | confirmed_false; one-way, terminal once set.
type ResolutionStatus string

const (
	ResolutionPending        ResolutionStatus = "pending"
	ResolutionConfirmedTrue  ResolutionStatus = "confirmed_true"
	ResolutionConfirmedFalse ResolutionStatus = "confirmed_false"
)

// PEPRelationship describes how a PEP hit relates to the listed person.
type PEPRelationship string

const (
	PEPDirect    PEPRelationship = "direct"
	PEPFamily    PEPRelationship = "family"
	PEPAssociate PEPRelationship = "associate"
)

// IdentityQuery is the immutable identity screened in one run.
type IdentityQuery struct {
	Name      string
	BirthDate *time.Time
	Country   string
	Kind      EntityKind
}

// NewIdentityQuery validates and constructs a query. The name is the only
// required field; a subject without a usable name cannot be screened.
func NewIdentityQuery(name string, birthDate *time.Time, country string, kind EntityKind) (IdentityQuery, error) {
	if name == "" {
		return IdentityQuery{}, dErrors.New(dErrors.CodeValidation, "identity query requires a name")
	}
	if kind == "" {
		kind = EntityIndividual
	}
	return IdentityQuery{Name: name, BirthDate: birthDate, Country: country, Kind: kind}, nil
}

// Candidate is a provider-supplied record under consideration for a hit.
// Read-only; sourced externally.
type Candidate struct {
	EntityID    string
	Names       []string
	BirthDates  []time.Time
	Countries   []string
	Topics      []string
	Position    string
	Dataset     string
	ListVersion string
}

// ScreeningHit is one candidate match inside a check.
//
// EntityID may be empty when the provider could not supply a stable
// identifier; such hits cannot be reconciled across runs and the monitoring
// differ treats them conservatively as new. ListSource and ListVersion are
// denormalized for audit permanence even if the list record is later
// superseded.
type ScreeningHit struct {
	ID            id.HitID
	CheckID       id.CheckID
	EntityID      string
	MatchedName   string
	Confidence    float64
	Kind          HitKind
	Category      MatchCategory
	MatchedFields []string
	PEPTier       *int
	PEPRelation   *PEPRelationship
	CategoryTags  []string
	Resolution    ResolutionStatus
	ResolvedBy    string
	ResolvedAt    *time.Time
	ListSource    string
	ListVersion   string
	CreatedAt     time.Time
}

// Resolve applies the one-way resolution transition. A hit resolved once is
// terminal; re-resolution is an invariant violation.
func (h *ScreeningHit) Resolve(status ResolutionStatus, actor string, now time.Time) error {
	if status != ResolutionConfirmedTrue && status != ResolutionConfirmedFalse {
		return dErrors.Newf(dErrors.CodeValidation, "invalid resolution status %q", status)
	}
	if h.Resolution != ResolutionPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "hit is already resolved")
	}
	h.Resolution = status
	h.ResolvedBy = actor
	h.ResolvedAt = &now
	return nil
}

// ScreeningCheck is one screening run for one subject.
type ScreeningCheck struct {
	ID        id.CheckID
	TenantID  id.TenantID
	SubjectID id.SubjectID

	// Identity snapshot frozen at run time.
	SubjectName      string
	SubjectBirthDate *time.Time
	SubjectCountry   string
	EntityKind       EntityKind

	Kinds       []CheckKind
	Status      RunStatus
	HitCount    int
	StartedAt   time.Time
	CompletedAt *time.Time

	Hits []ScreeningHit
}

// NewScreeningCheck starts a pending check for the given identity snapshot.
func NewScreeningCheck(tenantID id.TenantID, subjectID id.SubjectID, query IdentityQuery, kinds []CheckKind, now time.Time) *ScreeningCheck {
	return &ScreeningCheck{
		ID:               id.NewCheckID(),
		TenantID:         tenantID,
		SubjectID:        subjectID,
		SubjectName:      query.Name,
		SubjectBirthDate: query.BirthDate,
		SubjectCountry:   query.Country,
		EntityKind:       query.Kind,
		Kinds:            kinds,
		Status:           RunPending,
		StartedAt:        now,
	}
}

// Complete moves the check to its terminal clear/hit status based on the
// attached hits.
func (c *ScreeningCheck) Complete(now time.Time) error {
	if c.Status != RunPending {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "check status %q is terminal", c.Status)
	}
	c.HitCount = len(c.Hits)
	if c.HitCount == 0 {
		c.Status = RunClear
	} else {
		c.Status = RunHit
	}
	c.CompletedAt = &now
	return nil
}

// Fail moves the check to the terminal error status after a provider failure.
func (c *ScreeningCheck) Fail(now time.Time) error {
	if c.Status != RunPending {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "check status %q is terminal", c.Status)
	}
	c.Status = RunError
	c.CompletedAt = &now
	return nil
}

// EntityIDs returns the set of non-empty matched entity ids across hits.
// Used by the monitoring differ for identity reconciliation.
func (c *ScreeningCheck) EntityIDs() map[string]struct{} {
	out := make(map[string]struct{}, len(c.Hits))
	for _, h := range c.Hits {
		if h.EntityID != "" {
			out[h.EntityID] = struct{}{}
		}
	}
	return out
}
