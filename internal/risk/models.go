// Package risk records risk evaluations as an append-only log.
package risk

import (
	"time"

	"github.com/google/uuid"

	id "vigil/pkg/domain"
)

// Level buckets an overall risk score.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// LevelForScore maps a 0-100 score onto a level.
func LevelForScore(score int) Level {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Signal is one itemized contribution to a risk evaluation.
type Signal struct {
	Category string  `json:"category"`
	Name     string  `json:"name"`
	Score    int     `json:"score"`
	Weight   float64 `json:"weight"`
}

// AssessmentLog is one row of the append-only evaluation history.
//
// RecommendedAction comes from the rule engine; the action actually applied
// to the applicant may be overridden later by an operator and is recorded
// on the applicant, not here.
type AssessmentLog struct {
	ID        uuid.UUID
	TenantID  id.TenantID
	SubjectID id.SubjectID

	Level   Level
	Score   int
	Signals []Signal

	RecommendedAction string
	AppliedAction     string

	CreatedAt time.Time
}

// NewAssessmentLog constructs a log row with a fresh identifier.
func NewAssessmentLog(tenantID id.TenantID, subjectID id.SubjectID, score int, signals []Signal, recommended, applied string, now time.Time) *AssessmentLog {
	return &AssessmentLog{
		ID:                uuid.New(),
		TenantID:          tenantID,
		SubjectID:         subjectID,
		Level:             LevelForScore(score),
		Score:             score,
		Signals:           signals,
		RecommendedAction: recommended,
		AppliedAction:     applied,
		CreatedAt:         now,
	}
}
