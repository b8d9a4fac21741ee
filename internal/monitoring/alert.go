package monitoring

import (
	"time"

	"vigil/internal/monitoring/models"
	screening "vigil/internal/screening/models"
	id "vigil/pkg/domain"
)

// Severity thresholds over the max confidence among new hits.
const (
	sanctionsCriticalConfidence = 90
	pepHighConfidence           = 85
	anyMediumConfidence         = 80
)

// GenerateAlert batches the new hits of one monitoring pass into a single
// severity-classified alert. Returns nil when there is nothing new.
func GenerateAlert(subject *models.Subject, previous *screening.ScreeningCheck, current *screening.ScreeningCheck, newHits []screening.ScreeningHit, now time.Time) *models.MonitoringAlert {
	if len(newHits) == 0 {
		return nil
	}

	var previousID *id.CheckID
	if previous != nil {
		pid := previous.ID
		previousID = &pid
	}

	alert := &models.MonitoringAlert{
		ID:              id.NewAlertID(),
		TenantID:        subject.TenantID,
		SubjectID:       subject.ID,
		Kind:            models.AlertNewHit,
		Severity:        deriveSeverity(newHits),
		PreviousCheckID: previousID,
		NewCheckID:      current.ID,
		HitCount:        len(newHits),
		HitKinds:        kindUnion(newHits),
		Status:          models.AlertOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, hit := range newHits {
		alert.Hits = append(alert.Hits, models.HitSnapshot{
			EntityID:   hit.EntityID,
			Name:       hit.MatchedName,
			Kind:       hit.Kind,
			Confidence: hit.Confidence,
			Source:     hit.ListSource,
		})
	}
	return alert
}

// deriveSeverity applies the fixed ranking over the new hit set:
// sanctions at high confidence outrank everything, then sanctions, then
// confident PEP matches, then any confident match.
func deriveSeverity(hits []screening.ScreeningHit) models.Severity {
	var (
		maxConfidence float64
		hasSanctions  bool
		hasPEP        bool
	)
	for _, hit := range hits {
		if hit.Confidence > maxConfidence {
			maxConfidence = hit.Confidence
		}
		switch hit.Kind {
		case screening.HitSanctions:
			hasSanctions = true
		case screening.HitPEP:
			hasPEP = true
		}
	}

	switch {
	case hasSanctions && maxConfidence >= sanctionsCriticalConfidence:
		return models.SeverityCritical
	case hasSanctions:
		return models.SeverityHigh
	case hasPEP && maxConfidence >= pepHighConfidence:
		return models.SeverityHigh
	case hasPEP:
		return models.SeverityMedium
	case maxConfidence >= anyMediumConfidence:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// kindUnion returns the distinct hit kinds in first-seen order.
func kindUnion(hits []screening.ScreeningHit) []screening.HitKind {
	seen := make(map[screening.HitKind]bool, len(hits))
	var out []screening.HitKind
	for _, hit := range hits {
		if !seen[hit.Kind] {
			seen[hit.Kind] = true
			out = append(out, hit.Kind)
		}
	}
	return out
}
