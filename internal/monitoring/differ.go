// Package monitoring re-screens the monitored population and turns newly
// discovered risk into alerts.
package monitoring

import (
	screening "vigil/internal/screening/models"
)

// NewHits isolates the hits of the current run that were not present in the
// previous completed check. A hit counts as new when any of:
//   - there was no previous check at all
//   - its matched entity id is absent (cannot be reconciled, so treated
//     conservatively as new)
//   - its entity id does not appear among the previous check's hit entity ids
//
// Diffing is by entity-id set membership only. Confidence or resolution
// changes on an already-seen entity id are not new risk. The function is
// pure and idempotent.
func NewHits(previous *screening.ScreeningCheck, current []screening.ScreeningHit) []screening.ScreeningHit {
	if previous == nil {
		return append([]screening.ScreeningHit{}, current...)
	}

	seen := previous.EntityIDs()
	var fresh []screening.ScreeningHit
	for _, hit := range current {
		if hit.EntityID == "" {
			fresh = append(fresh, hit)
			continue
		}
		if _, ok := seen[hit.EntityID]; !ok {
			fresh = append(fresh, hit)
		}
	}
	return fresh
}
