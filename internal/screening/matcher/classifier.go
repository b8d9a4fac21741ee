package matcher

import (
	"strings"

	"vigil/internal/screening/models"
	platstrings "vigil/pkg/platform/strings"
)

// Classification thresholds. Deliberately process-wide constants rather than
// per-tenant settings: audit comparability requires every tenant's hits to be
// classified on the same scale.
const (
	TruePositiveThreshold  = 90.0
	PotentialThreshold     = 60.0
	FalsePositiveThreshold = 40.0
)

// Classify maps a confidence score to its match category.
func Classify(confidence float64) models.MatchCategory {
	switch {
	case confidence >= TruePositiveThreshold:
		return models.MatchTruePositive
	case confidence >= PotentialThreshold:
		return models.MatchPotential
	case confidence >= FalsePositiveThreshold:
		return models.MatchFalsePositive
	default:
		return models.MatchUnknown
	}
}

// KindFromTopics derives the hit kind from provider topic tags. Kind
// classification is orthogonal to confidence classification; both are
// computed for every candidate.
func KindFromTopics(topics []string) models.HitKind {
	var sawPEP, sawCrime bool
	for _, t := range platstrings.DedupeAndTrimLower(topics) {
		switch {
		case strings.Contains(t, "sanction"):
			return models.HitSanctions
		case strings.Contains(t, "pep") || strings.Contains(t, "politically exposed"):
			sawPEP = true
		case strings.Contains(t, "crime") || strings.Contains(t, "fraud"):
			sawCrime = true
		}
	}
	if sawPEP {
		return models.HitPEP
	}
	if sawCrime {
		return models.HitAdverseMedia
	}
	return models.HitOther
}

// Category tags surfaced on hits for analyst triage. Ordered so extraction
// is deterministic for identical input.
var categoryTagKeywords = []struct {
	keyword string
	tag     string
}{
	{"fraud", "fraud"},
	{"bribery", "bribery"},
	{"corrupt", "bribery"},
	{"launder", "money_laundering"},
	{"wash", "money_laundering"},
	{"terror", "terrorism"},
	{"trafficking", "trafficking"},
	{"embezzle", "embezzlement"},
	{"cybercrime", "cybercrime"},
	{"organized crime", "organized_crime"},
	{"organised crime", "organized_crime"},
}

// CategoryTags extracts normalized category tags from topic strings.
func CategoryTags(topics []string) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, t := range platstrings.DedupeAndTrimLower(topics) {
		for _, kw := range categoryTagKeywords {
			if strings.Contains(t, kw.keyword) {
				if _, ok := seen[kw.tag]; !ok {
					seen[kw.tag] = struct{}{}
					tags = append(tags, kw.tag)
				}
			}
		}
	}
	return tags
}
