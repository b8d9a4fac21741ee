package matcher

import (
	"strings"

	"vigil/internal/screening/models"
)

// PEP tiers. Tier 1 is heads of state and senior government; tier 4 is the
// lowest-exposure bucket. Extraction from free-text position strings is a
// best-effort heuristic, not a compliance-certified determination.
const (
	PEPTierSenior    = 1
	PEPTierOfficial  = 2
	PEPTierAssociate = 3
	PEPTierLow       = 4
)

var seniorTitleKeywords = []string{
	"president",
	"prime minister",
	"head of state",
	"head of government",
	"minister",
	"director-general",
	"director general",
	"chief justice",
	"governor",
	"ambassador",
	"general",
	"admiral",
	"central bank",
}

var officialKeywords = []string{
	"official",
	"member of parliament",
	"senator",
	"deputy",
	"judge",
	"mayor",
	"family member",
	"spouse",
	"son of",
	"daughter of",
	"brother of",
	"sister of",
}

var associateKeywords = []string{
	"associate",
	"adviser",
	"advisor",
	"aide",
	"business partner",
	"close relation",
}

var familyKeywords = []string{
	"family member",
	"spouse",
	"wife",
	"husband",
	"son of",
	"daughter of",
	"brother of",
	"sister of",
	"relative",
}

// PEPTier infers a 1–4 exposure tier from the candidate's position text.
// Returns nil when the candidate carries no PEP topic at all. A PEP topic
// with no recognizable position defaults to tier 2 rather than the lowest
// tier, keeping unknown positions under enhanced review.
func PEPTier(position string, topics []string) *int {
	if !hasPEPTopic(topics) {
		return nil
	}

	p := strings.ToLower(position)
	tier := PEPTierOfficial
	switch {
	case containsAny(p, seniorTitleKeywords):
		tier = PEPTierSenior
	case containsAny(p, officialKeywords):
		tier = PEPTierOfficial
	case containsAny(p, associateKeywords):
		tier = PEPTierAssociate
	}
	return &tier
}

// PEPRelation infers how the listed person relates to the political
// position: family and associate language downgrade from a direct holder.
func PEPRelation(position string, topics []string) *models.PEPRelationship {
	if !hasPEPTopic(topics) {
		return nil
	}

	p := strings.ToLower(position)
	rel := models.PEPDirect
	switch {
	case containsAny(p, familyKeywords):
		rel = models.PEPFamily
	case containsAny(p, associateKeywords):
		rel = models.PEPAssociate
	}
	return &rel
}

func hasPEPTopic(topics []string) bool {
	for _, topic := range topics {
		t := strings.ToLower(topic)
		if strings.Contains(t, "pep") || strings.Contains(t, "politically exposed") {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
