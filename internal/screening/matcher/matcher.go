// Package matcher scores provider candidates against a query identity.
//
// Scoring is a pure function over its inputs: no I/O, no hidden state, and
// identical inputs always produce identical output. Confidence is a 0–100
// value composed of name similarity (60%), birth-date agreement (30%), and
// country agreement (10%).
package matcher

import (
	"math"
	"strings"
	"time"
	"unicode"

	"vigil/internal/screening/models"
	platstrings "vigil/pkg/platform/strings"
)

// Field weights. Name similarity dominates because list entries are
// frequently missing birth dates and nationality.
const (
	nameWeight    = 0.60
	dobFullCredit = 30.0
	dobYearCredit = 20.0
	dobNearCredit = 10.0
	// Partial credit when the list entry carries no birth date at all;
	// list gaps should not fully penalize an otherwise strong match.
	dobAbsentCredit = 15.0
	countryCredit   = 10.0
)

// Blend between edit-distance similarity and token-set overlap. Edit distance
// catches spelling variation, token overlap catches reordered name parts
// ("GADDAFI MUAMMAR" vs "MUAMMAR GADDAFI").
const (
	editBlend  = 0.7
	tokenBlend = 0.3
)

// Matched field names recorded for audit explainability.
const (
	FieldName        = "name"
	FieldDateOfBirth = "date_of_birth"
	FieldNationality = "nationality"
)

// Result is the outcome of scoring one candidate.
type Result struct {
	// Confidence in [0,100], rounded to two decimals.
	Confidence float64
	// MatchedFields lists which fields contributed non-zero weight.
	// Audit/explainability only; never used for scoring decisions.
	MatchedFields []string
}

// Score computes the match confidence between a query identity and a
// candidate record. The best similarity across all candidate name variants
// is used.
func Score(query models.IdentityQuery, candidate models.Candidate) Result {
	var confidence float64
	var fields []string

	nameSim := bestNameSimilarity(query.Name, candidate.Names)
	if nameSim > 0 {
		confidence += nameSim * nameWeight
		fields = append(fields, FieldName)
	}

	if dob := birthDateCredit(query.BirthDate, candidate.BirthDates); dob > 0 {
		confidence += dob
		fields = append(fields, FieldDateOfBirth)
	}

	if countryAgreement(query.Country, candidate.Countries) {
		confidence += countryCredit
		fields = append(fields, FieldNationality)
	}

	confidence = math.Max(0, math.Min(100, confidence))
	return Result{Confidence: round2(confidence), MatchedFields: fields}
}

// bestNameSimilarity returns the maximum 0–100 similarity between the query
// name and any candidate name variant.
func bestNameSimilarity(query string, variants []string) float64 {
	normQuery := Normalize(query)
	if normQuery == "" {
		return 0
	}

	best := 0.0
	for _, variant := range platstrings.DedupeAndTrim(variants) {
		normVariant := Normalize(variant)
		if normVariant == "" {
			continue
		}
		if sim := nameSimilarity(normQuery, normVariant); sim > best {
			best = sim
		}
	}
	return best
}

// nameSimilarity blends character-edit-distance similarity with token-set
// overlap. Both inputs must already be normalized.
func nameSimilarity(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}

	editSim := (1 - float64(levenshtein(a, b))/float64(maxLen)) * 100
	if editSim < 0 {
		editSim = 0
	}
	overlap := tokenOverlap(a, b)

	return editSim*editBlend + overlap*100*tokenBlend
}

// Normalize uppercases, strips punctuation, and collapses whitespace so that
// "al-Qaḏḏāfī, Muʿammar" and "AL QADDAFI MUAMMAR" compare equal.
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToUpper(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '\'' || r == '.' || r == ',':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshtein computes the character edit distance using two rolling rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// tokenOverlap is the Jaccard ratio over the two names' token sets.
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

// birthDateCredit grades birth-date agreement of up to 30 points.
func birthDateCredit(queryDOB *time.Time, candidateDOBs []time.Time) float64 {
	if queryDOB == nil {
		return 0
	}
	if len(candidateDOBs) == 0 {
		return dobAbsentCredit
	}

	q := queryDOB.UTC()
	best := 0.0
	for _, c := range candidateDOBs {
		c = c.UTC()
		var credit float64
		switch {
		case sameDate(q, c):
			credit = dobFullCredit
		case q.Year() == c.Year():
			credit = dobYearCredit
		case withinDays(q, c, 365):
			credit = dobNearCredit
		}
		if credit > best {
			best = credit
		}
	}
	return best
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func withinDays(a, b time.Time, days int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(days)*24*time.Hour
}

// countryAgreement is an exact ISO code comparison; there is no fuzzy country
// equivalence.
func countryAgreement(queryCountry string, candidateCountries []string) bool {
	if queryCountry == "" {
		return false
	}
	q := strings.ToUpper(strings.TrimSpace(queryCountry))
	for _, c := range candidateCountries {
		if strings.ToUpper(strings.TrimSpace(c)) == q {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
