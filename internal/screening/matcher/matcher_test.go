package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/screening/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func query(name string, dob *time.Time, country string) models.IdentityQuery {
	q, err := models.NewIdentityQuery(name, dob, country, models.EntityIndividual)
	if err != nil {
		panic(err)
	}
	return q
}

func TestScore_ExactMatchIsFullConfidence(t *testing.T) {
	q := query("John Smith", date(1980, time.March, 15), "GB")
	candidate := models.Candidate{
		EntityID:   "Q1",
		Names:      []string{"John Smith"},
		BirthDates: []time.Time{*date(1980, time.March, 15)},
		Countries:  []string{"GB"},
	}

	result := Score(q, candidate)

	assert.Equal(t, 100.0, result.Confidence)
	assert.ElementsMatch(t, []string{FieldName, FieldDateOfBirth, FieldNationality}, result.MatchedFields)
	assert.Equal(t, models.MatchTruePositive, Classify(result.Confidence))
}

func TestScore_IsDeterministic(t *testing.T) {
	q := query("Maria Fernanda Lopez", date(1975, time.July, 1), "MX")
	candidate := models.Candidate{
		Names:      []string{"Maria F. Lopez", "Lopez, Maria"},
		BirthDates: []time.Time{*date(1975, time.July, 1)},
		Countries:  []string{"MX", "US"},
	}

	first := Score(q, candidate)
	for i := 0; i < 10; i++ {
		again := Score(q, candidate)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.MatchedFields, again.MatchedFields)
	}
}

func TestScore_DissimilarNameIsLowConfidence(t *testing.T) {
	q := query("John Smith", nil, "")
	candidate := models.Candidate{Names: []string{"Zzyx Qrpt"}}

	result := Score(q, candidate)

	assert.Less(t, result.Confidence, 40.0)
	category := Classify(result.Confidence)
	assert.Contains(t, []models.MatchCategory{models.MatchFalsePositive, models.MatchUnknown}, category)
}

func TestScore_BestAliasWins(t *testing.T) {
	q := query("Muammar Gaddafi", nil, "")
	candidate := models.Candidate{
		Names: []string{"Completely Different Person", "Gaddafi, Muammar", "M. Qadhafi"},
	}

	aliasOnly := models.Candidate{Names: []string{"Gaddafi, Muammar"}}
	assert.Equal(t, Score(q, aliasOnly).Confidence, Score(q, candidate).Confidence)
}

func TestScore_TokenOverlapHandlesReorderedNames(t *testing.T) {
	q := query("John Smith", nil, "")
	reordered := models.Candidate{Names: []string{"Smith John"}}

	result := Score(q, reordered)

	// The token sets are identical, so the overlap term contributes its full
	// 30% of the name weight even though the raw edit distance is maximal.
	assert.Equal(t, 18.0, result.Confidence)
	scrambled := Score(q, models.Candidate{Names: []string{"Zzyx Qrpt"}})
	assert.Greater(t, result.Confidence, scrambled.Confidence)
}

func TestScore_BirthDateGrades(t *testing.T) {
	base := query("John Smith", date(1980, time.March, 15), "")
	name := models.Candidate{Names: []string{"John Smith"}}
	// Baseline from a query without a birth date. A dated query against a
	// dateless candidate would already earn the absent-date credit.
	nameOnly := Score(query("John Smith", nil, ""), name).Confidence

	tests := []struct {
		name       string
		candidates []time.Time
		credit     float64
	}{
		{"exact date", []time.Time{*date(1980, time.March, 15)}, 30},
		{"same year", []time.Time{*date(1980, time.November, 2)}, 20},
		{"within 365 days", []time.Time{*date(1981, time.January, 10)}, 10},
		{"no date on file", nil, 15},
		{"far apart", []time.Time{*date(1955, time.January, 1)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := models.Candidate{Names: []string{"John Smith"}, BirthDates: tt.candidates}
			result := Score(base, candidate)
			assert.InDelta(t, nameOnly+tt.credit, result.Confidence, 0.001)
		})
	}
}

func TestScore_NoQueryBirthDateEarnsNoCredit(t *testing.T) {
	q := query("John Smith", nil, "")
	candidate := models.Candidate{
		Names:      []string{"John Smith"},
		BirthDates: []time.Time{*date(1980, time.March, 15)},
	}

	result := Score(q, candidate)

	assert.Equal(t, 60.0, result.Confidence)
	assert.NotContains(t, result.MatchedFields, FieldDateOfBirth)
}

func TestScore_CountryIsExactOnly(t *testing.T) {
	q := query("John Smith", nil, "GB")

	match := Score(q, models.Candidate{Names: []string{"John Smith"}, Countries: []string{"gb"}})
	assert.Equal(t, 70.0, match.Confidence)
	assert.Contains(t, match.MatchedFields, FieldNationality)

	miss := Score(q, models.Candidate{Names: []string{"John Smith"}, Countries: []string{"US", "FR"}})
	assert.Equal(t, 60.0, miss.Confidence)
	assert.NotContains(t, miss.MatchedFields, FieldNationality)
}

func TestScore_ConfidenceClamped(t *testing.T) {
	q := query("A", nil, "")
	result := Score(q, models.Candidate{Names: []string{"A"}})
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 100.0)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Smith", "JOHN SMITH"},
		{"  john   SMITH  ", "JOHN SMITH"},
		{"O'Brien, Patrick", "O BRIEN PATRICK"},
		{"Jean-Claude", "JEAN CLAUDE"},
		{"Dr. J. Smith", "DR J SMITH"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"ABC", "", 3},
		{"", "ABC", 3},
		{"KITTEN", "SITTING", 3},
		{"SMITH", "SMYTH", 1},
		{"SAME", "SAME", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		confidence float64
		want       models.MatchCategory
	}{
		{100, models.MatchTruePositive},
		{90.00, models.MatchTruePositive},
		{89.99, models.MatchPotential},
		{60.00, models.MatchPotential},
		{59.99, models.MatchFalsePositive},
		{40.00, models.MatchFalsePositive},
		{39.99, models.MatchUnknown},
		{0, models.MatchUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.confidence), "confidence %.2f", tt.confidence)
	}
}

func TestKindFromTopics(t *testing.T) {
	tests := []struct {
		name   string
		topics []string
		want   models.HitKind
	}{
		{"sanction topic", []string{"sanction"}, models.HitSanctions},
		{"sanctions beats pep", []string{"role.pep", "sanction.linked"}, models.HitSanctions},
		{"pep topic", []string{"role.pep"}, models.HitPEP},
		{"politically exposed phrase", []string{"politically exposed person"}, models.HitPEP},
		{"crime topic", []string{"crime.fin"}, models.HitAdverseMedia},
		{"fraud topic", []string{"fraud"}, models.HitAdverseMedia},
		{"unknown topics", []string{"poi", "export.control"}, models.HitOther},
		{"no topics", nil, models.HitOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFromTopics(tt.topics))
		})
	}
}

func TestCategoryTags(t *testing.T) {
	tags := CategoryTags([]string{"crime.fraud", "money laundering scheme", "terror finance"})
	assert.Equal(t, []string{"fraud", "money_laundering", "terrorism"}, tags)

	assert.Empty(t, CategoryTags([]string{"role.pep"}))

	// Duplicate keywords collapse to one tag.
	assert.Equal(t, []string{"bribery"}, CategoryTags([]string{"bribery", "corruption"}))
}

func TestPEPTier(t *testing.T) {
	pepTopics := []string{"role.pep"}

	tests := []struct {
		name     string
		position string
		topics   []string
		want     *int
	}{
		{"no pep topic", "President of the Republic", []string{"sanction"}, nil},
		{"senior title", "President of the Republic", pepTopics, intPtr(1)},
		{"minister", "Minister of Finance", pepTopics, intPtr(1)},
		{"director-general", "Director-General of Customs", pepTopics, intPtr(1)},
		{"family member", "Family member of senior politician", pepTopics, intPtr(2)},
		{"official", "Elected official", pepTopics, intPtr(2)},
		{"associate", "Close associate of ruling family", pepTopics, intPtr(3)},
		{"unrecognized position defaults to 2", "Unremarkable text", pepTopics, intPtr(2)},
		{"empty position defaults to 2", "", pepTopics, intPtr(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PEPTier(tt.position, tt.topics)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestPEPRelation(t *testing.T) {
	pepTopics := []string{"role.pep"}

	assert.Nil(t, PEPRelation("anything", []string{"sanction"}))

	direct := PEPRelation("Minister of Defence", pepTopics)
	require.NotNil(t, direct)
	assert.Equal(t, models.PEPDirect, *direct)

	family := PEPRelation("Spouse of the president", pepTopics)
	require.NotNil(t, family)
	assert.Equal(t, models.PEPFamily, *family)

	associate := PEPRelation("Business partner and adviser", pepTopics)
	require.NotNil(t, associate)
	assert.Equal(t, models.PEPAssociate, *associate)
}

func intPtr(v int) *int { return &v }
