package rules

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
)

// Engine evaluates the rule priority chain. It is stateless and safe for
// concurrent use.
type Engine struct {
	logger *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for condition interpretation warnings.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the highest-priority active rule whose conditions are all
// satisfied by facts, or nil when none match. Evaluation is deterministic:
// rules are sorted by descending priority with creation time and ID as
// tie-breakers, so re-evaluation with identical input yields the same rule.
func (e *Engine) Evaluate(facts RiskFacts, ruleSet []*WorkflowRule) *WorkflowRule {
	ordered := make([]*WorkflowRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r != nil && r.Active {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	for _, rule := range ordered {
		if e.matches(facts, rule) {
			return rule
		}
	}
	return nil
}

// matches reports whether every condition on the rule is satisfied.
// An empty condition map always matches (catch-all rule).
func (e *Engine) matches(facts RiskFacts, rule *WorkflowRule) bool {
	for key, raw := range rule.Conditions {
		if !e.satisfied(facts, key, raw) {
			return false
		}
	}
	return true
}

// satisfied interprets one condition. Unknown keys and malformed values are
// non-matches, never errors.
func (e *Engine) satisfied(facts RiskFacts, key string, raw json.RawMessage) bool {
	switch key {
	case CondSanctionsHit:
		want, ok := decodeBool(raw)
		return ok && facts.SanctionsHit == want
	case CondPEPHit:
		want, ok := decodeBool(raw)
		return ok && facts.PEPHit == want
	case CondAdverseMediaHit:
		want, ok := decodeBool(raw)
		return ok && facts.AdverseMediaHit == want
	case CondRiskLevel:
		values, ok := decodeStringSet(raw)
		return ok && containsFold(values, facts.RiskLevel)
	case CondCountry:
		values, ok := decodeStringSet(raw)
		return ok && containsFold(values, facts.Country)
	case CondMinRiskScore:
		floor, ok := decodeInt(raw)
		return ok && facts.RiskScore >= floor
	case CondEntityKind:
		values, ok := decodeStringSet(raw)
		return ok && containsFold(values, facts.EntityKind)
	}

	if questionID, isQuestion := strings.CutPrefix(key, questionnairePrefix); isQuestion {
		values, ok := decodeStringSet(raw)
		if !ok {
			return false
		}
		answer, answered := facts.Questionnaire[questionID]
		return answered && containsFold(values, answer)
	}

	e.logger.Warn("unknown rule condition key", "key", key)
	return false
}

// decodeBool accepts a JSON boolean.
func decodeBool(raw json.RawMessage) (bool, bool) {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	return v, true
}

// decodeInt accepts a JSON number, truncating any fraction.
func decodeInt(raw json.RawMessage) (int, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return int(v), true
}

// decodeStringSet accepts a JSON string or a list of strings.
func decodeStringSet(raw json.RawMessage) ([]string, bool) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, true
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, true
	}
	return nil, false
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
