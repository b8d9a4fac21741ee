package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vigil/pkg/domain"
)

func rule(t *testing.T, name string, priority int, conditions map[string]json.RawMessage, action Action) *WorkflowRule {
	t.Helper()
	r, err := NewWorkflowRule(id.NewRuleID(), id.NewTenantID(), name, priority, conditions, action, time.Now())
	require.NoError(t, err)
	return r
}

func raw(v string) json.RawMessage { return json.RawMessage(v) }

func TestEvaluate(t *testing.T) {
	engine := NewEngine()

	t.Run("highest priority matching rule wins regardless of storage order", func(t *testing.T) {
		escalate := rule(t, "escalate sanctions", 1000,
			map[string]json.RawMessage{CondSanctionsHit: raw(`true`)}, ActionEscalate)
		catchAll := rule(t, "catch all", 0, nil, ActionManualReview)

		facts := RiskFacts{SanctionsHit: true}

		for _, ruleSet := range [][]*WorkflowRule{
			{escalate, catchAll},
			{catchAll, escalate},
		} {
			matched := engine.Evaluate(facts, ruleSet)
			require.NotNil(t, matched)
			assert.Equal(t, ActionEscalate, matched.Action)
		}
	})

	t.Run("empty condition map is a catch-all", func(t *testing.T) {
		catchAll := rule(t, "catch all", 0, nil, ActionManualReview)

		matched := engine.Evaluate(RiskFacts{}, []*WorkflowRule{catchAll})
		require.NotNil(t, matched)
		assert.Equal(t, ActionManualReview, matched.Action)
	})

	t.Run("all conditions must hold", func(t *testing.T) {
		r := rule(t, "high risk island", 10, map[string]json.RawMessage{
			CondRiskLevel: raw(`["high","critical"]`),
			CondCountry:   raw(`"KY"`),
		}, ActionAutoReject)

		assert.Nil(t, engine.Evaluate(RiskFacts{RiskLevel: "high", Country: "GB"}, []*WorkflowRule{r}))
		assert.Nil(t, engine.Evaluate(RiskFacts{RiskLevel: "low", Country: "KY"}, []*WorkflowRule{r}))

		matched := engine.Evaluate(RiskFacts{RiskLevel: "critical", Country: "KY"}, []*WorkflowRule{r})
		require.NotNil(t, matched)
	})

	t.Run("membership conditions accept scalar or list", func(t *testing.T) {
		scalar := rule(t, "scalar", 0, map[string]json.RawMessage{CondEntityKind: raw(`"organization"`)}, ActionHold)
		list := rule(t, "list", 0, map[string]json.RawMessage{CondEntityKind: raw(`["individual","organization"]`)}, ActionHold)

		facts := RiskFacts{EntityKind: "organization"}
		assert.NotNil(t, engine.Evaluate(facts, []*WorkflowRule{scalar}))
		assert.NotNil(t, engine.Evaluate(facts, []*WorkflowRule{list}))
	})

	t.Run("min risk score is a floor", func(t *testing.T) {
		r := rule(t, "score floor", 0, map[string]json.RawMessage{CondMinRiskScore: raw(`70`)}, ActionManualReview)

		assert.Nil(t, engine.Evaluate(RiskFacts{RiskScore: 69}, []*WorkflowRule{r}))
		assert.NotNil(t, engine.Evaluate(RiskFacts{RiskScore: 70}, []*WorkflowRule{r}))
		assert.NotNil(t, engine.Evaluate(RiskFacts{RiskScore: 100}, []*WorkflowRule{r}))
	})

	t.Run("questionnaire answers match by question id", func(t *testing.T) {
		r := rule(t, "source of funds", 5, map[string]json.RawMessage{
			"questionnaire.source_of_funds": raw(`["crypto","gambling"]`),
		}, ActionManualReview)

		assert.NotNil(t, engine.Evaluate(RiskFacts{
			Questionnaire: map[string]string{"source_of_funds": "crypto"},
		}, []*WorkflowRule{r}))
		assert.Nil(t, engine.Evaluate(RiskFacts{
			Questionnaire: map[string]string{"source_of_funds": "salary"},
		}, []*WorkflowRule{r}))
		assert.Nil(t, engine.Evaluate(RiskFacts{}, []*WorkflowRule{r}))
	})

	t.Run("unknown condition key never matches", func(t *testing.T) {
		bad := rule(t, "bad key", 1000, map[string]json.RawMessage{"shoe_size": raw(`42`)}, ActionAutoReject)
		catchAll := rule(t, "catch all", 0, nil, ActionManualReview)

		matched := engine.Evaluate(RiskFacts{}, []*WorkflowRule{bad, catchAll})
		require.NotNil(t, matched)
		assert.Equal(t, ActionManualReview, matched.Action)
	})

	t.Run("malformed condition value never matches", func(t *testing.T) {
		bad := rule(t, "bad value", 1000, map[string]json.RawMessage{CondSanctionsHit: raw(`"yes"`)}, ActionAutoReject)
		catchAll := rule(t, "catch all", 0, nil, ActionManualReview)

		matched := engine.Evaluate(RiskFacts{SanctionsHit: true}, []*WorkflowRule{bad, catchAll})
		require.NotNil(t, matched)
		assert.Equal(t, ActionManualReview, matched.Action)
	})

	t.Run("inactive rules are skipped", func(t *testing.T) {
		inactive := rule(t, "inactive", 1000, nil, ActionAutoReject)
		inactive.Active = false
		catchAll := rule(t, "catch all", 0, nil, ActionManualReview)

		matched := engine.Evaluate(RiskFacts{}, []*WorkflowRule{inactive, catchAll})
		require.NotNil(t, matched)
		assert.Equal(t, ActionManualReview, matched.Action)
	})

	t.Run("no matching rule yields nil", func(t *testing.T) {
		r := rule(t, "sanctions only", 10, map[string]json.RawMessage{CondSanctionsHit: raw(`true`)}, ActionEscalate)

		assert.Nil(t, engine.Evaluate(RiskFacts{}, []*WorkflowRule{r}))
	})

	t.Run("evaluation is deterministic under repetition", func(t *testing.T) {
		a := rule(t, "a", 50, map[string]json.RawMessage{CondPEPHit: raw(`true`)}, ActionManualReview)
		b := rule(t, "b", 50, map[string]json.RawMessage{CondPEPHit: raw(`true`)}, ActionEscalate)
		facts := RiskFacts{PEPHit: true}

		first := engine.Evaluate(facts, []*WorkflowRule{a, b})
		require.NotNil(t, first)
		for i := 0; i < 50; i++ {
			again := engine.Evaluate(facts, []*WorkflowRule{b, a})
			require.NotNil(t, again)
			assert.Equal(t, first.ID, again.ID)
		}
	})
}
