//go:build integration

package rules_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vigil/internal/rules"
	id "vigil/pkg/domain"
	"vigil/pkg/testutil/containers"
)

type PostgresRuleStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *rules.PostgresStore
}

func TestPostgresRuleStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRuleStoreSuite))
}

func (s *PostgresRuleStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = rules.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresRuleStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "workflow_rules")
	s.Require().NoError(err)
}

func (s *PostgresRuleStoreSuite) newRule(tenantID id.TenantID, name string, priority int, active bool) *rules.WorkflowRule {
	rule, err := rules.NewWorkflowRule(id.NewRuleID(), tenantID, name, priority, map[string]json.RawMessage{
		rules.CondSanctionsHit: json.RawMessage(`true`),
		rules.CondCountry:      json.RawMessage(`["IR","KP"]`),
	}, rules.ActionEscalate, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	rule.AssignTo = "compliance-team"
	rule.Active = active
	return rule
}

func (s *PostgresRuleStoreSuite) TestSaveAndListActiveRoundTripsConditions() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	rule := s.newRule(tenantID, "sanctions escalation", 100, true)
	s.Require().NoError(s.store.Save(ctx, rule))

	got, err := s.store.ListActive(ctx, tenantID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(rule.ID, got[0].ID)
	s.Equal(rules.ActionEscalate, got[0].Action)
	s.Equal("compliance-team", got[0].AssignTo)
	s.JSONEq(`true`, string(got[0].Conditions[rules.CondSanctionsHit]))
	s.JSONEq(`["IR","KP"]`, string(got[0].Conditions[rules.CondCountry]))
}

func (s *PostgresRuleStoreSuite) TestListActiveExcludesInactiveAndOtherTenants() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	s.Require().NoError(s.store.Save(ctx, s.newRule(tenantID, "active", 10, true)))
	s.Require().NoError(s.store.Save(ctx, s.newRule(tenantID, "inactive", 20, false)))
	s.Require().NoError(s.store.Save(ctx, s.newRule(id.NewTenantID(), "other tenant", 30, true)))

	got, err := s.store.ListActive(ctx, tenantID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("active", got[0].Name)
}

func (s *PostgresRuleStoreSuite) TestSaveUpsertsExistingRule() {
	ctx := context.Background()
	tenantID := id.NewTenantID()

	rule := s.newRule(tenantID, "before", 10, true)
	s.Require().NoError(s.store.Save(ctx, rule))

	rule.Name = "after"
	rule.Priority = 50
	rule.Action = rules.ActionHold
	rule.UpdatedAt = rule.UpdatedAt.Add(time.Hour)
	s.Require().NoError(s.store.Save(ctx, rule))

	got, err := s.store.ListActive(ctx, tenantID)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("after", got[0].Name)
	s.Equal(50, got[0].Priority)
	s.Equal(rules.ActionHold, got[0].Action)
}
