package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "vigil/pkg/domain"
)

// PostgresStore persists workflow rules in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, rule *WorkflowRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshal rule conditions: %w", err)
	}

	const q = `
		INSERT INTO workflow_rules (id, tenant_id, name, priority, conditions, action, assign_to, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			priority = EXCLUDED.priority,
			conditions = EXCLUDED.conditions,
			action = EXCLUDED.action,
			assign_to = EXCLUDED.assign_to,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.ExecContext(ctx, q,
		uuid.UUID(rule.ID), uuid.UUID(rule.TenantID), rule.Name, rule.Priority,
		conditions, string(rule.Action), rule.AssignTo, rule.Active,
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save workflow rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context, tenantID id.TenantID) ([]*WorkflowRule, error) {
	const q = `
		SELECT id, tenant_id, name, priority, conditions, action, assign_to, active, created_at, updated_at
		FROM workflow_rules
		WHERE tenant_id = $1 AND active`
	rows, err := s.db.QueryContext(ctx, q, uuid.UUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	defer rows.Close()

	var out []*WorkflowRule
	for rows.Next() {
		var (
			rule       WorkflowRule
			ruleID     uuid.UUID
			tenant     uuid.UUID
			conditions []byte
			action     string
		)
		if err := rows.Scan(&ruleID, &tenant, &rule.Name, &rule.Priority, &conditions, &action, &rule.AssignTo, &rule.Active, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow rule: %w", err)
		}
		rule.ID = id.RuleID(ruleID)
		rule.TenantID = id.TenantID(tenant)
		rule.Action = Action(action)
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
				return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
			}
		}
		out = append(out, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow rules: %w", err)
	}
	return out, nil
}
