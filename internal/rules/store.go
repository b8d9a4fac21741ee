package rules

import (
	"context"

	id "vigil/pkg/domain"
)

// Store provides read access to the rule chain and write access for
// seeding. Rule authoring surfaces live outside this engine.
type Store interface {
	// Save inserts or replaces a rule.
	Save(ctx context.Context, rule *WorkflowRule) error

	// ListActive returns the tenant's active rules. Order is unspecified;
	// the engine sorts before evaluation.
	ListActive(ctx context.Context, tenantID id.TenantID) ([]*WorkflowRule, error)
}
