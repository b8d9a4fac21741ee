// Package postgres persists audit events through the transactional outbox.
//
// Events are inserted into the outbox table in the same transaction as the
// domain mutation they describe, then relayed to Kafka asynchronously. This
// guarantees an audit record exists if and only if the mutation committed.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/platform/audit"
	"vigil/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// exec returns the transaction bound to the context when present, so audit
// writes commit or roll back with the domain mutation.
func (s *Store) exec(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// outboxPayload is the JSON body of an audit outbox entry.
type outboxPayload struct {
	Category     string          `json:"category"`
	Timestamp    time.Time       `json:"timestamp"`
	TenantID     string          `json:"tenant_id"`
	SubjectID    string          `json:"subject_id,omitempty"`
	Actor        string          `json:"actor"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	OldValue     json.RawMessage `json:"old_value,omitempty"`
	NewValue     json.RawMessage `json:"new_value,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(outboxPayload{
		Category:     string(event.Category),
		Timestamp:    event.Timestamp.UTC(),
		TenantID:     event.TenantID.String(),
		SubjectID:    event.SubjectID.String(),
		Actor:        event.Actor,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		OldValue:     event.OldValue,
		NewValue:     event.NewValue,
		RequestID:    event.RequestID,
		Reason:       event.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const q = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.exec(ctx).ExecContext(ctx, q,
		uuid.New(),
		"audit",
		event.ResourceID,
		event.Action,
		payload,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
