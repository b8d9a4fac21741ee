// Package events emits webhook notifications for downstream systems.
//
// Events ride the transactional outbox: they are inserted in the same
// transaction as the mutation they announce and delivered by the relay.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vigil/pkg/platform/outbox"
)

// Event types delivered on the events topic.
const (
	TypeCheckCompleted = "screening.check.completed"
	TypeAlertCreated   = "monitoring.alert.created"
)

// Event is one webhook notification.
type Event struct {
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id"`
	SubjectID string          `json:"subject_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Emitter publishes webhook events.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// OutboxEmitter writes events to the outbox for relay delivery.
type OutboxEmitter struct {
	store outbox.Store
}

func NewOutboxEmitter(store outbox.Store) *OutboxEmitter {
	return &OutboxEmitter{store: store}
}

func (e *OutboxEmitter) Emit(ctx context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("webhook event requires Type")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}
	return e.store.Insert(ctx, outbox.Entry{
		AggregateType: outbox.AggregateWebhook,
		AggregateID:   event.SubjectID,
		EventType:     event.Type,
		Payload:       payload,
	})
}
