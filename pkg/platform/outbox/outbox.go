// Package outbox implements the transactional outbox pattern.
//
// Domain mutations and their events are written in one SQL transaction; a
// background relay then drains unpublished entries to Kafka. Publishing is
// at-least-once: consumers must deduplicate on entry ID.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Aggregate types routed by the relay.
const (
	AggregateAudit   = "audit"
	AggregateWebhook = "webhook"
)

// Entry is one event awaiting delivery.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// Store persists and drains outbox entries.
type Store interface {
	// Insert appends an entry, joining the transaction in ctx when present.
	Insert(ctx context.Context, entry Entry) error

	// FetchUnpublished returns up to limit unpublished entries in creation order.
	FetchUnpublished(ctx context.Context, limit int) ([]Entry, error)

	// MarkPublished stamps the given entries as delivered.
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
