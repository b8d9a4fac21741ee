package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
)

// Relay drains unpublished outbox entries to Kafka. It is single-instance:
// run one relay per deployment, or accept duplicate delivery.
type Relay struct {
	store       Store
	client      *kgo.Client
	topicPrefix string
	logger      *slog.Logger
	metrics     *RelayMetrics

	batchSize    int
	pollInterval time.Duration
}

// RelayOption configures the Relay.
type RelayOption func(*Relay)

// WithRelayLogger sets a logger for delivery errors.
func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) { r.logger = logger }
}

// WithRelayMetrics sets the metrics collector.
func WithRelayMetrics(m *RelayMetrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

// WithBatchSize overrides how many entries are drained per poll.
func WithBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batchSize = n }
}

// WithPollInterval overrides how often the outbox is polled.
func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.pollInterval = d }
}

// NewRelay creates a relay publishing to topics under topicPrefix
// (e.g. prefix "vigil" produces "vigil.audit" and "vigil.events").
func NewRelay(store Store, client *kgo.Client, topicPrefix string, opts ...RelayOption) *Relay {
	r := &Relay{
		store:        store,
		client:       client,
		topicPrefix:  topicPrefix,
		logger:       slog.Default(),
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureTopics creates the relay's topics when they do not exist yet.
func (r *Relay) EnsureTopics(ctx context.Context) error {
	adm := kadm.NewClient(r.client)
	topics := []string{r.topic(AggregateAudit), r.topic(AggregateWebhook)}
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Run polls the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil {
				r.metrics.IncDrainFailures()
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// drain publishes one batch of unpublished entries and marks them delivered.
func (r *Relay) drain(ctx context.Context) error {
	entries, err := r.store.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("fetch unpublished: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		record := &kgo.Record{
			Topic: r.topic(entry.AggregateType),
			Key:   []byte(entry.AggregateID),
			Value: entry.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(entry.EventType)},
				{Key: "outbox_id", Value: []byte(entry.ID.String())},
			},
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			r.metrics.IncPublishFailures(entry.AggregateType)
			r.logger.ErrorContext(ctx, "outbox publish failed",
				"entry_id", entry.ID,
				"aggregate_type", entry.AggregateType,
				"error", err,
			)
			// Stop at first failure to preserve per-aggregate ordering.
			break
		}
		r.metrics.IncPublished(entry.AggregateType)
		published = append(published, entry)
	}

	if len(published) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(published))
	for i, e := range published {
		ids[i] = e.ID
	}
	if err := r.store.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (r *Relay) topic(aggregateType string) string {
	switch aggregateType {
	case AggregateWebhook:
		return r.topicPrefix + ".events"
	default:
		return r.topicPrefix + "." + strings.ToLower(aggregateType)
	}
}
