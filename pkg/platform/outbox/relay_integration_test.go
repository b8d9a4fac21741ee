//go:build integration

package outbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"vigil/pkg/platform/outbox"
	outboxpostgres "vigil/pkg/platform/outbox/store/postgres"
	"vigil/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *outboxpostgres.Store
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.store = outboxpostgres.NewStore(s.postgres.DB)
}

func (s *RelaySuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "outbox")
	s.Require().NoError(err)
}

func (s *RelaySuite) TestRelayDrainsToKafka() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const prefix = "vigil-relay-test"

	producer, err := kgo.NewClient(kgo.SeedBrokers(s.redpanda.Brokers...))
	s.Require().NoError(err)
	defer producer.Close()

	relay := outbox.NewRelay(s.store, producer, prefix,
		outbox.WithPollInterval(100*time.Millisecond),
	)
	s.Require().NoError(relay.EnsureTopics(ctx))

	s.Require().NoError(s.store.Insert(ctx, outbox.Entry{
		AggregateType: outbox.AggregateAudit,
		AggregateID:   "subject-1",
		EventType:     "screening.check.completed",
		Payload:       []byte(`{"status":"clear"}`),
	}))
	s.Require().NoError(s.store.Insert(ctx, outbox.Entry{
		AggregateType: outbox.AggregateWebhook,
		AggregateID:   "subject-1",
		EventType:     "monitoring.alert.created",
		Payload:       []byte(`{"severity":"high"}`),
	}))

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go func() { _ = relay.Run(relayCtx) }()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(prefix+".audit", prefix+".events"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	records := map[string]*kgo.Record{}
	for len(records) < 2 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(fetches.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			records[r.Topic] = r
		})
	}

	auditRecord := records[prefix+".audit"]
	s.Require().NotNil(auditRecord)
	s.Equal("subject-1", string(auditRecord.Key))
	s.JSONEq(`{"status":"clear"}`, string(auditRecord.Value))
	s.Equal("screening.check.completed", headerValue(auditRecord, "event_type"))

	webhookRecord := records[prefix+".events"]
	s.Require().NotNil(webhookRecord)
	s.Equal("monitoring.alert.created", headerValue(webhookRecord, "event_type"))

	// Entries must be stamped so the next poll does not redeliver.
	s.Eventually(func() bool {
		pending, err := s.store.FetchUnpublished(ctx, 10)
		return err == nil && len(pending) == 0
	}, 10*time.Second, 100*time.Millisecond)
}

func headerValue(record *kgo.Record, key string) string {
	for _, h := range record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
