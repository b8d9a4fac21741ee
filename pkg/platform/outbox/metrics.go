package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics provides observability for the outbox relay.
type RelayMetrics struct {
	Published       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	DrainFailures   prometheus.Counter
}

// NewRelayMetrics creates a RelayMetrics instance with all relay metrics registered.
func NewRelayMetrics() *RelayMetrics {
	return &RelayMetrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_outbox_published_total",
			Help: "Total outbox entries published to Kafka by aggregate type",
		}, []string{"aggregate_type"}),
		PublishFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_outbox_publish_failures_total",
			Help: "Total outbox publish attempts that failed by aggregate type",
		}, []string{"aggregate_type"}),
		DrainFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_outbox_drain_failures_total",
			Help: "Total outbox drain cycles that failed",
		}),
	}
}

// IncPublished records a delivered entry.
func (m *RelayMetrics) IncPublished(aggregateType string) {
	if m != nil {
		m.Published.WithLabelValues(aggregateType).Inc()
	}
}

// IncPublishFailures records a failed publish attempt.
func (m *RelayMetrics) IncPublishFailures(aggregateType string) {
	if m != nil {
		m.PublishFailures.WithLabelValues(aggregateType).Inc()
	}
}

// IncDrainFailures records a failed drain cycle.
func (m *RelayMetrics) IncDrainFailures() {
	if m != nil {
		m.DrainFailures.Inc()
	}
}
