// Package metrics provides observability for monitoring passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the monitoring module. All methods are nil-safe.
type Metrics struct {
	// Per-subject outcomes within a batch (screened, alerted, error, skipped)
	SubjectOutcome *prometheus.CounterVec

	// Alerts created by severity
	AlertsCreated *prometheus.CounterVec

	// Full batch duration
	BatchLatency prometheus.Histogram

	// Subjects processed per batch
	BatchSize prometheus.Histogram
}

// New creates a Metrics instance with all monitoring metrics registered.
func New() *Metrics {
	return &Metrics{
		SubjectOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_monitoring_subjects_total",
			Help: "Total monitored subjects processed by outcome",
		}, []string{"outcome"}),

		AlertsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_monitoring_alerts_total",
			Help: "Total monitoring alerts created by severity",
		}, []string{"severity"}),

		BatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_monitoring_batch_duration_seconds",
			Help:    "Duration of full monitoring batch passes",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		}),

		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_monitoring_batch_subjects",
			Help:    "Number of subjects per monitoring batch",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
		}),
	}
}

// IncSubjectOutcome records one subject's batch outcome.
func (m *Metrics) IncSubjectOutcome(outcome string) {
	if m != nil {
		m.SubjectOutcome.WithLabelValues(outcome).Inc()
	}
}

// IncAlertCreated records a new alert.
func (m *Metrics) IncAlertCreated(severity string) {
	if m != nil {
		m.AlertsCreated.WithLabelValues(severity).Inc()
	}
}

// ObserveBatch records a completed batch pass.
func (m *Metrics) ObserveBatch(subjects int, d time.Duration) {
	if m != nil {
		m.BatchSize.Observe(float64(subjects))
		m.BatchLatency.Observe(d.Seconds())
	}
}
