// Package metrics provides observability for screening runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the screening module. All methods are nil-safe so tests
// and callers without metrics wired can pass nil.
type Metrics struct {
	// Run outcomes by terminal status (clear, hit, error)
	RunOutcome *prometheus.CounterVec

	// Hits produced per run
	HitsPerRun prometheus.Histogram

	// Provider call latency
	ProviderLatency prometheus.Histogram

	// Full run latency including persistence
	RunLatency prometheus.Histogram

	// Runs rejected because the subject was already being screened
	LockContention prometheus.Counter
}

// New creates a Metrics instance with all screening metrics registered.
func New() *Metrics {
	return &Metrics{
		RunOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_screening_runs_total",
			Help: "Total screening runs by terminal status",
		}, []string{"status"}),

		HitsPerRun: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_screening_hits_per_run",
			Help:    "Number of hits produced per screening run",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		ProviderLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_screening_provider_duration_seconds",
			Help:    "Duration of screening provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		RunLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_screening_run_duration_seconds",
			Help:    "Duration of full screening runs including persistence",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		LockContention: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigil_screening_lock_contention_total",
			Help: "Screening runs rejected because the subject was locked",
		}),
	}
}

// IncRunOutcome records a run reaching a terminal status.
func (m *Metrics) IncRunOutcome(status string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(status).Inc()
	}
}

// ObserveHits records the hit count of a completed run.
func (m *Metrics) ObserveHits(n int) {
	if m != nil {
		m.HitsPerRun.Observe(float64(n))
	}
}

// ObserveProviderLatency records the duration of one provider call.
func (m *Metrics) ObserveProviderLatency(d time.Duration) {
	if m != nil {
		m.ProviderLatency.Observe(d.Seconds())
	}
}

// ObserveRunLatency records the duration of one full run.
func (m *Metrics) ObserveRunLatency(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}

// IncLockContention records a run rejected by the per-subject lock.
func (m *Metrics) IncLockContention() {
	if m != nil {
		m.LockContention.Inc()
	}
}
