// Package observability holds the process-wide Prometheus metrics bundle
// and the OTLP tracing pipeline, per spec.md §6.3–§6.4. The metrics are
// built and registered on the caller's registry exactly once (spec.md §5: "the metrics registry is process-wide and
// registered exactly once at start"), following the teacher's
// sync.Once-guarded registration pattern.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every metric this operator exposes on /metrics, per
// spec.md §6.3.
type Metrics struct {
	PreviewCreatedTotal prometheus.Counter
	PreviewActive       prometheus.Gauge
	RolloutsTotal       *prometheus.CounterVec
	RolloutStepLatency  prometheus.Histogram
}

var (
	once     sync.Once
	instance *Metrics
)

// Register builds and registers every metric against reg exactly once per
// process; subsequent calls return the first-built instance, ignoring reg.
func Register(reg prometheus.Registerer) *Metrics {
	once.Do(func() {
		instance = &Metrics{
			PreviewCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "phgit_preview_created_total",
				Help: "Total number of Preview environments created.",
			}),
			PreviewActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "phgit_preview_active",
				Help: "Number of Preview environments currently deployed.",
			}),
			RolloutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "phgit_rollouts_total",
				Help: "Total number of Release rollouts by strategy and outcome.",
			}, []string{"strategy", "status"}),
			RolloutStepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "phgit_rollout_step_latency_seconds",
				Help:    "Time spent in the Progressing phase before leaving it.",
				Buckets: []float64{10, 30, 60, 120, 300, 600},
			}),
		}
		reg.MustRegister(
			instance.PreviewCreatedTotal,
			instance.PreviewActive,
			instance.RolloutsTotal,
			instance.RolloutStepLatency,
		)
	})
	return instance
}
