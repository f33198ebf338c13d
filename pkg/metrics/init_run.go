package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRunMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathtrace_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"approach", "status"},
	)

	r.RunDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pathtrace_run_duration_seconds",
			Help:    "Analysis run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)

	r.RunPathsPersisted = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pathtrace_run_paths_persisted_total",
			Help: "Total number of paths persisted across runs",
		},
	)
}
