package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSamplingMetrics() {
	r.SampleAttemptsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathtrace_sample_attempts_total",
			Help: "Total number of pair sampling attempts",
		},
		[]string{"status"},
	)

	r.SampleRejectsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathtrace_sample_rejects_total",
			Help: "Total number of candidate pairs rejected by bias checks",
		},
		[]string{"reason"},
	)

	r.SamplerRelaxesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathtrace_sampler_relaxes_total",
			Help: "Total number of attempt-ceiling relaxations",
		},
		[]string{"level"},
	)

	r.SamplePickDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pathtrace_sample_pick_duration_seconds",
			Help:    "Time to draw one accepted pair in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		},
	)
}
