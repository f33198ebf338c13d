package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTraversalMetrics() {
	r.TraversalsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathtrace_traversals_total",
			Help: "Total number of graph traversals",
		},
		[]string{"algorithm", "status"},
	)

	r.TraversalDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathtrace_traversal_duration_seconds",
			Help:    "Graph traversal duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"algorithm"},
	)

	r.PathsFoundTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pathtrace_paths_found_total",
			Help: "Total number of paths discovered",
		},
		[]string{"algorithm", "endpoint"},
	)

	r.PathLengthSteps = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathtrace_path_length_steps",
			Help:    "Number of steps per discovered path",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"algorithm"},
	)

	r.PathCost = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pathtrace_path_cost",
			Help:    "Total cost per discovered path",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"algorithm"},
	)

	r.GraphNodesLoaded = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pathtrace_graph_nodes_loaded",
			Help: "Number of nodes in the active graph view",
		},
	)

	r.GraphLinksLoaded = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pathtrace_graph_links_loaded",
			Help: "Number of links in the active graph view",
		},
	)
}
