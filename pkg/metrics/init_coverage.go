package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCoverageMetrics() {
	r.CoverageRatio = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathtrace_coverage_ratio",
			Help: "Combined node and link coverage ratio per run",
		},
		[]string{"run_id"},
	)

	r.CoverageNodesCovered = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathtrace_coverage_nodes_covered",
			Help: "Number of distinct nodes covered per run",
		},
		[]string{"run_id"},
	)

	r.CoverageLinksCovered = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pathtrace_coverage_links_covered",
			Help: "Number of distinct links covered per run",
		},
		[]string{"run_id"},
	)
}
