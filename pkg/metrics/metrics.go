package metrics

import (
	"time"
)

// RecordTraversal records a completed traversal with its duration
func (r *Registry) RecordTraversal(algorithm, status string, duration time.Duration) {
	r.TraversalsTotal.WithLabelValues(algorithm, status).Inc()
	r.TraversalDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
}

// RecordPath records one discovered path
func (r *Registry) RecordPath(algorithm, endpoint string, steps int, cost float64) {
	r.PathsFoundTotal.WithLabelValues(algorithm, endpoint).Inc()
	r.PathLengthSteps.WithLabelValues(algorithm).Observe(float64(steps))
	r.PathCost.WithLabelValues(algorithm).Observe(cost)
}

// SetGraphSize records the size of the active graph view
func (r *Registry) SetGraphSize(nodes, links int) {
	r.GraphNodesLoaded.Set(float64(nodes))
	r.GraphLinksLoaded.Set(float64(links))
}

// RecordSampleAttempt records one sampling attempt outcome
func (r *Registry) RecordSampleAttempt(status string) {
	r.SampleAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordSampleReject records a bias-check rejection
func (r *Registry) RecordSampleReject(reason string) {
	r.SampleRejectsTotal.WithLabelValues(reason).Inc()
}

// UpdateCoverage records a coverage reading for a run
func (r *Registry) UpdateCoverage(runID string, nodesCovered, linksCovered int, ratio float64) {
	r.CoverageRatio.WithLabelValues(runID).Set(ratio)
	r.CoverageNodesCovered.WithLabelValues(runID).Set(float64(nodesCovered))
	r.CoverageLinksCovered.WithLabelValues(runID).Set(float64(linksCovered))
}

// RecordValidation records one validation battery run
func (r *Registry) RecordValidation(duration time.Duration, findings map[string]map[string]int) {
	r.ValidationRunDuration.Observe(duration.Seconds())
	for severity, scopes := range findings {
		for scope, n := range scopes {
			r.ValidationFindingsTotal.WithLabelValues(severity, scope).Add(float64(n))
		}
	}
}

// RecordStoreOperation records a store operation
func (r *Registry) RecordStoreOperation(operation, status string, duration time.Duration) {
	r.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	r.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRun records a finished analysis run
func (r *Registry) RecordRun(approach, status string, duration time.Duration, pathsPersisted int) {
	r.RunsTotal.WithLabelValues(approach, status).Inc()
	r.RunDuration.Observe(duration.Seconds())
	r.RunPathsPersisted.Add(float64(pathsPersisted))
}
