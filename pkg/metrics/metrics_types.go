package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// Traversal Metrics
	TraversalsTotal   *prometheus.CounterVec
	TraversalDuration *prometheus.HistogramVec
	PathsFoundTotal   *prometheus.CounterVec
	PathLengthSteps   *prometheus.HistogramVec
	PathCost          *prometheus.HistogramVec
	GraphNodesLoaded  prometheus.Gauge
	GraphLinksLoaded  prometheus.Gauge

	// Sampling Metrics
	SampleAttemptsTotal *prometheus.CounterVec
	SampleRejectsTotal  *prometheus.CounterVec
	SamplerRelaxesTotal *prometheus.CounterVec
	SamplePickDuration  prometheus.Histogram

	// Coverage Metrics
	CoverageRatio        *prometheus.GaugeVec
	CoverageNodesCovered *prometheus.GaugeVec
	CoverageLinksCovered *prometheus.GaugeVec

	// Validation Metrics
	ValidationFindingsTotal *prometheus.CounterVec
	ValidationRunDuration   prometheus.Histogram

	// Store Metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Run Metrics
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	RunPathsPersisted prometheus.Counter

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	// Initialize all metrics
	r.initTraversalMetrics()
	r.initSamplingMetrics()
	r.initCoverageMetrics()
	r.initValidationMetrics()
	r.initStoreMetrics()
	r.initRunMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
