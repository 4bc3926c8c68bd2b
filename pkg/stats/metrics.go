// Package stats provides Prometheus metrics collection and local GPU
// statistics.
package stats

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmkube_requests_total",
			Help: "Total number of API requests received",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmkube_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Deployment lifecycle metrics
	deploymentOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmkube_deployment_operations_total",
			Help: "Total number of deployment operations",
		},
		[]string{"provider", "operation", "status"},
	)

	deploymentOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llmkube_deployment_operation_duration_seconds",
			Help:    "Deployment operation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)

	validationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llmkube_validation_failures_total",
			Help: "Total number of deployment requests rejected by validation",
		},
		[]string{"provider"},
	)

	// Capacity snapshot metrics, refreshed on each capacity query
	capacityTotalGpus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "llmkube_cluster_gpus_total",
			Help: "Total allocatable GPUs in the cluster",
		},
	)

	capacityAvailableGpus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "llmkube_cluster_gpus_available",
			Help: "GPUs not requested by any non-terminal pod",
		},
	)

	capacityQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llmkube_capacity_query_duration_seconds",
			Help:    "Time taken to inspect cluster GPU capacity",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)
)

// MetricsRecorder handles recording metrics
type MetricsRecorder struct{}

// NewMetricsRecorder creates a new metrics recorder
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordRequest records an API request with its metrics
func (mr *MetricsRecorder) RecordRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	requestsTotal.WithLabelValues(method, path, statusStr).Inc()
	requestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// RecordDeploymentOperation records a create/delete/status operation against
// a provider.
func (mr *MetricsRecorder) RecordDeploymentOperation(provider, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	deploymentOps.WithLabelValues(provider, operation, status).Inc()
	if success {
		deploymentOpDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	}
}

// RecordValidationFailure counts a request rejected by provider validation.
func (mr *MetricsRecorder) RecordValidationFailure(provider string) {
	validationFailures.WithLabelValues(provider).Inc()
}

// RecordCapacitySnapshot publishes the latest capacity inspection result.
func (mr *MetricsRecorder) RecordCapacitySnapshot(totalGpus, availableGpus int, queryDuration time.Duration) {
	capacityTotalGpus.Set(float64(totalGpus))
	capacityAvailableGpus.Set(float64(availableGpus))
	capacityQueryDuration.Observe(queryDuration.Seconds())
}
