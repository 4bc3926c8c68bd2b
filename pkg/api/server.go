// Package api wires the core packages to a thin gin HTTP surface. Handlers
// translate between HTTP and the core; no deployment logic lives here.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/llmkube/llmkube/pkg/autoscaler"
	"github.com/llmkube/llmkube/pkg/capacity"
	"github.com/llmkube/llmkube/pkg/catalog"
	"github.com/llmkube/llmkube/pkg/kubernetes"
	"github.com/llmkube/llmkube/pkg/provider"
	"github.com/llmkube/llmkube/pkg/stats"
	"github.com/llmkube/llmkube/pkg/status"
)

// Cluster is the cluster surface the handlers need. *kubernetes.ClusterClient
// satisfies it.
type Cluster interface {
	status.ClusterState
	CreateCustomResource(ctx context.Context, p provider.Provider, manifest *unstructured.Unstructured) error
	DeleteCustomResource(ctx context.Context, p provider.Provider, name, namespace string) error
	GetClusterGpuCapacity(ctx context.Context) (*capacity.ClusterGpuCapacity, error)
}

// AutoscalerDetector abstracts autoscaler detection for testing.
type AutoscalerDetector interface {
	Detect(ctx context.Context) (*autoscaler.Info, error)
}

// Server holds the handler dependencies.
type Server struct {
	registry   *provider.Registry
	catalog    *catalog.Catalog
	cluster    Cluster
	aggregator *status.Aggregator
	detector   AutoscalerDetector
	podMetrics *kubernetes.MetricsClient
	gpu        *stats.GPUStatsHandler
	recorder   *stats.MetricsRecorder
}

// Options carries optional collaborators.
type Options struct {
	PodMetrics *kubernetes.MetricsClient
	GPU        *stats.GPUStatsHandler
}

// NewServer creates the API server around its collaborators.
func NewServer(registry *provider.Registry, cat *catalog.Catalog, cluster Cluster, detector AutoscalerDetector, opts Options) *Server {
	return &Server{
		registry:   registry,
		catalog:    cat,
		cluster:    cluster,
		aggregator: status.NewAggregator(cluster, registry),
		detector:   detector,
		podMetrics: opts.PodMetrics,
		gpu:        opts.GPU,
		recorder:   stats.NewMetricsRecorder(),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.metricsMiddleware())

	router.GET("/healthz", s.healthzHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/deployments", s.createDeploymentHandler)
		v1.GET("/deployments", s.listDeploymentsHandler)
		v1.GET("/deployments/:namespace/:name", s.getDeploymentHandler)
		v1.DELETE("/deployments/:namespace/:name", s.deleteDeploymentHandler)
		v1.GET("/capacity", s.capacityHandler)
		v1.GET("/providers", s.providersHandler)
		v1.GET("/models", s.modelsHandler)
		v1.GET("/autoscaler", s.autoscalerHandler)
		v1.GET("/gpu/local", s.localGPUHandler)
	}

	return router
}
