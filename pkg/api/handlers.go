package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/klog/v2"

	"github.com/llmkube/llmkube/pkg/capacity"
	"github.com/llmkube/llmkube/pkg/provider"
	"github.com/llmkube/llmkube/pkg/status"
)

const requestTimeout = 30 * time.Second

type createDeploymentRequest struct {
	Provider string                 `json:"provider" binding:"required"`
	Config   map[string]interface{} `json:"config" binding:"required"`
}

// createDeploymentHandler resolves the provider, validates the raw config,
// runs the capacity advisory and persists the generated manifests. Capacity
// warnings never block creation; cluster admission is the final authority.
func (s *Server) createDeploymentHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var req createDeploymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.registry.Get(req.Provider)
	if err != nil {
		var notFound *provider.NotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := p.ValidateConfig(req.Config)
	if !result.Valid {
		s.recorder.RecordValidationFailure(req.Provider)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": result.Errors})
		return
	}
	cfg := result.Config

	fit := s.capacityAdvisory(ctx, cfg)
	warnings := s.engineAdvisory(cfg)

	start := time.Now()
	for _, manifest := range p.GenerateManifest(cfg) {
		if err := s.cluster.CreateCustomResource(ctx, p, manifest); err != nil {
			s.recorder.RecordDeploymentOperation(req.Provider, "create", false, time.Since(start))
			if apierrors.IsAlreadyExists(err) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
	}
	s.recorder.RecordDeploymentOperation(req.Provider, "create", true, time.Since(start))

	resp := gin.H{
		"name":      cfg.Name,
		"namespace": cfg.Namespace,
		"provider":  cfg.ProviderID,
		"modelId":   cfg.ModelID,
		"fit":       fit,
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusCreated, resp)
}

// capacityAdvisory runs the fit check against a fresh capacity snapshot.
// Inspection failures degrade to no advisory rather than blocking.
func (s *Server) capacityAdvisory(ctx context.Context, cfg *provider.DeploymentConfig) *capacity.FitResult {
	snapshot, err := s.cluster.GetClusterGpuCapacity(ctx)
	if err != nil {
		klog.Warningf("Capacity advisory unavailable: %v", err)
		return nil
	}

	modelMinGpus := 0
	if model := s.catalog.FindModel(cfg.ModelID); model != nil {
		modelMinGpus = model.MinGPUs
	}

	fit := capacity.CheckFit(cfg, snapshot, modelMinGpus)
	return &fit
}

// engineAdvisory warns when the catalog knows the model and it does not
// list the requested engine. Like the fit check it never blocks creation.
func (s *Server) engineAdvisory(cfg *provider.DeploymentConfig) []string {
	if cfg.Engine == "" {
		return nil
	}
	model := s.catalog.FindModel(cfg.ModelID)
	if model == nil || model.SupportsEngine(cfg.Engine) {
		return nil
	}
	return []string{fmt.Sprintf("model %s is not known to support engine %s (known engines: %s)",
		cfg.ModelID, cfg.Engine, strings.Join(model.Engines, ", "))}
}

func (s *Server) listDeploymentsHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	deployments := s.aggregator.List(ctx, status.ListOptions{Offset: offset, Limit: limit})
	c.JSON(http.StatusOK, gin.H{
		"deployments": deployments,
		"count":       len(deployments),
	})
}

func (s *Server) getDeploymentHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	namespace := c.Param("namespace")
	name := c.Param("name")

	_, st := s.findDeployment(ctx, c.Query("provider"), name, namespace)
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
		return
	}

	response := gin.H{"deployment": st}
	if s.podMetrics != nil {
		usage, err := s.podMetrics.GetPodMetrics(ctx, provider.DeploymentSelector(name), namespace)
		if err != nil {
			klog.V(2).Infof("Pod metrics unavailable for %s/%s: %v", namespace, name, err)
		} else {
			response["podMetrics"] = usage
		}
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) deleteDeploymentHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	namespace := c.Param("namespace")
	name := c.Param("name")

	p, st := s.findDeployment(ctx, c.Query("provider"), name, namespace)
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
		return
	}

	start := time.Now()
	if err := s.cluster.DeleteCustomResource(ctx, p, name, namespace); err != nil {
		s.recorder.RecordDeploymentOperation(p.Metadata().ID, "delete", false, time.Since(start))
		if apierrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "deployment not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	s.recorder.RecordDeploymentOperation(p.Metadata().ID, "delete", true, time.Since(start))

	c.JSON(http.StatusOK, gin.H{
		"name":      name,
		"namespace": namespace,
		"status":    "deleting",
	})
}

// findDeployment locates a deployment by name: with an explicit provider id
// when given, otherwise by probing every registered provider.
func (s *Server) findDeployment(ctx context.Context, providerID, name, namespace string) (provider.Provider, *status.DeploymentStatus) {
	var candidates []provider.Provider
	if providerID != "" {
		p, err := s.registry.Get(providerID)
		if err != nil {
			return nil, nil
		}
		candidates = []provider.Provider{p}
	} else {
		candidates = s.registry.List()
	}

	for _, p := range candidates {
		st, err := s.aggregator.Get(ctx, p, name, namespace)
		if err == nil {
			return p, st
		}
		if !apierrors.IsNotFound(err) {
			klog.Warningf("Status read failed for %s/%s via %s: %v", namespace, name, p.Metadata().ID, err)
		}
	}
	return nil, nil
}

// capacityHandler returns a fresh capacity snapshot, optionally with a GPU
// recommendation for a catalog model passed as ?model=.
func (s *Server) capacityHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	start := time.Now()
	snapshot, err := s.cluster.GetClusterGpuCapacity(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	s.recorder.RecordCapacitySnapshot(snapshot.TotalGPUs, snapshot.AvailableGPUs, time.Since(start))

	// Fall back to the local GPU when node labels carried no memory info.
	if snapshot.GPUMemoryGB == 0 && s.gpu != nil {
		snapshot.GPUMemoryGB = s.gpu.LocalGPUMemoryGB()
	}

	response := gin.H{"capacity": snapshot}
	if modelID := c.Query("model"); modelID != "" {
		rec := capacity.Recommend(s.catalog.FindModel(modelID), snapshot)
		response["recommendation"] = rec
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) providersHandler(c *gin.Context) {
	type providerInfo struct {
		provider.Metadata
		SupportsGAIE bool                   `json:"supportsGaie"`
		CRDs         []provider.CRDConfig   `json:"crds"`
		HelmRepos    []provider.HelmRepo    `json:"helmRepos"`
		HelmCharts   []provider.HelmChart   `json:"helmCharts"`
		InstallSteps []provider.InstallStep `json:"installSteps"`
	}

	var infos []providerInfo
	for _, p := range s.registry.List() {
		infos = append(infos, providerInfo{
			Metadata:     p.Metadata(),
			SupportsGAIE: p.SupportsGAIE(),
			CRDs:         provider.CRDConfigsOf(p),
			HelmRepos:    p.HelmRepos(),
			HelmCharts:   p.HelmCharts(),
			InstallSteps: p.InstallationSteps(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"providers": infos})
}

func (s *Server) modelsHandler(c *gin.Context) {
	models := s.catalog.Models()
	c.JSON(http.StatusOK, gin.H{
		"models": models,
		"count":  len(models),
	})
}

func (s *Server) autoscalerHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	info, err := s.detector.Detect(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}

func (s *Server) localGPUHandler(c *gin.Context) {
	if s.gpu == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "GPU stats not available"})
		return
	}

	gpuStats, err := s.gpu.Query()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gpuStats)
}

func (s *Server) healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
