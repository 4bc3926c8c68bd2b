package provider

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	// KubeRayProviderID identifies the KubeRay integration.
	KubeRayProviderID = "kuberay"

	kubeRayDefaultNamespace = "kuberay-system"

	rayVersion   = "2.46.0"
	rayLLMImage  = "rayproject/ray-llm:2.46.0"
	rayServePort = 8000
)

// KubeRayProvider deploys models as RayService custom resources running
// Ray Serve with a vLLM backend. Aggregated topology only.
type KubeRayProvider struct{}

// NewKubeRayProvider creates the KubeRay provider.
func NewKubeRayProvider() *KubeRayProvider {
	return &KubeRayProvider{}
}

// Metadata implements Provider.
func (p *KubeRayProvider) Metadata() Metadata {
	return Metadata{
		ID:               KubeRayProviderID,
		Name:             "KubeRay",
		Description:      "Ray Serve deployments with a vLLM backend on Ray clusters",
		DefaultNamespace: kubeRayDefaultNamespace,
	}
}

// CRDConfig implements Provider.
func (p *KubeRayProvider) CRDConfig() CRDConfig {
	return CRDConfig{
		Group:   "ray.io",
		Version: "v1",
		Plural:  "rayservices",
		Kind:    "RayService",
	}
}

// SupportsGAIE implements Provider.
func (p *KubeRayProvider) SupportsGAIE() bool { return false }

// ValidateConfig implements Provider.
func (p *KubeRayProvider) ValidateConfig(raw map[string]interface{}) *ValidationResult {
	cfg, errs := validateBase(KubeRayProviderID, kubeRayDefaultNamespace, raw)

	if cfg.Mode == ModeDisaggregated {
		errs = append(errs, "kuberay does not support disaggregated prefill/decode deployments")
	}

	if cfg.Engine == EngineNone {
		errs = append(errs, "engine is required for kuberay deployments")
	} else if cfg.Engine != EngineVLLM {
		errs = append(errs, fmt.Sprintf("engine '%s' is not supported by kuberay (supported: vllm)", cfg.Engine))
	}

	if len(errs) > 0 {
		return invalid(errs...)
	}
	return valid(cfg)
}

// GenerateManifest implements Provider.
func (p *KubeRayProvider) GenerateManifest(cfg *DeploymentConfig) []*unstructured.Unstructured {
	workerGroup := map[string]interface{}{
		"groupName":   "llm-workers",
		"replicas":    int64(cfg.Replicas),
		"minReplicas": int64(cfg.Replicas),
		"maxReplicas": int64(cfg.Replicas),
		"rayStartParams": map[string]interface{}{
			"num-gpus": fmt.Sprintf("%d", cfg.GPUsPerReplica),
		},
		"template": map[string]interface{}{
			"spec": map[string]interface{}{
				"containers": []interface{}{
					map[string]interface{}{
						"name":      "ray-worker",
						"image":     rayLLMImage,
						"resources": gpuLimits(cfg.GPUsPerReplica),
					},
				},
			},
		},
	}

	cr := &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": p.CRDConfig().APIVersion(),
			"kind":       p.CRDConfig().Kind,
			"metadata":   manifestMetadata(cfg),
			"spec": map[string]interface{}{
				"serveConfigV2": rayServeConfig(cfg),
				"rayClusterConfig": map[string]interface{}{
					"rayVersion": rayVersion,
					"headGroupSpec": map[string]interface{}{
						"rayStartParams": map[string]interface{}{
							"dashboard-host": "0.0.0.0",
						},
						"template": map[string]interface{}{
							"spec": map[string]interface{}{
								"containers": []interface{}{
									map[string]interface{}{
										"name":  "ray-head",
										"image": rayLLMImage,
										"ports": []interface{}{
											map[string]interface{}{
												"containerPort": int64(rayServePort),
												"name":          "serve",
											},
										},
									},
								},
							},
						},
					},
					"workerGroupSpecs": []interface{}{workerGroup},
				},
			},
		},
	}

	return []*unstructured.Unstructured{cr}
}

// rayServeConfig renders the serveConfigV2 YAML block handed to Ray Serve.
func rayServeConfig(cfg *DeploymentConfig) string {
	serveCfg := fmt.Sprintf(`applications:
- name: llm
  import_path: ray.serve.llm:build_openai_app
  args:
    llm_configs:
    - model_loading_config:
        model_id: %s
      engine_kwargs:
        tensor_parallel_size: %d`, cfg.ModelID, cfg.GPUsPerReplica)
	if cfg.ContextLength > 0 {
		serveCfg += fmt.Sprintf("\n        max_model_len: %d", cfg.ContextLength)
	}
	if cfg.EnforceEager {
		serveCfg += "\n        enforce_eager: true"
	}
	if cfg.EnablePrefixCaching {
		serveCfg += "\n        enable_prefix_caching: true"
	}
	if cfg.TrustRemoteCode {
		serveCfg += "\n        trust_remote_code: true"
	}
	return serveCfg + "\n"
}

// InstallationSteps implements Provider.
func (p *KubeRayProvider) InstallationSteps() []InstallStep {
	return []InstallStep{
		{
			Title:       "Add the KubeRay Helm repository",
			Description: "Registers the chart repository hosting the KubeRay operator.",
			Command:     "helm repo add kuberay https://ray-project.github.io/kuberay-helm/",
		},
		{
			Title:       "Install the KubeRay operator",
			Description: "Installs the operator managing RayService resources.",
			Command:     "helm install kuberay-operator kuberay/kuberay-operator -n kuberay-system --create-namespace",
		},
	}
}

// HelmRepos implements Provider.
func (p *KubeRayProvider) HelmRepos() []HelmRepo {
	return []HelmRepo{
		{Name: "kuberay", URL: "https://ray-project.github.io/kuberay-helm/"},
	}
}

// HelmCharts implements Provider.
func (p *KubeRayProvider) HelmCharts() []HelmChart {
	return []HelmChart{
		{Repo: "kuberay", Chart: "kuberay-operator", Release: "kuberay-operator", Namespace: kubeRayDefaultNamespace},
	}
}
