package provider

import (
	"fmt"
	"strconv"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	// DynamoProviderID identifies the NVIDIA Dynamo integration.
	DynamoProviderID = "dynamo"

	dynamoDefaultNamespace = "dynamo-system"
)

var dynamoEngines = []string{EngineVLLM, EngineSGLang, EngineTRTLLM}

var dynamoRouterModes = []string{RouterModeNone, RouterModeKVAware, RouterModeRoundRobin}

// DynamoProvider deploys models as DynamoGraphDeployment custom resources.
// It is the only provider supporting the disaggregated prefill/decode
// topology.
type DynamoProvider struct{}

// NewDynamoProvider creates the Dynamo provider.
func NewDynamoProvider() *DynamoProvider {
	return &DynamoProvider{}
}

// Metadata implements Provider.
func (p *DynamoProvider) Metadata() Metadata {
	return Metadata{
		ID:               DynamoProviderID,
		Name:             "NVIDIA Dynamo",
		Description:      "Datacenter-scale distributed inference with KV-aware routing and prefill/decode disaggregation",
		DefaultNamespace: dynamoDefaultNamespace,
	}
}

// CRDConfig implements Provider.
func (p *DynamoProvider) CRDConfig() CRDConfig {
	return CRDConfig{
		Group:   "nvidia.com",
		Version: "v1alpha1",
		Plural:  "dynamographdeployments",
		Kind:    "DynamoGraphDeployment",
	}
}

// SupportsGAIE implements Provider.
func (p *DynamoProvider) SupportsGAIE() bool { return true }

// ValidateConfig implements Provider.
func (p *DynamoProvider) ValidateConfig(raw map[string]interface{}) *ValidationResult {
	cfg, errs := validateBase(DynamoProviderID, dynamoDefaultNamespace, raw)

	if cfg.Engine == EngineNone {
		errs = append(errs, "engine is required for dynamo deployments")
	} else if !oneOf(cfg.Engine, dynamoEngines) {
		errs = append(errs, fmt.Sprintf("engine '%s' is not supported by dynamo (supported: vllm, sglang, trtllm)", cfg.Engine))
	}

	routerMode := rawConfig(raw).str("routerMode")
	switch cfg.Mode {
	case ModeAggregated:
		if routerMode == "" {
			routerMode = RouterModeNone
		}
		if !oneOf(routerMode, dynamoRouterModes) {
			errs = append(errs, fmt.Sprintf("routerMode '%s' is not supported (supported: none, kv-aware, round-robin)", routerMode))
		}
		cfg.RouterMode = routerMode
	case ModeDisaggregated:
		// Routing is implicit in the graph; a router mode here would be
		// silently meaningless, so reject it.
		if routerMode != "" {
			errs = append(errs, "routerMode is not applicable in disaggregated mode")
		}
	}

	if len(errs) > 0 {
		return invalid(errs...)
	}
	return valid(cfg)
}

// GenerateManifest implements Provider.
func (p *DynamoProvider) GenerateManifest(cfg *DeploymentConfig) []*unstructured.Unstructured {
	services := map[string]interface{}{
		"Frontend": map[string]interface{}{
			"componentType": "frontend",
			"replicas":      int64(1),
		},
	}

	if cfg.Mode == ModeDisaggregated {
		services["PrefillWorker"] = dynamoWorkerSpec(cfg, cfg.PrefillReplicas, cfg.PrefillGPUs, "prefill")
		services["DecodeWorker"] = dynamoWorkerSpec(cfg, cfg.DecodeReplicas, cfg.DecodeGPUs, "decode")
	} else {
		worker := dynamoWorkerSpec(cfg, cfg.Replicas, cfg.GPUsPerReplica, "")
		worker["routerMode"] = cfg.RouterMode
		services["Worker"] = worker
	}

	cr := &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": p.CRDConfig().APIVersion(),
			"kind":       p.CRDConfig().Kind,
			"metadata":   manifestMetadata(cfg),
			"spec": map[string]interface{}{
				"backendFramework": cfg.Engine,
				"services":         services,
			},
		},
	}

	return []*unstructured.Unstructured{cr}
}

// dynamoWorkerSpec builds one worker service entry. role is empty for the
// aggregated worker and prefill/decode for the disaggregated pair.
func dynamoWorkerSpec(cfg *DeploymentConfig, replicas, gpus int, role string) map[string]interface{} {
	worker := map[string]interface{}{
		"componentType": "worker",
		"replicas":      int64(replicas),
		"resources": map[string]interface{}{
			"limits": map[string]interface{}{
				"gpu": strconv.Itoa(gpus),
			},
		},
		"extraArgs": engineArgs(cfg),
	}
	if role != "" {
		worker["subComponentType"] = role
	}
	return worker
}

// engineArgs renders the engine flag set shared by all workers of a
// deployment. Order is fixed so repeated generation is byte-identical.
func engineArgs(cfg *DeploymentConfig) []interface{} {
	args := []interface{}{"--model", cfg.ModelID}
	if cfg.ContextLength > 0 {
		args = append(args, "--max-model-len", strconv.Itoa(cfg.ContextLength))
	}
	if cfg.EnforceEager {
		args = append(args, "--enforce-eager")
	}
	if cfg.EnablePrefixCaching {
		args = append(args, "--enable-prefix-caching")
	}
	if cfg.TrustRemoteCode {
		args = append(args, "--trust-remote-code")
	}
	return args
}

// InstallationSteps implements Provider.
func (p *DynamoProvider) InstallationSteps() []InstallStep {
	return []InstallStep{
		{
			Title:       "Add the NVIDIA Dynamo Helm repository",
			Description: "Registers the NGC chart repository hosting the Dynamo operator.",
			Command:     "helm repo add dynamo https://helm.ngc.nvidia.com/nvidia/ai-dynamo",
		},
		{
			Title:       "Install the Dynamo CRDs",
			Description: "Installs the DynamoGraphDeployment custom resource definitions.",
			Command:     "helm install dynamo-crds dynamo/dynamo-crds -n dynamo-system --create-namespace",
		},
		{
			Title:       "Install the Dynamo platform",
			Description: "Installs the Dynamo operator and supporting services.",
			Command:     "helm install dynamo-platform dynamo/dynamo-platform -n dynamo-system",
		},
	}
}

// HelmRepos implements Provider.
func (p *DynamoProvider) HelmRepos() []HelmRepo {
	return []HelmRepo{
		{Name: "dynamo", URL: "https://helm.ngc.nvidia.com/nvidia/ai-dynamo"},
	}
}

// HelmCharts implements Provider.
func (p *DynamoProvider) HelmCharts() []HelmChart {
	return []HelmChart{
		{Repo: "dynamo", Chart: "dynamo-crds", Release: "dynamo-crds", Namespace: dynamoDefaultNamespace},
		{Repo: "dynamo", Chart: "dynamo-platform", Release: "dynamo-platform", Namespace: dynamoDefaultNamespace},
	}
}
