package provider

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	// KaitoProviderID identifies the Kaito integration.
	KaitoProviderID = "kaito"

	kaitoDefaultNamespace = "kaito-workspace"

	kaitoLlamaCppImage = "ghcr.io/kaito-project/kaito/llama-cpp:latest"
	kaitoVLLMImage     = "ghcr.io/kaito-project/kaito/vllm:latest"
)

// Kaito compute types.
const (
	KaitoComputeCPU = "cpu"
	KaitoComputeGPU = "gpu"
)

var (
	kaitoComputeTypes  = []string{KaitoComputeCPU, KaitoComputeGPU}
	kaitoResourceKinds = []string{KaitoResourceWorkspace, KaitoResourceInferenceSet}
)

// PremadeModel is a curated, pre-built container image for a known model.
type PremadeModel struct {
	ID          string `json:"id"`
	Image       string `json:"image"`
	ModelName   string `json:"modelName"`
	ComputeType string `json:"computeType"`
}

// PremadeCatalog resolves premade model references during Kaito validation.
type PremadeCatalog interface {
	// GetPremadeModel returns the catalog entry for id, or nil when unknown.
	GetPremadeModel(id string) *PremadeModel
}

// KaitoProvider deploys models through the Kaito operator, either as a
// Workspace or an InferenceSet depending on the requested resource kind.
// Aggregated topology only; the llama.cpp path additionally runs on CPU.
type KaitoProvider struct {
	premade PremadeCatalog
}

// NewKaitoProvider creates the Kaito provider backed by the given premade
// model catalog.
func NewKaitoProvider(premade PremadeCatalog) *KaitoProvider {
	return &KaitoProvider{premade: premade}
}

// Metadata implements Provider.
func (p *KaitoProvider) Metadata() Metadata {
	return Metadata{
		ID:               KaitoProviderID,
		Name:             "Kaito",
		Description:      "Kubernetes AI toolchain operator serving curated, HuggingFace GGUF, or vLLM workloads",
		DefaultNamespace: kaitoDefaultNamespace,
	}
}

// CRDConfig implements Provider. Workspace is the primary resource kind;
// AllCRDConfigs also covers InferenceSet.
func (p *KaitoProvider) CRDConfig() CRDConfig {
	return CRDConfig{
		Group:   "kaito.sh",
		Version: "v1beta1",
		Plural:  "workspaces",
		Kind:    KaitoResourceWorkspace,
	}
}

// InferenceSetCRDConfig returns the identity of the secondary resource kind.
func (p *KaitoProvider) InferenceSetCRDConfig() CRDConfig {
	return CRDConfig{
		Group:   "kaito.sh",
		Version: "v1alpha1",
		Plural:  "inferencesets",
		Kind:    KaitoResourceInferenceSet,
	}
}

// AllCRDConfigs returns every resource kind this provider can emit.
func (p *KaitoProvider) AllCRDConfigs() []CRDConfig {
	return []CRDConfig{p.CRDConfig(), p.InferenceSetCRDConfig()}
}

// SupportsGAIE implements Provider.
func (p *KaitoProvider) SupportsGAIE() bool { return false }

// ValidateConfig implements Provider.
func (p *KaitoProvider) ValidateConfig(raw map[string]interface{}) *ValidationResult {
	cfg, errs := validateBase(KaitoProviderID, kaitoDefaultNamespace, raw)
	r := rawConfig(raw)

	if cfg.Mode == ModeDisaggregated {
		errs = append(errs, "kaito does not support disaggregated prefill/decode deployments")
	}

	kc := &KaitoConfig{
		ModelSource:    r.str("modelSource"),
		PremadeModel:   r.str("premadeModel"),
		RunMode:        r.str("runMode"),
		GGUFFile:       r.str("ggufFile"),
		Image:          r.str("image"),
		ComputeType:    r.str("computeType"),
		InstanceType:   r.str("instanceType"),
		PreferredNodes: r.strs("preferredNodes"),
		ResourceType:   r.str("kaitoResourceType"),
	}

	if kc.ResourceType == "" {
		kc.ResourceType = KaitoResourceWorkspace
	}
	if !oneOf(kc.ResourceType, kaitoResourceKinds) {
		errs = append(errs, fmt.Sprintf("kaitoResourceType '%s' is not supported (supported: Workspace, InferenceSet)", kc.ResourceType))
	}

	switch kc.ModelSource {
	case "":
		errs = append(errs, "modelSource is required (premade, huggingface, or vllm)")
	case KaitoSourcePremade:
		errs = append(errs, p.validatePremade(cfg, kc)...)
	case KaitoSourceHuggingFace:
		errs = append(errs, p.validateHuggingFace(cfg, kc)...)
	case KaitoSourceVLLM:
		errs = append(errs, p.validateVLLM(cfg, kc)...)
	default:
		errs = append(errs, fmt.Sprintf("modelSource '%s' is not supported (supported: premade, huggingface, vllm)", kc.ModelSource))
	}

	if len(errs) > 0 {
		return invalid(errs...)
	}
	cfg.Kaito = kc
	return valid(cfg)
}

func (p *KaitoProvider) validatePremade(cfg *DeploymentConfig, kc *KaitoConfig) []string {
	var errs []string
	if cfg.Engine != EngineNone {
		errs = append(errs, "engine must not be set for the premade model source")
	}
	if kc.PremadeModel == "" {
		return append(errs, "premadeModel is required for the premade model source")
	}
	entry := p.lookupPremade(kc.PremadeModel)
	if entry == nil {
		return append(errs, fmt.Sprintf("premade model '%s' not found in the premade catalog", kc.PremadeModel))
	}
	kc.Image = entry.Image
	kc.ModelName = entry.ModelName
	kc.ComputeType = entry.ComputeType
	if !oneOf(kc.ComputeType, kaitoComputeTypes) {
		errs = append(errs, fmt.Sprintf("premade model '%s' declares unknown compute type '%s'", kc.PremadeModel, kc.ComputeType))
	}
	return errs
}

func (p *KaitoProvider) validateHuggingFace(cfg *DeploymentConfig, kc *KaitoConfig) []string {
	var errs []string
	if cfg.Engine != EngineNone {
		errs = append(errs, "engine must not be set for the huggingface model source")
	}
	if kc.ComputeType == "" {
		kc.ComputeType = KaitoComputeCPU
	}
	if !oneOf(kc.ComputeType, kaitoComputeTypes) {
		errs = append(errs, fmt.Sprintf("computeType '%s' is not supported (supported: cpu, gpu)", kc.ComputeType))
	}
	switch kc.RunMode {
	case "":
		errs = append(errs, "runMode is required for the huggingface model source (direct or build)")
	case KaitoRunModeDirect:
		if kc.GGUFFile == "" {
			errs = append(errs, "ggufFile is required for the direct run mode")
		}
	case KaitoRunModeBuild:
		// The image is resolved by an external build step before validation;
		// its absence here means that step has not run.
		if kc.Image == "" {
			errs = append(errs, "image is required for the build run mode (run the image build first)")
		}
	default:
		errs = append(errs, fmt.Sprintf("runMode '%s' is not supported (supported: direct, build)", kc.RunMode))
	}
	return errs
}

func (p *KaitoProvider) validateVLLM(cfg *DeploymentConfig, kc *KaitoConfig) []string {
	var errs []string
	if cfg.Engine != EngineNone && cfg.Engine != EngineVLLM {
		errs = append(errs, fmt.Sprintf("engine '%s' is not supported by the vllm model source", cfg.Engine))
	}
	cfg.Engine = EngineVLLM
	// The vllm source always runs on GPU and ignores premade/GGUF fields.
	kc.ComputeType = KaitoComputeGPU
	kc.PremadeModel = ""
	kc.GGUFFile = ""
	kc.RunMode = ""
	if cfg.GPUsPerReplica < 1 {
		errs = append(errs, "gpusPerReplica must be at least 1 for the vllm model source")
	}
	return errs
}

func (p *KaitoProvider) lookupPremade(id string) *PremadeModel {
	if p.premade == nil {
		return nil
	}
	return p.premade.GetPremadeModel(id)
}

// GenerateManifest implements Provider. The two resource kinds are
// structurally different trees: a Workspace carries the machine sizing in a
// top-level resource block and the inference spec beside it, while an
// InferenceSet has no resource block and nests the inference spec under
// spec.template with spec.replicas for scale.
func (p *KaitoProvider) GenerateManifest(cfg *DeploymentConfig) []*unstructured.Unstructured {
	if cfg.Kaito.ResourceType == KaitoResourceInferenceSet {
		return []*unstructured.Unstructured{p.inferenceSetManifest(cfg)}
	}
	return []*unstructured.Unstructured{p.workspaceManifest(cfg)}
}

func (p *KaitoProvider) workspaceManifest(cfg *DeploymentConfig) *unstructured.Unstructured {
	resource := map[string]interface{}{
		"count": int64(p.resourceCount(cfg)),
		"labelSelector": map[string]interface{}{
			"matchLabels": map[string]interface{}{
				LabelName: cfg.Name,
			},
		},
	}
	if cfg.Kaito.InstanceType != "" {
		resource["instanceType"] = cfg.Kaito.InstanceType
	}
	if len(cfg.Kaito.PreferredNodes) > 0 {
		nodes := make([]interface{}, 0, len(cfg.Kaito.PreferredNodes))
		for _, n := range cfg.Kaito.PreferredNodes {
			nodes = append(nodes, n)
		}
		resource["preferredNodes"] = nodes
	}

	crd := p.CRDConfig()
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": crd.APIVersion(),
			"kind":       crd.Kind,
			"metadata":   manifestMetadata(cfg),
			"resource":   resource,
			"inference":  p.inferenceSpec(cfg),
		},
	}
}

func (p *KaitoProvider) inferenceSetManifest(cfg *DeploymentConfig) *unstructured.Unstructured {
	crd := p.InferenceSetCRDConfig()
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": crd.APIVersion(),
			"kind":       crd.Kind,
			"metadata":   manifestMetadata(cfg),
			"spec": map[string]interface{}{
				"replicas": int64(cfg.Replicas),
				"template": p.inferenceSetTemplate(cfg),
			},
		},
	}
}

// resourceCount is the Workspace machine count: one machine per GPU for GPU
// compute, one per replica for CPU compute.
func (p *KaitoProvider) resourceCount(cfg *DeploymentConfig) int {
	if cfg.Kaito.ComputeType == KaitoComputeGPU {
		return cfg.GPUsPerReplica
	}
	return cfg.Replicas
}

// inferenceSpec builds the top-level inference block of a Workspace.
func (p *KaitoProvider) inferenceSpec(cfg *DeploymentConfig) map[string]interface{} {
	if cfg.Kaito.ModelSource == KaitoSourcePremade {
		return map[string]interface{}{"preset": p.presetSpec(cfg)}
	}
	return map[string]interface{}{"template": p.podTemplate(cfg)}
}

// inferenceSetTemplate builds the spec.template block of an InferenceSet.
// Unlike a Workspace, the pod template of a template-based source sits
// directly at spec.template, so containers land at
// spec.template.spec.containers without an extra template wrapper.
func (p *KaitoProvider) inferenceSetTemplate(cfg *DeploymentConfig) map[string]interface{} {
	if cfg.Kaito.ModelSource == KaitoSourcePremade {
		return map[string]interface{}{"preset": p.presetSpec(cfg)}
	}
	return p.podTemplate(cfg)
}

func (p *KaitoProvider) presetSpec(cfg *DeploymentConfig) map[string]interface{} {
	return map[string]interface{}{
		"name": cfg.Kaito.ModelName,
		"presetOptions": map[string]interface{}{
			"image": cfg.Kaito.Image,
		},
	}
}

// podTemplate builds the pod template for the template-based model sources.
func (p *KaitoProvider) podTemplate(cfg *DeploymentConfig) map[string]interface{} {
	if cfg.Kaito.ModelSource == KaitoSourceVLLM {
		return kaitoPodTemplate(cfg, kaitoVLLMImage, engineArgs(cfg))
	}
	image := cfg.Kaito.Image
	args := []interface{}{"--hf-repo", cfg.ModelID}
	if cfg.Kaito.RunMode == KaitoRunModeDirect {
		image = kaitoLlamaCppImage
		args = append(args, "--hf-file", cfg.Kaito.GGUFFile)
	}
	if cfg.ContextLength > 0 {
		args = append(args, "--ctx-size", fmt.Sprintf("%d", cfg.ContextLength))
	}
	return kaitoPodTemplate(cfg, image, args)
}

// kaitoPodTemplate builds the pod template used by template-based inference
// specs. GPU limits are attached only for GPU compute.
func kaitoPodTemplate(cfg *DeploymentConfig, image string, args []interface{}) map[string]interface{} {
	container := map[string]interface{}{
		"name":  "inference",
		"image": image,
		"args":  args,
	}
	if cfg.Kaito.ComputeType == KaitoComputeGPU {
		container["resources"] = gpuLimits(cfg.GPUsPerReplica)
	}
	return map[string]interface{}{
		"spec": map[string]interface{}{
			"containers": []interface{}{container},
		},
	}
}

// InstallationSteps implements Provider.
func (p *KaitoProvider) InstallationSteps() []InstallStep {
	return []InstallStep{
		{
			Title:       "Install the Kaito workspace operator",
			Description: "Installs the operator managing Workspace and InferenceSet resources.",
			Command:     "helm install kaito-workspace oci://mcr.microsoft.com/aks/kaito/workspace --version 0.8.0 -n kaito-workspace --create-namespace",
		},
	}
}

// HelmRepos implements Provider. Kaito charts ship from an OCI registry, so
// no classic repository needs registering.
func (p *KaitoProvider) HelmRepos() []HelmRepo { return nil }

// HelmCharts implements Provider.
func (p *KaitoProvider) HelmCharts() []HelmChart {
	return []HelmChart{
		{Repo: "oci://mcr.microsoft.com/aks/kaito", Chart: "workspace", Release: "kaito-workspace", Namespace: kaitoDefaultNamespace, Version: "0.8.0"},
	}
}

// CRDConfigsOf returns every CRD identity p can emit. Providers with a
// single resource kind report just their primary config.
func CRDConfigsOf(p Provider) []CRDConfig {
	type multiKind interface {
		AllCRDConfigs() []CRDConfig
	}
	if mk, ok := p.(multiKind); ok {
		return mk.AllCRDConfigs()
	}
	return []CRDConfig{p.CRDConfig()}
}
