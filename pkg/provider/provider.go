// Package provider implements the inference runtime integrations (Dynamo,
// KubeRay, Kaito) behind a single capability contract: validate a raw
// deployment request into a typed config, then synthesize the runtime's
// custom resource manifest.
package provider

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// CRDConfig identifies the custom resource type a provider manages.
type CRDConfig struct {
	Group   string `json:"group"`
	Version string `json:"version"`
	Plural  string `json:"plural"`
	Kind    string `json:"kind"`
}

// GroupVersionResource returns the schema GVR for dynamic client calls.
func (c CRDConfig) GroupVersionResource() schema.GroupVersionResource {
	return schema.GroupVersionResource{
		Group:    c.Group,
		Version:  c.Version,
		Resource: c.Plural,
	}
}

// APIVersion returns the group/version string used in manifests.
func (c CRDConfig) APIVersion() string {
	return c.Group + "/" + c.Version
}

// Metadata describes a provider for listing purposes.
type Metadata struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	DefaultNamespace string `json:"defaultNamespace"`
}

// HelmRepo is a Helm repository a provider's controller is installed from.
type HelmRepo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// HelmChart is a chart release required to run a provider's controller.
type HelmChart struct {
	Repo      string `json:"repo"`
	Chart     string `json:"chart"`
	Release   string `json:"release"`
	Namespace string `json:"namespace"`
	Version   string `json:"version,omitempty"`
}

// InstallStep is one human-readable step of a provider's install procedure.
type InstallStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Command     string `json:"command,omitempty"`
}

// ValidationResult is the outcome of validating a raw deployment request.
// Validation failures are reported as a list of messages, never as Go
// errors: a bad request is a normal domain outcome the caller corrects.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []string          `json:"errors,omitempty"`
	Config *DeploymentConfig `json:"-"`
}

func invalid(errs ...string) *ValidationResult {
	return &ValidationResult{Valid: false, Errors: errs}
}

func valid(cfg *DeploymentConfig) *ValidationResult {
	return &ValidationResult{Valid: true, Config: cfg}
}

// Provider is the capability set every runtime integration implements.
// ValidateConfig and GenerateManifest are pure and never touch the network.
type Provider interface {
	// Metadata returns the provider's identity for listings.
	Metadata() Metadata

	// ValidateConfig structurally and semantically validates a raw request
	// and produces a fully populated DeploymentConfig on success. It fails
	// closed: a missing required field is an error, never a silent default.
	ValidateConfig(raw map[string]interface{}) *ValidationResult

	// GenerateManifest turns a validated config into the provider's custom
	// resource plus any auxiliary objects. Deterministic: the same config
	// yields a structurally identical tree. It must not fail for a config
	// that passed ValidateConfig; if it would, validation missed a
	// precondition and that is a defect.
	GenerateManifest(cfg *DeploymentConfig) []*unstructured.Unstructured

	// CRDConfig returns the identity of the managed custom resource type.
	CRDConfig() CRDConfig

	// InstallationSteps returns the static install procedure.
	InstallationSteps() []InstallStep

	// HelmRepos returns the Helm repositories the controller needs.
	HelmRepos() []HelmRepo

	// HelmCharts returns the chart releases the controller needs.
	HelmCharts() []HelmChart

	// SupportsGAIE reports whether the provider can participate in
	// header-based routing through a shared inference gateway.
	SupportsGAIE() bool
}

// NotFoundError indicates a lookup for an unknown provider id.
type NotFoundError struct {
	ProviderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("provider '%s' not found", e.ProviderID)
}
