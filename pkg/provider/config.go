package provider

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Deployment topology modes.
const (
	ModeAggregated    = "aggregated"
	ModeDisaggregated = "disaggregated"
)

// Inference engines.
const (
	EngineVLLM   = "vllm"
	EngineSGLang = "sglang"
	EngineTRTLLM = "trtllm"
	// EngineNone is the Kaito llama.cpp-based path, which has no engine
	// selection of its own.
	EngineNone = ""
)

// Dynamo router modes.
const (
	RouterModeNone       = "none"
	RouterModeKVAware    = "kv-aware"
	RouterModeRoundRobin = "round-robin"
)

// Kaito model sources.
const (
	KaitoSourcePremade     = "premade"
	KaitoSourceHuggingFace = "huggingface"
	KaitoSourceVLLM        = "vllm"
)

// Kaito HuggingFace run modes.
const (
	KaitoRunModeDirect = "direct"
	KaitoRunModeBuild  = "build"
)

// Kaito resource kinds.
const (
	KaitoResourceWorkspace    = "Workspace"
	KaitoResourceInferenceSet = "InferenceSet"
)

// KaitoConfig carries the Kaito-specific extension fields. It is the only
// provider variant payload; other providers use the base config alone.
type KaitoConfig struct {
	ModelSource    string   `json:"modelSource"`
	PremadeModel   string   `json:"premadeModel,omitempty"`
	RunMode        string   `json:"runMode,omitempty"`
	GGUFFile       string   `json:"ggufFile,omitempty"`
	Image          string   `json:"image,omitempty"`
	ModelName      string   `json:"modelName,omitempty"`
	ComputeType    string   `json:"computeType,omitempty"`
	InstanceType   string   `json:"instanceType,omitempty"`
	PreferredNodes []string `json:"preferredNodes,omitempty"`
	ResourceType   string   `json:"resourceType"`
}

// DeploymentConfig is the canonical validated representation of a deployment
// request. Produced by Provider.ValidateConfig and immutable afterwards; any
// change requires re-validation.
type DeploymentConfig struct {
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
	ModelID    string `json:"modelId"`
	ProviderID string `json:"providerId"`
	Engine     string `json:"engine,omitempty"`
	Mode       string `json:"mode"`

	// Aggregated topology.
	Replicas       int `json:"replicas"`
	GPUsPerReplica int `json:"gpusPerReplica"`

	// Disaggregated topology.
	PrefillReplicas int `json:"prefillReplicas,omitempty"`
	PrefillGPUs     int `json:"prefillGpus,omitempty"`
	DecodeReplicas  int `json:"decodeReplicas,omitempty"`
	DecodeGPUs      int `json:"decodeGpus,omitempty"`

	ContextLength       int    `json:"contextLength,omitempty"`
	RouterMode          string `json:"routerMode,omitempty"`
	EnforceEager        bool   `json:"enforceEager,omitempty"`
	EnablePrefixCaching bool   `json:"enablePrefixCaching,omitempty"`
	TrustRemoteCode     bool   `json:"trustRemoteCode,omitempty"`

	Kaito *KaitoConfig `json:"kaito,omitempty"`
}

// TotalGPUs returns the total GPU demand of the deployment across replicas.
func (c *DeploymentConfig) TotalGPUs() int {
	if c.Mode == ModeDisaggregated {
		return c.PrefillReplicas*c.PrefillGPUs + c.DecodeReplicas*c.DecodeGPUs
	}
	return c.Replicas * c.GPUsPerReplica
}

// MaxPodGPUs returns the largest single-pod GPU requirement, the binding
// constraint for single-node placement.
func (c *DeploymentConfig) MaxPodGPUs() int {
	if c.Mode == ModeDisaggregated {
		if c.PrefillGPUs > c.DecodeGPUs {
			return c.PrefillGPUs
		}
		return c.DecodeGPUs
	}
	return c.GPUsPerReplica
}

// rawConfig wraps the untyped request body with typed field accessors. Raw
// requests arrive as decoded JSON, so numbers are float64.
type rawConfig map[string]interface{}

func (r rawConfig) str(key string) string {
	if v, ok := r[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func (r rawConfig) num(key string) (int, bool) {
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	}
	return 0, false
}

// numOr returns the field as an int, or def when absent or not numeric.
func (r rawConfig) numOr(key string, def int) int {
	if v, ok := r.num(key); ok {
		return v
	}
	return def
}

func (r rawConfig) flag(key string) bool {
	v, _ := r[key].(bool)
	return v
}

func (r rawConfig) strs(key string) []string {
	raw, ok := r[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// validateBase checks the fields every provider requires and returns the
// partially populated config alongside any error messages. Providers layer
// their own semantic checks on top.
func validateBase(providerID, defaultNamespace string, raw rawConfig) (*DeploymentConfig, []string) {
	var errs []string

	name := raw.str("name")
	if name == "" {
		errs = append(errs, "name is required")
	} else if msgs := validation.IsDNS1123Label(name); len(msgs) > 0 {
		errs = append(errs, fmt.Sprintf("name '%s' is not a valid DNS-1123 label: %s", name, msgs[0]))
	}

	namespace := raw.str("namespace")
	if namespace == "" {
		namespace = defaultNamespace
	} else if msgs := validation.IsDNS1123Label(namespace); len(msgs) > 0 {
		errs = append(errs, fmt.Sprintf("namespace '%s' is not a valid DNS-1123 label: %s", namespace, msgs[0]))
	}

	modelID := raw.str("modelId")
	if modelID == "" {
		errs = append(errs, "modelId is required")
	}

	mode := raw.str("mode")
	if mode == "" {
		mode = ModeAggregated
	}
	if mode != ModeAggregated && mode != ModeDisaggregated {
		errs = append(errs, fmt.Sprintf("mode must be '%s' or '%s', got '%s'", ModeAggregated, ModeDisaggregated, mode))
	}

	cfg := &DeploymentConfig{
		Name:                name,
		Namespace:           namespace,
		ModelID:             modelID,
		ProviderID:          providerID,
		Engine:              raw.str("engine"),
		Mode:                mode,
		ContextLength:       raw.numOr("contextLength", 0),
		EnforceEager:        raw.flag("enforceEager"),
		EnablePrefixCaching: raw.flag("enablePrefixCaching"),
		TrustRemoteCode:     raw.flag("trustRemoteCode"),
	}

	switch mode {
	case ModeDisaggregated:
		cfg.PrefillReplicas = raw.numOr("prefillReplicas", 1)
		cfg.PrefillGPUs = raw.numOr("prefillGpus", 1)
		cfg.DecodeReplicas = raw.numOr("decodeReplicas", 1)
		cfg.DecodeGPUs = raw.numOr("decodeGpus", 1)
		if cfg.PrefillReplicas < 1 || cfg.DecodeReplicas < 1 {
			errs = append(errs, "prefill and decode replica counts must be at least 1")
		}
		if cfg.PrefillGPUs < 1 || cfg.DecodeGPUs < 1 {
			errs = append(errs, "prefill and decode GPU counts must be at least 1")
		}
	default:
		cfg.Replicas = raw.numOr("replicas", 1)
		cfg.GPUsPerReplica = raw.numOr("gpusPerReplica", 1)
		if cfg.Replicas < 1 {
			errs = append(errs, "replicas must be at least 1")
		}
		if cfg.GPUsPerReplica < 0 {
			errs = append(errs, "gpusPerReplica must not be negative")
		}
	}

	if cfg.ContextLength < 0 {
		errs = append(errs, "contextLength must not be negative")
	}

	return cfg, errs
}

// oneOf reports whether value is in the allowed set.
func oneOf(value string, allowed []string) bool {
	for _, s := range allowed {
		if value == s {
			return true
		}
	}
	return false
}
