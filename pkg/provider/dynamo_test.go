package provider

import (
	"reflect"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestDynamoProvider_ValidateConfig(t *testing.T) {
	p := NewDynamoProvider()

	tests := []struct {
		name      string
		raw       map[string]interface{}
		wantValid bool
		wantErr   string
	}{
		{
			name: "valid aggregated",
			raw: map[string]interface{}{
				"name":           "llama-8b",
				"modelId":        "meta-llama/Llama-3.1-8B-Instruct",
				"engine":         "vllm",
				"replicas":       float64(2),
				"gpusPerReplica": float64(1),
			},
			wantValid: true,
		},
		{
			name: "valid disaggregated",
			raw: map[string]interface{}{
				"name":            "llama-70b",
				"modelId":         "meta-llama/Llama-3.1-70B-Instruct",
				"engine":          "sglang",
				"mode":            "disaggregated",
				"prefillReplicas": float64(2),
				"prefillGpus":     float64(2),
				"decodeReplicas":  float64(4),
				"decodeGpus":      float64(1),
			},
			wantValid: true,
		},
		{
			name: "missing engine",
			raw: map[string]interface{}{
				"name":    "llama-8b",
				"modelId": "meta-llama/Llama-3.1-8B-Instruct",
			},
			wantValid: false,
			wantErr:   "engine is required for dynamo deployments",
		},
		{
			name: "unsupported engine",
			raw: map[string]interface{}{
				"name":    "llama-8b",
				"modelId": "meta-llama/Llama-3.1-8B-Instruct",
				"engine":  "llamacpp",
			},
			wantValid: false,
			wantErr:   "engine 'llamacpp' is not supported by dynamo (supported: vllm, sglang, trtllm)",
		},
		{
			name: "invalid name",
			raw: map[string]interface{}{
				"name":    "Llama_8B",
				"modelId": "meta-llama/Llama-3.1-8B-Instruct",
				"engine":  "vllm",
			},
			wantValid: false,
		},
		{
			name: "router mode rejected in disaggregated mode",
			raw: map[string]interface{}{
				"name":       "llama-70b",
				"modelId":    "meta-llama/Llama-3.1-70B-Instruct",
				"engine":     "vllm",
				"mode":       "disaggregated",
				"routerMode": "kv-aware",
			},
			wantValid: false,
			wantErr:   "routerMode is not applicable in disaggregated mode",
		},
		{
			name: "unknown router mode",
			raw: map[string]interface{}{
				"name":       "llama-8b",
				"modelId":    "meta-llama/Llama-3.1-8B-Instruct",
				"engine":     "vllm",
				"routerMode": "sticky",
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.ValidateConfig(tt.raw)
			if result.Valid != tt.wantValid {
				t.Fatalf("ValidateConfig() valid = %v, want %v (errors: %v)", result.Valid, tt.wantValid, result.Errors)
			}
			if tt.wantValid && result.Config == nil {
				t.Fatal("ValidateConfig() returned no config for a valid request")
			}
			if tt.wantErr != "" && !containsError(result.Errors, tt.wantErr) {
				t.Errorf("ValidateConfig() errors = %v, want to contain %q", result.Errors, tt.wantErr)
			}
		})
	}
}

func TestDynamoProvider_ValidateConfig_Defaults(t *testing.T) {
	p := NewDynamoProvider()
	result := p.ValidateConfig(map[string]interface{}{
		"name":    "llama-8b",
		"modelId": "meta-llama/Llama-3.1-8B-Instruct",
		"engine":  "vllm",
	})
	if !result.Valid {
		t.Fatalf("ValidateConfig() errors = %v", result.Errors)
	}
	cfg := result.Config
	if cfg.Namespace != "dynamo-system" {
		t.Errorf("Namespace = %v, want dynamo-system", cfg.Namespace)
	}
	if cfg.Mode != ModeAggregated {
		t.Errorf("Mode = %v, want aggregated", cfg.Mode)
	}
	if cfg.Replicas != 1 || cfg.GPUsPerReplica != 1 {
		t.Errorf("Replicas/GPUsPerReplica = %d/%d, want 1/1", cfg.Replicas, cfg.GPUsPerReplica)
	}
	if cfg.RouterMode != RouterModeNone {
		t.Errorf("RouterMode = %v, want none", cfg.RouterMode)
	}
}

func TestDynamoProvider_GenerateManifest_Aggregated(t *testing.T) {
	p := NewDynamoProvider()
	result := p.ValidateConfig(map[string]interface{}{
		"name":           "llama-8b",
		"modelId":        "meta-llama/Llama-3.1-8B-Instruct",
		"engine":         "vllm",
		"replicas":       float64(2),
		"gpusPerReplica": float64(4),
		"routerMode":     "kv-aware",
	})
	if !result.Valid {
		t.Fatalf("ValidateConfig() errors = %v", result.Errors)
	}

	objs := p.GenerateManifest(result.Config)
	if len(objs) != 1 {
		t.Fatalf("GenerateManifest() returned %d objects, want 1", len(objs))
	}
	cr := objs[0]

	if cr.GetAPIVersion() != "nvidia.com/v1alpha1" || cr.GetKind() != "DynamoGraphDeployment" {
		t.Errorf("GVK = %s/%s, want nvidia.com/v1alpha1/DynamoGraphDeployment", cr.GetAPIVersion(), cr.GetKind())
	}

	worker, found, err := unstructured.NestedMap(cr.Object, "spec", "services", "Worker")
	if err != nil || !found {
		t.Fatalf("spec.services.Worker not found: %v", err)
	}
	if worker["replicas"] != int64(2) {
		t.Errorf("Worker replicas = %v, want 2", worker["replicas"])
	}
	if worker["routerMode"] != "kv-aware" {
		t.Errorf("Worker routerMode = %v, want kv-aware", worker["routerMode"])
	}
	gpu, found, _ := unstructured.NestedString(cr.Object, "spec", "services", "Worker", "resources", "limits", "gpu")
	if !found || gpu != "4" {
		t.Errorf("Worker gpu limit = %v, want 4", gpu)
	}

	if _, found, _ := unstructured.NestedMap(cr.Object, "spec", "services", "PrefillWorker"); found {
		t.Error("aggregated manifest must not contain a PrefillWorker service")
	}
}

func TestDynamoProvider_GenerateManifest_Disaggregated(t *testing.T) {
	p := NewDynamoProvider()
	result := p.ValidateConfig(map[string]interface{}{
		"name":            "llama-70b",
		"modelId":         "meta-llama/Llama-3.1-70B-Instruct",
		"engine":          "vllm",
		"mode":            "disaggregated",
		"prefillReplicas": float64(2),
		"prefillGpus":     float64(2),
		"decodeReplicas":  float64(4),
		"decodeGpus":      float64(1),
	})
	if !result.Valid {
		t.Fatalf("ValidateConfig() errors = %v", result.Errors)
	}

	cr := p.GenerateManifest(result.Config)[0]

	prefill, found, _ := unstructured.NestedMap(cr.Object, "spec", "services", "PrefillWorker")
	if !found {
		t.Fatal("spec.services.PrefillWorker not found")
	}
	if prefill["replicas"] != int64(2) {
		t.Errorf("PrefillWorker replicas = %v, want 2", prefill["replicas"])
	}
	decode, found, _ := unstructured.NestedMap(cr.Object, "spec", "services", "DecodeWorker")
	if !found {
		t.Fatal("spec.services.DecodeWorker not found")
	}
	if decode["replicas"] != int64(4) {
		t.Errorf("DecodeWorker replicas = %v, want 4", decode["replicas"])
	}

	// Routing is implicit in the graph: no worker carries a routerMode.
	for _, svc := range []map[string]interface{}{prefill, decode} {
		if _, ok := svc["routerMode"]; ok {
			t.Errorf("disaggregated worker carries routerMode: %v", svc)
		}
	}
	if _, found, _ := unstructured.NestedMap(cr.Object, "spec", "services", "Worker"); found {
		t.Error("disaggregated manifest must not contain an aggregated Worker service")
	}
}

func TestDynamoProvider_GenerateManifest_Deterministic(t *testing.T) {
	p := NewDynamoProvider()
	result := p.ValidateConfig(map[string]interface{}{
		"name":                "llama-8b",
		"modelId":             "meta-llama/Llama-3.1-8B-Instruct",
		"engine":              "vllm",
		"contextLength":       float64(8192),
		"enforceEager":        true,
		"enablePrefixCaching": true,
	})
	if !result.Valid {
		t.Fatalf("ValidateConfig() errors = %v", result.Errors)
	}

	first := p.GenerateManifest(result.Config)
	second := p.GenerateManifest(result.Config)
	if !reflect.DeepEqual(first, second) {
		t.Error("GenerateManifest() is not deterministic for the same config")
	}
}

func containsError(errs []string, want string) bool {
	for _, e := range errs {
		if e == want {
			return true
		}
	}
	return false
}
