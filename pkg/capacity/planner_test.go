package capacity

import (
	"strings"
	"testing"

	"github.com/llmkube/llmkube/pkg/catalog"
	"github.com/llmkube/llmkube/pkg/provider"
)

func TestRecommend_NilInputs(t *testing.T) {
	rec := Recommend(nil, nil)
	if rec.RecommendedGPUs != 1 {
		t.Errorf("RecommendedGPUs = %d, want 1", rec.RecommendedGPUs)
	}
	if rec.Reason != "Starting with 1 GPU per replica" {
		t.Errorf("Reason = %q", rec.Reason)
	}

	rec = Recommend(&catalog.Model{ID: "m", ParameterCount: 8e9}, nil)
	if rec.RecommendedGPUs != 1 {
		t.Errorf("RecommendedGPUs = %d, want 1 for nil capacity", rec.RecommendedGPUs)
	}
}

func TestRecommend_MemoryBased(t *testing.T) {
	// 8B params -> 8*2*1.2 = 19.2GB, fits in a single 80GB GPU.
	rec := Recommend(
		&catalog.Model{ID: "m", ParameterCount: 8e9},
		&ClusterGpuCapacity{GPUMemoryGB: 80, MaxNodeGpuCapacity: 8},
	)
	if rec.RecommendedGPUs != 1 {
		t.Errorf("RecommendedGPUs = %d, want 1", rec.RecommendedGPUs)
	}
}

func TestRecommend_CappedByNodeCapacity(t *testing.T) {
	rec := Recommend(
		&catalog.Model{ID: "m", ParameterCount: 70e9, EstimatedGPUMemoryGB: 160},
		&ClusterGpuCapacity{GPUMemoryGB: 80, MaxNodeGpuCapacity: 1},
	)
	if rec.RecommendedGPUs != 1 {
		t.Errorf("RecommendedGPUs = %d, want 1", rec.RecommendedGPUs)
	}
	if !strings.Contains(rec.Reason, "needs 2 GPUs but cluster nodes only have 1") {
		t.Errorf("Reason = %q, want capped explanation", rec.Reason)
	}
}

func TestRecommend_SizeStringParsing(t *testing.T) {
	tests := []struct {
		size string
		want int
	}{
		{"1.1B", 1},
		{"7B", 2},
		{"8b", 2},
		{"32B", 4},
		{"70B", 8},
	}
	for _, tt := range tests {
		t.Run(tt.size, func(t *testing.T) {
			// No per-GPU memory known: the tier heuristic applies.
			rec := Recommend(
				&catalog.Model{ID: "m", Size: tt.size},
				&ClusterGpuCapacity{MaxNodeGpuCapacity: 8},
			)
			if rec.RecommendedGPUs != tt.want {
				t.Errorf("Recommend(size=%s) = %d, want %d", tt.size, rec.RecommendedGPUs, tt.want)
			}
		})
	}
}

func TestRecommend_MemoryHintString(t *testing.T) {
	rec := Recommend(
		&catalog.Model{ID: "m", MinGPUMemory: "140GB"},
		&ClusterGpuCapacity{GPUMemoryGB: 80, MaxNodeGpuCapacity: 8},
	)
	if rec.RecommendedGPUs != 2 {
		t.Errorf("RecommendedGPUs = %d, want 2 (ceil(140/80))", rec.RecommendedGPUs)
	}
}

func TestRecommend_UnknownSize(t *testing.T) {
	rec := Recommend(
		&catalog.Model{ID: "m"},
		&ClusterGpuCapacity{GPUMemoryGB: 80, MaxNodeGpuCapacity: 8},
	)
	if rec.RecommendedGPUs != 1 {
		t.Errorf("RecommendedGPUs = %d, want 1", rec.RecommendedGPUs)
	}
	if rec.Reason != "Model size unknown - using 1 GPU" {
		t.Errorf("Reason = %q", rec.Reason)
	}
}

func TestRecommend_Alternatives(t *testing.T) {
	rec := Recommend(
		&catalog.Model{ID: "m", ParameterCount: 32e9},
		&ClusterGpuCapacity{MaxNodeGpuCapacity: 8},
	)
	// Tier heuristic: 32B -> 4 GPUs; alternatives are divisors of 8
	// excluding 4, closest first, at most two.
	if rec.RecommendedGPUs != 4 {
		t.Fatalf("RecommendedGPUs = %d, want 4", rec.RecommendedGPUs)
	}
	if len(rec.Alternatives) != 2 {
		t.Fatalf("Alternatives = %v, want two entries", rec.Alternatives)
	}
	if rec.Alternatives[0] != 2 {
		t.Errorf("Alternatives[0] = %d, want 2 (closest)", rec.Alternatives[0])
	}
	for _, alt := range rec.Alternatives {
		if alt == rec.RecommendedGPUs {
			t.Errorf("alternatives must exclude the recommendation, got %v", rec.Alternatives)
		}
		if 8%alt != 0 {
			t.Errorf("alternative %d does not divide the node size", alt)
		}
	}
}

func aggregatedConfig(replicas, gpus int) *provider.DeploymentConfig {
	return &provider.DeploymentConfig{
		Name:           "test",
		Mode:           provider.ModeAggregated,
		Replicas:       replicas,
		GPUsPerReplica: gpus,
	}
}

func TestCheckFit_PodLargerThanAnyNode(t *testing.T) {
	// Plenty of total availability, but no single node can host the pod.
	result := CheckFit(aggregatedConfig(1, 8), &ClusterGpuCapacity{
		TotalGPUs:          32,
		AvailableGPUs:      32,
		MaxNodeGpuCapacity: 4,
	}, 0)
	if result.Fits {
		t.Error("Fits = true, want false when a pod exceeds every node")
	}
	if len(result.Warnings) == 0 || !strings.Contains(result.Warnings[0], "cannot be scheduled on any node") {
		t.Errorf("Warnings = %v", result.Warnings)
	}
}

func TestCheckFit_ExceedsAvailable(t *testing.T) {
	result := CheckFit(aggregatedConfig(4, 2), &ClusterGpuCapacity{
		TotalGPUs:          16,
		AvailableGPUs:      4,
		MaxNodeGpuCapacity: 8,
	}, 0)
	if result.Fits {
		t.Error("Fits = true, want false when total exceeds available")
	}
	if len(result.Warnings) == 0 || !strings.Contains(result.Warnings[0], "currently available") {
		t.Errorf("Warnings = %v", result.Warnings)
	}
}

func TestCheckFit_Disaggregated(t *testing.T) {
	cfg := &provider.DeploymentConfig{
		Name:            "test",
		Mode:            provider.ModeDisaggregated,
		PrefillReplicas: 2,
		PrefillGPUs:     2,
		DecodeReplicas:  4,
		DecodeGPUs:      1,
	}
	// Total = 2*2 + 4*1 = 8; largest pod = 2.
	result := CheckFit(cfg, &ClusterGpuCapacity{
		TotalGPUs:          16,
		AvailableGPUs:      8,
		MaxNodeGpuCapacity: 4,
	}, 0)
	if !result.Fits {
		t.Errorf("Fits = false, warnings = %v", result.Warnings)
	}
}

func TestCheckFit_ModelMinimumAdvisory(t *testing.T) {
	result := CheckFit(aggregatedConfig(1, 1), &ClusterGpuCapacity{
		TotalGPUs:          16,
		AvailableGPUs:      16,
		MaxNodeGpuCapacity: 8,
	}, 2)
	// Below the model's known minimum is advisory only.
	if !result.Fits {
		t.Error("Fits = false, want true for an advisory-only warning")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one advisory", result.Warnings)
	}
}

func TestCheckFit_NilInputs(t *testing.T) {
	if result := CheckFit(nil, nil, 0); !result.Fits {
		t.Error("Fits = false for nil inputs, want true")
	}
}

func TestFormatGPUCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 GPUs"},
		{1, "1 GPU"},
		{8, "8 GPUs"},
	}
	for _, tt := range tests {
		if got := FormatGPUCount(tt.n); got != tt.want {
			t.Errorf("FormatGPUCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
