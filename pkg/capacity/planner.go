package capacity

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/llmkube/llmkube/pkg/catalog"
	"github.com/llmkube/llmkube/pkg/provider"
)

const (
	// bytesPerParam assumes fp16/bf16 weights.
	bytesPerParam = 2.0
	// memoryOverhead covers KV cache, activations, and runtime overhead on
	// top of raw weights.
	memoryOverhead = 1.2
)

// canonicalGpuCounts are the per-node GPU configurations considered for
// alternatives.
var canonicalGpuCounts = []int{1, 2, 4, 8}

var (
	sizeRe   = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*B$`)
	memoryRe = regexp.MustCompile(`(?i)^(\d+)\s*GB$`)
)

// parseParameterCount extracts a parameter count in billions from a size
// string like "8B" or "1.1b". Returns 0 when the string does not match.
func parseParameterCount(size string) float64 {
	m := sizeRe.FindStringSubmatch(size)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// parseMemoryHint extracts a GB figure from a hint like "16GB". Returns 0
// when the string does not match.
func parseMemoryHint(hint string) float64 {
	m := memoryRe.FindStringSubmatch(hint)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// Recommend derives a GPU-per-replica count for model on the given cluster.
// It never returns zero: with no information at all the safe answer is one
// GPU.
func Recommend(model *catalog.Model, cap *ClusterGpuCapacity) GpuRecommendation {
	if model == nil || cap == nil {
		return GpuRecommendation{RecommendedGPUs: 1, Reason: "Starting with 1 GPU per replica"}
	}

	paramsB := model.ParameterCount / 1e9
	if paramsB == 0 {
		paramsB = parseParameterCount(model.Size)
	}

	requiredGB := model.EstimatedGPUMemoryGB
	if requiredGB == 0 {
		requiredGB = parseMemoryHint(model.MinGPUMemory)
	}
	if requiredGB == 0 && paramsB > 0 {
		requiredGB = paramsB * bytesPerParam * memoryOverhead
	}

	if paramsB == 0 && requiredGB == 0 {
		return GpuRecommendation{RecommendedGPUs: 1, Reason: "Model size unknown - using 1 GPU"}
	}

	var gpus int
	var reason string
	if cap.GPUMemoryGB > 0 && requiredGB > 0 {
		gpus = int(math.Ceil(requiredGB / cap.GPUMemoryGB))
		reason = fmt.Sprintf("Requires ~%.1fGB GPU memory at %.0fGB per GPU", requiredGB, cap.GPUMemoryGB)
	} else {
		switch {
		case paramsB < 3:
			gpus = 1
		case paramsB < 13:
			gpus = 2
		case paramsB < 70:
			gpus = 4
		default:
			gpus = 8
		}
		reason = fmt.Sprintf("%.1fB parameter model - recommending %s per replica", paramsB, FormatGPUCount(gpus))
	}
	if gpus < 1 {
		gpus = 1
	}

	recommended := gpus
	if cap.MaxNodeGpuCapacity > 0 && recommended > cap.MaxNodeGpuCapacity {
		recommended = cap.MaxNodeGpuCapacity
		reason += fmt.Sprintf(" - needs %d GPUs but cluster nodes only have %d", gpus, cap.MaxNodeGpuCapacity)
	}

	return GpuRecommendation{
		RecommendedGPUs: recommended,
		Reason:          reason,
		Alternatives:    alternatives(recommended, cap.MaxNodeGpuCapacity),
	}
}

// alternatives picks up to two canonical GPU counts that evenly divide the
// largest node size, excluding the recommendation, closest first.
func alternatives(recommended, maxNodeGpus int) []int {
	if maxNodeGpus <= 0 {
		return nil
	}
	var out []int
	for _, n := range canonicalGpuCounts {
		if n == recommended || maxNodeGpus%n != 0 {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		di := abs(out[i] - recommended)
		dj := abs(out[j] - recommended)
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	if len(out) > 2 {
		out = out[:2]
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// CheckFit pre-flights a deployment's GPU demand against cluster capacity.
// A single pod larger than any node is the severe case: it can never
// schedule. Exceeding currently-free GPUs is softer since autoscaling may
// still satisfy it. Either way the result is advisory only.
func CheckFit(cfg *provider.DeploymentConfig, cap *ClusterGpuCapacity, modelMinGpus int) FitResult {
	result := FitResult{Fits: true}
	if cfg == nil || cap == nil {
		return result
	}

	total := cfg.TotalGPUs()
	maxPod := cfg.MaxPodGPUs()

	if modelMinGpus > 0 && maxPod < modelMinGpus {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Model typically needs at least %s per pod, requested %s", FormatGPUCount(modelMinGpus), FormatGPUCount(maxPod)))
	}

	if cap.MaxNodeGpuCapacity > 0 && maxPod > cap.MaxNodeGpuCapacity {
		result.Fits = false
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Requested %s per pod but the largest node only has %s - pods cannot be scheduled on any node",
				FormatGPUCount(maxPod), FormatGPUCount(cap.MaxNodeGpuCapacity)))
		return result
	}

	if total > cap.AvailableGPUs {
		result.Fits = false
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Requested %s total but only %s currently available - the deployment may stay pending until capacity frees up or the cluster scales",
				FormatGPUCount(total), FormatGPUCount(cap.AvailableGPUs)))
	}

	return result
}

// FormatGPUCount renders a count with the correct plural.
func FormatGPUCount(n int) string {
	if n == 1 {
		return "1 GPU"
	}
	return fmt.Sprintf("%d GPUs", n)
}
