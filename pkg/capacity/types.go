// Package capacity models cluster GPU inventory and turns model memory
// requirements into GPU sizing recommendations and fit verdicts.
package capacity

// GpuPool is a group of nodes sharing a node group or pool label.
type GpuPool struct {
	Name      string `json:"name"`
	GPUCount  int    `json:"gpuCount"`
	NodeCount int    `json:"nodeCount"`
	GPUModel  string `json:"gpuModel,omitempty"`
}

// ClusterGpuCapacity is a point-in-time snapshot of cluster GPU inventory.
// Produced fresh on each query; cluster state changes too quickly for it to
// be cached meaningfully.
type ClusterGpuCapacity struct {
	TotalGPUs     int `json:"totalGpus"`
	AllocatedGPUs int `json:"allocatedGpus"`
	AvailableGPUs int `json:"availableGpus"`

	// MaxContiguousAvailable is the largest free block on any single node,
	// the binding constraint for single-pod placement.
	MaxContiguousAvailable int `json:"maxContiguousAvailable"`
	// MaxNodeGpuCapacity is the largest single-node GPU count in the
	// cluster, a hard per-pod ceiling.
	MaxNodeGpuCapacity int `json:"maxNodeGpuCapacity"`

	// GPUMemoryGB is the per-GPU memory in GB when known, 0 otherwise.
	GPUMemoryGB float64 `json:"gpuMemoryGb,omitempty"`

	Pools []GpuPool `json:"pools,omitempty"`
}

// GpuRecommendation is a derived GPU-per-replica suggestion; never
// persisted.
type GpuRecommendation struct {
	RecommendedGPUs int    `json:"recommendedGpus"`
	Reason          string `json:"reason"`
	// Alternatives holds up to two other sensible counts, each a divisor
	// of the largest node's GPU capacity.
	Alternatives []int `json:"alternatives,omitempty"`
}

// FitResult is the advisory verdict of a capacity pre-flight check. It never
// blocks deployment creation; cluster admission is the final authority.
type FitResult struct {
	Fits     bool     `json:"fits"`
	Warnings []string `json:"warnings,omitempty"`
}
