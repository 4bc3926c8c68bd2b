//go:build !cgo

package stats

import (
	"fmt"
	"time"
)

// GPUStats represents local GPU statistics (stub version without NVML)
type GPUStats struct {
	Timestamp time.Time `json:"timestamp"`
	GPUs      []GPU     `json:"gpus"`
}

// GPU represents a single GPU's metrics
type GPU struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	UUID        string  `json:"uuid"`
	Utilization float64 `json:"utilization_percent"`
	MemoryUsed  int64   `json:"memory_used_mb"`
	MemoryTotal int64   `json:"memory_total_mb"`
	MemoryUtil  float64 `json:"memory_util_percent"`
	Temperature int     `json:"temperature_c"`
	PowerDraw   float64 `json:"power_draw_w"`
}

// GPUStatsHandler provides GPU statistics (stub version without NVML)
type GPUStatsHandler struct{}

// NewGPUStatsHandler creates a new GPU stats handler
func NewGPUStatsHandler() *GPUStatsHandler {
	return &GPUStatsHandler{}
}

// Shutdown is a no-op for the stub version
func (h *GPUStatsHandler) Shutdown() error {
	return nil
}

// Available always reports false without NVML support.
func (h *GPUStatsHandler) Available() bool {
	return false
}

// Query always fails without NVML support.
func (h *GPUStatsHandler) Query() (*GPUStats, error) {
	return nil, fmt.Errorf("GPU stats not available (compiled without CGO/NVML support)")
}

// LocalGPUMemoryGB always returns 0 without NVML support.
func (h *GPUStatsHandler) LocalGPUMemoryGB() float64 {
	return 0
}
