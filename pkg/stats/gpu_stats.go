//go:build cgo

package stats

import (
	"fmt"
	"time"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"k8s.io/klog/v2"
)

// GPUStats represents local GPU statistics
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

// GPUStatsHandler serves GPU statistics from NVML
type GPUStatsHandler struct {
	// Cache for 1 second to avoid excessive NVML calls
	cache           *GPUStats
	cacheTime       time.Time
	cacheTTL        time.Duration
	nvmlInitialized bool
}

// NewGPUStatsHandler creates a new GPU stats handler and initializes NVML
func NewGPUStatsHandler() *GPUStatsHandler {
	h := &GPUStatsHandler{
		cacheTTL: 1 * time.Second,
	}

	if err := h.initNVML(); err != nil {
		klog.Warningf("Failed to initialize NVML: %v", err)
	}

	return h
}

func (h *GPUStatsHandler) initNVML() error {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return fmt.Errorf("NVML Init failed: %v", nvml.ErrorString(ret))
	}
	h.nvmlInitialized = true
	return nil
}

// Shutdown releases NVML resources
func (h *GPUStatsHandler) Shutdown() error {
	if !h.nvmlInitialized {
		return nil
	}
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return fmt.Errorf("NVML Shutdown failed: %v", nvml.ErrorString(ret))
	}
	h.nvmlInitialized = false
	return nil
}

// Available reports whether NVML initialized on this host.
func (h *GPUStatsHandler) Available() bool {
	return h.nvmlInitialized
}

// Query returns current local GPU statistics, served from a short-lived
// cache.
func (h *GPUStatsHandler) Query() (*GPUStats, error) {
	if h.cache != nil && time.Since(h.cacheTime) < h.cacheTTL {
		return h.cache, nil
	}

	if !h.nvmlInitialized {
		return nil, fmt.Errorf("NVML not initialized")
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("failed to get device count: %v", nvml.ErrorString(ret))
	}

	stats := &GPUStats{Timestamp: time.Now()}
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			klog.Warningf("Failed to get handle for GPU %d: %v", i, nvml.ErrorString(ret))
			continue
		}

		gpu := GPU{Index: i}

		if name, ret := device.GetName(); ret == nvml.SUCCESS {
			gpu.Name = name
		}
		if uuid, ret := device.GetUUID(); ret == nvml.SUCCESS {
			gpu.UUID = uuid
		}
		if util, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
			gpu.Utilization = float64(util.Gpu)
		}
		if mem, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
			gpu.MemoryUsed = int64(mem.Used / 1024 / 1024)
			gpu.MemoryTotal = int64(mem.Total / 1024 / 1024)
			if mem.Total > 0 {
				gpu.MemoryUtil = float64(mem.Used) / float64(mem.Total) * 100
			}
		}
		if temp, ret := device.GetTemperature(nvml.TEMPERATURE_GPU); ret == nvml.SUCCESS {
			gpu.Temperature = int(temp)
		}
		if power, ret := device.GetPowerUsage(); ret == nvml.SUCCESS {
			gpu.PowerDraw = float64(power) / 1000.0
		}

		stats.GPUs = append(stats.GPUs, gpu)
	}

	h.cache = stats
	h.cacheTime = time.Now()
	return stats, nil
}

// LocalGPUMemoryGB returns the memory size of the first local GPU in GB, or
// 0 when no GPU is visible. Enriches capacity snapshots when node labels
// carry no memory information.
func (h *GPUStatsHandler) LocalGPUMemoryGB() float64 {
	stats, err := h.Query()
	if err != nil || len(stats.GPUs) == 0 {
		return 0
	}
	return float64(stats.GPUs[0].MemoryTotal) / 1024
}
