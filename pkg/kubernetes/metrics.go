package kubernetes

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// PodMetrics is the per-container resource usage of a running pod.
type PodMetrics struct {
	PodName       string `json:"podName"`
	ContainerName string `json:"containerName"`
	CPUMilli      int64  `json:"cpuMilli"`
	MemoryBytes   int64  `json:"memoryBytes"`
	GPUUsage      string `json:"gpuUsage"`
}

// MetricsClient reads pod resource usage from the metrics-server API.
type MetricsClient struct {
	metrics metricsclient.Interface
}

// NewMetricsClient wraps a metrics.k8s.io clientset.
func NewMetricsClient(metrics metricsclient.Interface) *MetricsClient {
	return &MetricsClient{metrics: metrics}
}

// GetPodMetrics returns current usage for pods matching labelSelector in
// namespace. Requires metrics-server; callers should treat errors as a soft
// failure since many clusters run without it.
func (m *MetricsClient) GetPodMetrics(ctx context.Context, labelSelector, namespace string) ([]PodMetrics, error) {
	list, err := m.metrics.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("failed to get pod metrics in %s: %w", namespace, err)
	}

	var out []PodMetrics
	for _, pod := range list.Items {
		for _, container := range pod.Containers {
			gpuUsage := "0"
			if gpu, ok := container.Usage[gpuResourceName]; ok {
				gpuUsage = gpu.String()
			}
			out = append(out, PodMetrics{
				PodName:       pod.Name,
				ContainerName: container.Name,
				CPUMilli:      container.Usage.Cpu().MilliValue(),
				MemoryBytes:   container.Usage.Memory().Value(),
				GPUUsage:      gpuUsage,
			})
		}
	}
	return out, nil
}
