package kubernetes

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"

	"github.com/llmkube/llmkube/pkg/capacity"
	"github.com/llmkube/llmkube/pkg/provider"
)

// gpuResourceName is the NVIDIA device plugin resource name.
const gpuResourceName = "nvidia.com/gpu"

// Node labels consulted by the capacity inspector.
const (
	labelGpuProduct = "nvidia.com/gpu.product"
	// labelGpuMemory is the per-GPU memory in MiB, set by GPU feature
	// discovery.
	labelGpuMemory = "nvidia.com/gpu.memory"
)

// nodePoolLabels identify which pool a node belongs to, most specific first.
var nodePoolLabels = []string{
	"eks.amazonaws.com/nodegroup",
	"cloud.google.com/gke-nodepool",
	"kubernetes.azure.com/agentpool",
	"karpenter.sh/nodepool",
}

// ClusterClient is the cluster state collaborator. All reads are idempotent
// and may be retried by callers; creates and deletes are not retried here.
type ClusterClient struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
}

// NewClusterClient creates a cluster client from the typed and dynamic
// clients.
func NewClusterClient(clientset kubernetes.Interface, dynamicClient dynamic.Interface) *ClusterClient {
	return &ClusterClient{clientset: clientset, dynamic: dynamicClient}
}

// ListCustomResources lists all custom resources of p in namespace, across
// every resource kind the provider can emit.
func (c *ClusterClient) ListCustomResources(ctx context.Context, p provider.Provider, namespace string) ([]unstructured.Unstructured, error) {
	var items []unstructured.Unstructured
	for _, crd := range provider.CRDConfigsOf(p) {
		list, err := c.dynamic.Resource(crd.GroupVersionResource()).Namespace(namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				// CRD not installed; an empty listing is the right answer.
				continue
			}
			return nil, fmt.Errorf("failed to list %s in %s: %w", crd.Plural, namespace, err)
		}
		items = append(items, list.Items...)
	}
	return items, nil
}

// GetCustomResource fetches a named custom resource of p, trying each of the
// provider's resource kinds in order.
func (c *ClusterClient) GetCustomResource(ctx context.Context, p provider.Provider, name, namespace string) (*unstructured.Unstructured, error) {
	for _, crd := range provider.CRDConfigsOf(p) {
		obj, err := c.dynamic.Resource(crd.GroupVersionResource()).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
		if err == nil {
			return obj, nil
		}
		if !apierrors.IsNotFound(err) {
			return nil, fmt.Errorf("failed to get %s/%s: %w", crd.Plural, name, err)
		}
	}
	return nil, apierrors.NewNotFound(p.CRDConfig().GroupVersionResource().GroupResource(), name)
}

// CreateCustomResource persists a generated manifest. The manifest's kind
// selects the resource; it must be one of the provider's CRD kinds.
func (c *ClusterClient) CreateCustomResource(ctx context.Context, p provider.Provider, manifest *unstructured.Unstructured) error {
	crd, err := crdForKind(p, manifest.GetKind())
	if err != nil {
		return err
	}
	_, err = c.dynamic.Resource(crd.GroupVersionResource()).Namespace(manifest.GetNamespace()).Create(ctx, manifest, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to create %s %s/%s: %w", manifest.GetKind(), manifest.GetNamespace(), manifest.GetName(), err)
	}
	klog.Infof("Created %s %s/%s", manifest.GetKind(), manifest.GetNamespace(), manifest.GetName())
	return nil
}

// DeleteCustomResource removes a named custom resource of p, trying each of
// the provider's resource kinds.
func (c *ClusterClient) DeleteCustomResource(ctx context.Context, p provider.Provider, name, namespace string) error {
	for _, crd := range provider.CRDConfigsOf(p) {
		err := c.dynamic.Resource(crd.GroupVersionResource()).Namespace(namespace).Delete(ctx, name, metav1.DeleteOptions{})
		if err == nil {
			klog.Infof("Deleted %s %s/%s", crd.Kind, namespace, name)
			return nil
		}
		if !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to delete %s/%s: %w", crd.Plural, name, err)
		}
	}
	return apierrors.NewNotFound(p.CRDConfig().GroupVersionResource().GroupResource(), name)
}

func crdForKind(p provider.Provider, kind string) (provider.CRDConfig, error) {
	for _, crd := range provider.CRDConfigsOf(p) {
		if crd.Kind == kind {
			return crd, nil
		}
	}
	return provider.CRDConfig{}, fmt.Errorf("provider '%s' does not manage kind '%s'", p.Metadata().ID, kind)
}

// ListPods lists pods matching labelSelector in namespace.
func (c *ClusterClient) ListPods(ctx context.Context, labelSelector, namespace string) ([]corev1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", namespace, err)
	}
	return list.Items, nil
}

// ListNodes lists all cluster nodes.
func (c *ClusterClient) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return list.Items, nil
}

// GetClusterGpuCapacity inspects nodes and running pods and builds a fresh
// capacity snapshot. Results are never cached: cluster state moves too fast.
func (c *ClusterClient) GetClusterGpuCapacity(ctx context.Context) (*capacity.ClusterGpuCapacity, error) {
	nodes, err := c.ListNodes(ctx)
	if err != nil {
		return nil, err
	}

	pods, err := c.clientset.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods for capacity inspection: %w", err)
	}

	// GPU requests of non-terminal pods, per node.
	usedByNode := make(map[string]int)
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.Spec.NodeName == "" || pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
			continue
		}
		usedByNode[pod.Spec.NodeName] += podGpuRequest(pod)
	}

	snapshot := &capacity.ClusterGpuCapacity{}
	pools := make(map[string]*capacity.GpuPool)

	for i := range nodes {
		node := &nodes[i]
		allocatable := nodeGpuAllocatable(node)
		if allocatable == 0 {
			continue
		}

		used := usedByNode[node.Name]
		free := allocatable - used
		if free < 0 {
			free = 0
		}

		snapshot.TotalGPUs += allocatable
		snapshot.AllocatedGPUs += used
		if allocatable > snapshot.MaxNodeGpuCapacity {
			snapshot.MaxNodeGpuCapacity = allocatable
		}
		if free > snapshot.MaxContiguousAvailable {
			snapshot.MaxContiguousAvailable = free
		}
		if snapshot.GPUMemoryGB == 0 {
			snapshot.GPUMemoryGB = nodeGpuMemoryGB(node)
		}

		poolName := nodePool(node)
		pool, ok := pools[poolName]
		if !ok {
			pool = &capacity.GpuPool{Name: poolName, GPUModel: node.Labels[labelGpuProduct]}
			pools[poolName] = pool
		}
		pool.GPUCount += allocatable
		pool.NodeCount++
	}

	snapshot.AvailableGPUs = snapshot.TotalGPUs - snapshot.AllocatedGPUs

	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		snapshot.Pools = append(snapshot.Pools, *pools[name])
	}

	return snapshot, nil
}

func nodeGpuAllocatable(node *corev1.Node) int {
	if q, ok := node.Status.Allocatable[corev1.ResourceName(gpuResourceName)]; ok {
		return int(q.Value())
	}
	return 0
}

func nodeGpuMemoryGB(node *corev1.Node) float64 {
	raw, ok := node.Labels[labelGpuMemory]
	if !ok {
		return 0
	}
	var mib float64
	if _, err := fmt.Sscanf(raw, "%f", &mib); err != nil {
		return 0
	}
	return mib / 1024
}

func nodePool(node *corev1.Node) string {
	for _, label := range nodePoolLabels {
		if v, ok := node.Labels[label]; ok && v != "" {
			return v
		}
	}
	return "default"
}

func podGpuRequest(pod *corev1.Pod) int {
	total := 0
	for i := range pod.Spec.Containers {
		requests := pod.Spec.Containers[i].Resources.Requests
		q, ok := requests[corev1.ResourceName(gpuResourceName)]
		if !ok {
			q, ok = pod.Spec.Containers[i].Resources.Limits[corev1.ResourceName(gpuResourceName)]
		}
		if ok {
			total += int(q.Value())
		}
	}
	return total
}
