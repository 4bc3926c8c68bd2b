package kubernetes

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/llmkube/llmkube/pkg/catalog"
	"github.com/llmkube/llmkube/pkg/provider"
)

func newFakeDynamic(objects ...runtime.Object) *dynamicfake.FakeDynamicClient {
	scheme := runtime.NewScheme()
	listKinds := map[schema.GroupVersionResource]string{
		{Group: "nvidia.com", Version: "v1alpha1", Resource: "dynamographdeployments"}: "DynamoGraphDeploymentList",
		{Group: "ray.io", Version: "v1", Resource: "rayservices"}:                      "RayServiceList",
		{Group: "kaito.sh", Version: "v1beta1", Resource: "workspaces"}:                "WorkspaceList",
		{Group: "kaito.sh", Version: "v1alpha1", Resource: "inferencesets"}:            "InferenceSetList",
	}
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme, listKinds, objects...)
}

func gpuNode(name string, gpus int, labels map[string]string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels},
		Status: corev1.NodeStatus{
			Allocatable: corev1.ResourceList{
				corev1.ResourceName(gpuResourceName): *resource.NewQuantity(int64(gpus), resource.DecimalSI),
			},
		},
	}
}

func gpuPod(name, node string, gpus int, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default"},
		Spec: corev1.PodSpec{
			NodeName: node,
			Containers: []corev1.Container{{
				Name: "main",
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceName(gpuResourceName): *resource.NewQuantity(int64(gpus), resource.DecimalSI),
					},
				},
			}},
		},
		Status: corev1.PodStatus{Phase: phase},
	}
}

func TestClusterClient_CustomResourceLifecycle(t *testing.T) {
	client := NewClusterClient(fake.NewSimpleClientset(), newFakeDynamic())
	dynamo, err := provider.Initialize(catalog.Default()).Get(provider.DynamoProviderID)
	if err != nil {
		t.Fatalf("Get(dynamo) error = %v", err)
	}

	result := dynamo.ValidateConfig(map[string]interface{}{
		"name":    "llama-svc",
		"modelId": "meta-llama/Llama-3.1-8B-Instruct",
		"engine":  "vllm",
	})
	if !result.Valid {
		t.Fatalf("unexpected validation errors: %v", result.Errors)
	}

	ctx := context.Background()
	for _, m := range dynamo.GenerateManifest(result.Config) {
		if err := client.CreateCustomResource(ctx, dynamo, m); err != nil {
			t.Fatalf("CreateCustomResource() error = %v", err)
		}
	}

	obj, err := client.GetCustomResource(ctx, dynamo, "llama-svc", "dynamo-system")
	if err != nil {
		t.Fatalf("GetCustomResource() error = %v", err)
	}
	if obj.GetKind() != "DynamoGraphDeployment" {
		t.Errorf("kind = %q, want DynamoGraphDeployment", obj.GetKind())
	}

	items, err := client.ListCustomResources(ctx, dynamo, "dynamo-system")
	if err != nil {
		t.Fatalf("ListCustomResources() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ListCustomResources() returned %d items, want 1", len(items))
	}

	if err := client.DeleteCustomResource(ctx, dynamo, "llama-svc", "dynamo-system"); err != nil {
		t.Fatalf("DeleteCustomResource() error = %v", err)
	}
	if _, err := client.GetCustomResource(ctx, dynamo, "llama-svc", "dynamo-system"); !apierrors.IsNotFound(err) {
		t.Errorf("GetCustomResource() after delete error = %v, want NotFound", err)
	}
}

func TestClusterClient_CreateRejectsForeignKind(t *testing.T) {
	client := NewClusterClient(fake.NewSimpleClientset(), newFakeDynamic())
	reg := provider.Initialize(catalog.Default())
	dynamo, _ := reg.Get(provider.DynamoProviderID)
	kuberay, _ := reg.Get(provider.KubeRayProviderID)

	result := kuberay.ValidateConfig(map[string]interface{}{
		"name":    "ray-svc",
		"modelId": "Qwen/Qwen2.5-7B-Instruct",
		"engine":  "vllm",
	})
	if !result.Valid {
		t.Fatalf("unexpected validation errors: %v", result.Errors)
	}
	manifests := kuberay.GenerateManifest(result.Config)

	err := client.CreateCustomResource(context.Background(), dynamo, manifests[0])
	if err == nil {
		t.Fatal("CreateCustomResource() should reject a kind the provider does not manage")
	}
}

func TestClusterClient_GetClusterGpuCapacity(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		gpuNode("gpu-a", 8, map[string]string{
			"eks.amazonaws.com/nodegroup": "gpu-large",
			labelGpuProduct:               "NVIDIA-A100-SXM4-80GB",
			labelGpuMemory:                "81920",
		}),
		gpuNode("gpu-b", 4, map[string]string{
			"eks.amazonaws.com/nodegroup": "gpu-small",
		}),
		&corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: "cpu-only"}},
		gpuPod("worker-1", "gpu-a", 3, corev1.PodRunning),
		gpuPod("worker-2", "gpu-b", 4, corev1.PodRunning),
		gpuPod("finished", "gpu-a", 2, corev1.PodSucceeded),
	)
	client := NewClusterClient(clientset, newFakeDynamic())

	snapshot, err := client.GetClusterGpuCapacity(context.Background())
	if err != nil {
		t.Fatalf("GetClusterGpuCapacity() error = %v", err)
	}

	if snapshot.TotalGPUs != 12 {
		t.Errorf("TotalGPUs = %d, want 12", snapshot.TotalGPUs)
	}
	if snapshot.AllocatedGPUs != 7 {
		t.Errorf("AllocatedGPUs = %d, want 7 (terminal pods excluded)", snapshot.AllocatedGPUs)
	}
	if snapshot.AvailableGPUs != 5 {
		t.Errorf("AvailableGPUs = %d, want 5", snapshot.AvailableGPUs)
	}
	if snapshot.MaxNodeGpuCapacity != 8 {
		t.Errorf("MaxNodeGpuCapacity = %d, want 8", snapshot.MaxNodeGpuCapacity)
	}
	if snapshot.MaxContiguousAvailable != 5 {
		t.Errorf("MaxContiguousAvailable = %d, want 5", snapshot.MaxContiguousAvailable)
	}
	if snapshot.GPUMemoryGB != 80 {
		t.Errorf("GPUMemoryGB = %v, want 80", snapshot.GPUMemoryGB)
	}

	if len(snapshot.Pools) != 2 {
		t.Fatalf("Pools = %d, want 2", len(snapshot.Pools))
	}
	if snapshot.Pools[0].Name != "gpu-large" || snapshot.Pools[0].GPUCount != 8 || snapshot.Pools[0].NodeCount != 1 {
		t.Errorf("unexpected first pool: %+v", snapshot.Pools[0])
	}
	if snapshot.Pools[0].GPUModel != "NVIDIA-A100-SXM4-80GB" {
		t.Errorf("GPUModel = %q", snapshot.Pools[0].GPUModel)
	}
	if snapshot.Pools[1].Name != "gpu-small" {
		t.Errorf("unexpected second pool: %+v", snapshot.Pools[1])
	}
}

func TestClusterClient_GetClusterGpuCapacityEmptyCluster(t *testing.T) {
	client := NewClusterClient(fake.NewSimpleClientset(), newFakeDynamic())

	snapshot, err := client.GetClusterGpuCapacity(context.Background())
	if err != nil {
		t.Fatalf("GetClusterGpuCapacity() error = %v", err)
	}
	if snapshot.TotalGPUs != 0 || snapshot.AvailableGPUs != 0 || len(snapshot.Pools) != 0 {
		t.Errorf("empty cluster snapshot = %+v, want zeroes", snapshot)
	}
}

func TestNodePoolFallback(t *testing.T) {
	node := gpuNode("bare", 1, nil)
	if got := nodePool(node); got != "default" {
		t.Errorf("nodePool() = %q, want default", got)
	}
	node = gpuNode("karp", 1, map[string]string{"karpenter.sh/nodepool": "spot-gpu"})
	if got := nodePool(node); got != "spot-gpu" {
		t.Errorf("nodePool() = %q, want spot-gpu", got)
	}
}
