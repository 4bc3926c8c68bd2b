package status

import (
	"context"
	"sort"
	"strings"
	"sync"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/klog/v2"

	"github.com/llmkube/llmkube/pkg/provider"
)

// ClusterState is the narrow cluster read surface the aggregator needs.
// *kubernetes.ClusterClient satisfies it.
type ClusterState interface {
	ListCustomResources(ctx context.Context, p provider.Provider, namespace string) ([]unstructured.Unstructured, error)
	GetCustomResource(ctx context.Context, p provider.Provider, name, namespace string) (*unstructured.Unstructured, error)
	ListPods(ctx context.Context, labelSelector, namespace string) ([]corev1.Pod, error)
}

// Aggregator computes deployment status from live cluster objects.
type Aggregator struct {
	cluster  ClusterState
	registry *provider.Registry
}

func NewAggregator(cluster ClusterState, registry *provider.Registry) *Aggregator {
	return &Aggregator{cluster: cluster, registry: registry}
}

// Get builds the status of a single named deployment.
func (a *Aggregator) Get(ctx context.Context, p provider.Provider, name, namespace string) (*DeploymentStatus, error) {
	obj, err := a.cluster.GetCustomResource(ctx, p, name, namespace)
	if err != nil {
		return nil, err
	}

	pods, err := a.cluster.ListPods(ctx, provider.DeploymentSelector(name), namespace)
	if err != nil {
		klog.Warningf("Failed to list pods for %s/%s: %v", namespace, name, err)
		pods = nil
	}

	return Build(obj, pods), nil
}

// ListOptions controls pagination of the merged listing.
type ListOptions struct {
	Offset int
	Limit  int
}

// List fans out one listing per provider namespace in parallel and merges
// the results sorted by creation time descending. A failed namespace query
// contributes zero entries instead of failing the aggregate.
func (a *Aggregator) List(ctx context.Context, opts ListOptions) []DeploymentStatus {
	providers := a.registry.List()

	var mu sync.Mutex
	var all []DeploymentStatus
	var wg sync.WaitGroup

	for _, p := range providers {
		wg.Add(1)
		go func(p provider.Provider) {
			defer wg.Done()
			namespace := p.Metadata().DefaultNamespace
			items, err := a.cluster.ListCustomResources(ctx, p, namespace)
			if err != nil {
				klog.Warningf("Skipping namespace %s for provider %s: %v", namespace, p.Metadata().ID, err)
				return
			}
			for i := range items {
				obj := &items[i]
				pods, err := a.cluster.ListPods(ctx, provider.DeploymentSelector(obj.GetName()), namespace)
				if err != nil {
					klog.Warningf("Failed to list pods for %s/%s: %v", namespace, obj.GetName(), err)
					pods = nil
				}
				st := Build(obj, pods)
				mu.Lock()
				all = append(all, *st)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Name < all[j].Name
	})

	return paginate(all, opts)
}

func paginate(all []DeploymentStatus, opts ListOptions) []DeploymentStatus {
	if opts.Offset >= len(all) {
		return []DeploymentStatus{}
	}
	end := len(all)
	if opts.Limit > 0 && opts.Offset+opts.Limit < end {
		end = opts.Offset + opts.Limit
	}
	return all[opts.Offset:end]
}

// Build derives the status of one custom resource from the resource itself
// and its pods. Phase is derived, never stored.
func Build(obj *unstructured.Unstructured, pods []corev1.Pod) *DeploymentStatus {
	st := &DeploymentStatus{
		Name:      obj.GetName(),
		Namespace: obj.GetNamespace(),
		ModelID:   obj.GetAnnotations()[provider.AnnotationModel],
		Provider:  obj.GetLabels()[provider.LabelProvider],
		CreatedAt: obj.GetCreationTimestamp().Time,
	}

	st.DesiredReplicas, st.PrefillDesired, st.DecodeDesired = desiredReplicas(obj)

	for i := range pods {
		pod := &pods[i]
		ps := PodStatus{
			Name:  pod.Name,
			Phase: string(pod.Status.Phase),
			Node:  pod.Spec.NodeName,
		}
		for _, cond := range pod.Status.Conditions {
			if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
				ps.Ready = true
			}
		}
		for _, cs := range pod.Status.ContainerStatuses {
			ps.Restarts += cs.RestartCount
		}
		st.Pods = append(st.Pods, ps)

		if ps.Ready {
			st.ReadyReplicas++
			if strings.Contains(pod.Name, "prefill") {
				st.PrefillReady++
			}
			if strings.Contains(pod.Name, "decode") {
				st.DecodeReady++
			}
		}
		if pod.Status.Phase == corev1.PodRunning {
			st.AvailableReplicas++
		}
	}

	st.ServiceName = frontendService(obj)
	st.Phase = derivePhase(obj, pods, st.DesiredReplicas, st.ReadyReplicas)
	return st
}

// derivePhase implements the lifecycle state machine. Rule order matters:
// deletion wins over everything, unrecoverable pod failure over progress.
func derivePhase(obj *unstructured.Unstructured, pods []corev1.Pod, desired, ready int) Phase {
	if obj.GetDeletionTimestamp() != nil {
		return PhaseTerminating
	}
	if anyPodFailedTerminally(pods) {
		return PhaseFailed
	}
	if desired > 0 && ready >= desired {
		return PhaseRunning
	}
	if observedByController(obj) || len(pods) > 0 {
		return PhaseDeploying
	}
	return PhasePending
}

// unrecoverableWaitReasons are container waiting states a restart cannot
// fix; the controller will keep the pod stuck until the pod spec changes.
var unrecoverableWaitReasons = map[string]bool{
	"ErrImagePull":                 true,
	"ImagePullBackOff":             true,
	"InvalidImageName":             true,
	"CreateContainerConfigError":   true,
	"CreateContainerError":         true,
	"RunContainerError":            false, // retried by kubelet
	"CrashLoopBackOff":             false, // may recover on restart
	"ContainerCreating":            false,
	"PodInitializing":              false,
}

func anyPodFailedTerminally(pods []corev1.Pod) bool {
	for i := range pods {
		pod := &pods[i]
		if pod.Status.Phase == corev1.PodFailed {
			return true
		}
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.State.Waiting != nil && unrecoverableWaitReasons[cs.State.Waiting.Reason] {
				return true
			}
		}
	}
	return false
}

// observedByController reports whether the resource's controller has acted
// on it at all: any status conditions or an observed generation.
func observedByController(obj *unstructured.Unstructured) bool {
	conditions, found, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if found && len(conditions) > 0 {
		return true
	}
	gen, found, _ := unstructured.NestedInt64(obj.Object, "status", "observedGeneration")
	return found && gen > 0
}

// desiredReplicas extracts desired counts from the custom resource. Each
// kind stores them at a different path.
func desiredReplicas(obj *unstructured.Unstructured) (desired, prefill, decode int) {
	switch obj.GetKind() {
	case "DynamoGraphDeployment":
		services, found, _ := unstructured.NestedMap(obj.Object, "spec", "services")
		if !found {
			return 1, 0, 0
		}
		if worker, ok := services["Worker"].(map[string]interface{}); ok {
			return intField(worker, "replicas", 1), 0, 0
		}
		if pw, ok := services["PrefillWorker"].(map[string]interface{}); ok {
			prefill = intField(pw, "replicas", 1)
		}
		if dw, ok := services["DecodeWorker"].(map[string]interface{}); ok {
			decode = intField(dw, "replicas", 1)
		}
		return prefill + decode, prefill, decode
	case "RayService":
		groups, found, _ := unstructured.NestedSlice(obj.Object, "spec", "rayClusterConfig", "workerGroupSpecs")
		if found && len(groups) > 0 {
			if group, ok := groups[0].(map[string]interface{}); ok {
				return intField(group, "replicas", 1), 0, 0
			}
		}
		return 1, 0, 0
	case "Workspace":
		count, found, _ := unstructured.NestedInt64(obj.Object, "resource", "count")
		if found {
			return int(count), 0, 0
		}
		return 1, 0, 0
	case "InferenceSet":
		replicas, found, _ := unstructured.NestedInt64(obj.Object, "spec", "replicas")
		if found {
			return int(replicas), 0, 0
		}
		return 1, 0, 0
	}
	return 1, 0, 0
}

func intField(m map[string]interface{}, key string, fallback int) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

// frontendService names the service clients connect through, following each
// runtime's conventions.
func frontendService(obj *unstructured.Unstructured) string {
	switch obj.GetKind() {
	case "DynamoGraphDeployment":
		return obj.GetName() + "-frontend"
	case "RayService":
		return obj.GetName() + "-serve-svc"
	case "Workspace", "InferenceSet":
		return obj.GetName()
	}
	return ""
}
