// Package autoscaler classifies how (and whether) the cluster scales its
// node groups.
package autoscaler

import (
	"context"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

const (
	TypeManaged    = "managed"
	TypeSelfHosted = "self-hosted"
	TypeNone       = "none"
)

// statusNamespace/statusConfigMap locate the self-hosted autoscaler's
// status record.
const (
	statusNamespace = "kube-system"
	statusConfigMap = "cluster-autoscaler-status"
	statusKey       = "status"
)

// stalenessThreshold after which a present status record is reported
// unhealthy.
const stalenessThreshold = 5 * time.Minute

// managedLabels map a node label to the cloud autoscaler that sets it.
var managedLabels = []struct {
	label    string
	provider string
}{
	{"karpenter.sh/nodepool", "karpenter"},
	{"eks.amazonaws.com/nodegroup", "eks"},
	{"cloud.google.com/gke-nodepool", "gke"},
	{"kubernetes.azure.com/agentpool", "aks"},
}

// NodeGroup is one scalable group from a self-hosted autoscaler status.
type NodeGroup struct {
	Name    string `json:"name"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	Current int    `json:"current"`
}

// Info is the detection result.
type Info struct {
	Type        string      `json:"type"`
	Provider    string      `json:"provider,omitempty"`
	Healthy     bool        `json:"healthy"`
	NodeGroups  []NodeGroup `json:"nodeGroups,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated,omitempty"`
}

// statusRecord is the self-hosted autoscaler's serialized status.
type statusRecord struct {
	NodeGroups  []NodeGroup `json:"nodeGroups"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// Detector inspects node labels and the autoscaler status record.
type Detector struct {
	clientset kubernetes.Interface
	now       func() time.Time
}

func NewDetector(clientset kubernetes.Interface) *Detector {
	return &Detector{clientset: clientset, now: time.Now}
}

// Detect classifies the cluster's autoscaling setup. Managed label
// detection wins over a self-hosted status record.
func (d *Detector) Detect(ctx context.Context) (*Info, error) {
	nodes, err := d.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes for autoscaler detection: %w", err)
	}

	for _, entry := range managedLabels {
		for i := range nodes.Items {
			if v, ok := nodes.Items[i].Labels[entry.label]; ok && v != "" {
				klog.V(2).Infof("Detected managed autoscaler %s via label %s", entry.provider, entry.label)
				return &Info{Type: TypeManaged, Provider: entry.provider, Healthy: true}, nil
			}
		}
	}

	info, err := d.detectSelfHosted(ctx)
	if err != nil {
		return nil, err
	}
	if info != nil {
		return info, nil
	}

	return &Info{Type: TypeNone}, nil
}

func (d *Detector) detectSelfHosted(ctx context.Context) (*Info, error) {
	cm, err := d.clientset.CoreV1().ConfigMaps(statusNamespace).Get(ctx, statusConfigMap, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read autoscaler status: %w", err)
	}

	raw, ok := cm.Data[statusKey]
	if !ok {
		klog.Warningf("ConfigMap %s/%s has no %q key", statusNamespace, statusConfigMap, statusKey)
		return nil, nil
	}

	var record statusRecord
	if err := yaml.Unmarshal([]byte(raw), &record); err != nil {
		klog.Warningf("Unparseable autoscaler status: %v", err)
		return nil, nil
	}

	info := &Info{
		Type:        TypeSelfHosted,
		NodeGroups:  record.NodeGroups,
		LastUpdated: record.LastUpdated,
		Healthy:     d.now().Sub(record.LastUpdated) <= stalenessThreshold,
	}
	if !info.Healthy {
		klog.Warningf("Autoscaler status is stale (last updated %s)", record.LastUpdated.Format(time.RFC3339))
	}
	return info, nil
}
