package autoscaler

import (
	"context"
	"fmt"
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func labeledNode(name string, labels map[string]string) *corev1.Node {
	return &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels}}
}

func statusMap(lastUpdated time.Time) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: statusConfigMap, Namespace: statusNamespace},
		Data: map[string]string{
			statusKey: fmt.Sprintf(
				"nodeGroups:\n- name: gpu-pool\n  min: 0\n  max: 8\n  current: 2\nlastUpdated: %q\n",
				lastUpdated.UTC().Format(time.RFC3339)),
		},
	}
}

func TestDetect_ManagedProviders(t *testing.T) {
	tests := []struct {
		name         string
		label        string
		wantProvider string
	}{
		{"eks nodegroup", "eks.amazonaws.com/nodegroup", "eks"},
		{"gke nodepool", "cloud.google.com/gke-nodepool", "gke"},
		{"aks agentpool", "kubernetes.azure.com/agentpool", "aks"},
		{"karpenter nodepool", "karpenter.sh/nodepool", "karpenter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(fake.NewSimpleClientset(
				labeledNode("node-a", map[string]string{tt.label: "pool-1"}),
				labeledNode("node-b", nil),
			))

			info, err := d.Detect(context.Background())
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if info.Type != TypeManaged || info.Provider != tt.wantProvider {
				t.Errorf("Detect() = %+v, want managed/%s", info, tt.wantProvider)
			}
			if !info.Healthy {
				t.Error("managed autoscaler should be healthy")
			}
		})
	}
}

func TestDetect_SelfHosted(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	t.Run("fresh status is healthy", func(t *testing.T) {
		d := NewDetector(fake.NewSimpleClientset(
			labeledNode("node-a", nil),
			statusMap(now.Add(-time.Minute)),
		))
		d.now = func() time.Time { return now }

		info, err := d.Detect(context.Background())
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if info.Type != TypeSelfHosted || !info.Healthy {
			t.Errorf("Detect() = %+v, want healthy self-hosted", info)
		}
		if len(info.NodeGroups) != 1 || info.NodeGroups[0].Name != "gpu-pool" || info.NodeGroups[0].Max != 8 {
			t.Errorf("NodeGroups = %+v", info.NodeGroups)
		}
	})

	t.Run("stale status is unhealthy", func(t *testing.T) {
		d := NewDetector(fake.NewSimpleClientset(
			labeledNode("node-a", nil),
			statusMap(now.Add(-10*time.Minute)),
		))
		d.now = func() time.Time { return now }

		info, err := d.Detect(context.Background())
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if info.Type != TypeSelfHosted || info.Healthy {
			t.Errorf("Detect() = %+v, want unhealthy self-hosted", info)
		}
	})
}

func TestDetect_None(t *testing.T) {
	d := NewDetector(fake.NewSimpleClientset(labeledNode("node-a", nil)))

	info, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Type != TypeNone {
		t.Errorf("Detect() = %+v, want none", info)
	}
}

func TestDetect_ManagedWinsOverStatusRecord(t *testing.T) {
	d := NewDetector(fake.NewSimpleClientset(
		labeledNode("node-a", map[string]string{"karpenter.sh/nodepool": "gpu"}),
		statusMap(time.Now()),
	))

	info, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if info.Type != TypeManaged {
		t.Errorf("Detect() = %+v, want managed", info)
	}
}
