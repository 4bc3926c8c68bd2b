// Package kubernetes implements the cluster state collaborator: custom
// resource operations through the dynamic client, pod/node listings, and the
// GPU capacity inspector.
package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/klog/v2"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

// Clients bundles the typed, dynamic, and metrics clients plus the rest
// config they were built from.
type Clients struct {
	Clientset kubernetes.Interface
	Dynamic   dynamic.Interface
	Metrics   metricsclient.Interface
	Config    *rest.Config
}

// NewClients builds the client bundle from the in-cluster config when
// available, falling back to kubeconfig (explicit path, $KUBECONFIG, then
// ~/.kube/config).
func NewClients(kubeconfig string) (*Clients, error) {
	config, err := resolveConfig(kubeconfig)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	metricsClient, err := metricsclient.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	return &Clients{
		Clientset: clientset,
		Dynamic:   dynamicClient,
		Metrics:   metricsClient,
		Config:    config,
	}, nil
}

func resolveConfig(kubeconfig string) (*rest.Config, error) {
	if config, err := rest.InClusterConfig(); err == nil {
		klog.V(2).Info("Using in-cluster kubernetes config")
		return config, nil
	}

	if kubeconfig == "" {
		kubeconfig = os.Getenv("KUBECONFIG")
	}
	if kubeconfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig from %s: %w", kubeconfig, err)
	}
	klog.V(2).Infof("Using kubeconfig from %s", kubeconfig)
	return config, nil
}
