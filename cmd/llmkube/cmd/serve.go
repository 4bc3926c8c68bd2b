package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/klog/v2"

	"github.com/llmkube/llmkube/pkg/api"
	"github.com/llmkube/llmkube/pkg/autoscaler"
	"github.com/llmkube/llmkube/pkg/catalog"
	"github.com/llmkube/llmkube/pkg/kubernetes"
	"github.com/llmkube/llmkube/pkg/provider"
	"github.com/llmkube/llmkube/pkg/rbac"
	"github.com/llmkube/llmkube/pkg/stats"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the llmkube API server",
	Long: `Start the HTTP API server.

The server exposes deployment, capacity and provider endpoints under
/api/v1, plus /healthz and Prometheus /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := viper.GetString("port")
		kubeconfig := viper.GetString("kubeconfig")
		catalogPath := viper.GetString("catalog")

		clients, err := kubernetes.NewClients(kubeconfig)
		if err != nil {
			return fmt.Errorf("failed to build kubernetes clients: %w", err)
		}

		cat, err := catalog.Load(catalogPath)
		if err != nil {
			return fmt.Errorf("failed to load model catalog: %w", err)
		}

		registry := provider.Initialize(cat)
		cluster := kubernetes.NewClusterClient(clients.Clientset, clients.Dynamic)

		preflight(clients, registry)

		gpu := stats.NewGPUStatsHandler()
		defer func() { _ = gpu.Shutdown() }()

		server := api.NewServer(registry, cat, cluster, autoscaler.NewDetector(clients.Clientset), api.Options{
			PodMetrics: kubernetes.NewMetricsClient(clients.Metrics),
			GPU:        gpu,
		})

		klog.Infof("Starting llmkube API server on :%s", port)
		return server.Router().Run(":" + port)
	},
}

// preflight verifies RBAC permissions and provider CRD presence. Failures
// are logged, not fatal: providers without an installed operator stay
// registered but unusable.
func preflight(clients *kubernetes.Clients, registry *provider.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rbac.VerifyPermissions(ctx, clients.Clientset, registry); err != nil {
		klog.Warningf("RBAC preflight: %v", err)
	}

	apiextensions, err := apiextensionsclientset.NewForConfig(clients.Config)
	if err != nil {
		klog.Warningf("Skipping CRD preflight: %v", err)
		return
	}
	statuses, err := rbac.VerifyProviderCRDs(ctx, apiextensions, registry)
	if err != nil {
		klog.Warningf("CRD preflight: %v", err)
		return
	}
	for _, st := range statuses {
		if st.Installed && st.Established {
			klog.Infof("Provider %s: CRD %s ready", st.Provider, st.CRD)
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "8080", "HTTP server port")
	serveCmd.Flags().String("kubeconfig", "", "Path to kubeconfig (defaults to in-cluster, then $KUBECONFIG)")
	serveCmd.Flags().String("catalog", "", "Path to a YAML model catalog (defaults to the built-in catalog)")

	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("kubeconfig", serveCmd.Flags().Lookup("kubeconfig"))
	_ = viper.BindPFlag("catalog", serveCmd.Flags().Lookup("catalog"))

	viper.SetEnvPrefix("LLMKUBE")
	viper.AutomaticEnv()
}
