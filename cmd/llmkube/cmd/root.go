package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "llmkube",
	Short: "Capacity-aware LLM inference deployments on Kubernetes",
	Long: `llmkube deploys large-language-model inference workloads onto
Kubernetes through pluggable runtime providers (Dynamo, KubeRay, Kaito).

It validates a uniform deployment request against the chosen provider,
pre-flights cluster GPU capacity, and synthesizes the runtime-specific
custom resource manifest.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("llmkube %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersion injects build metadata from main.
func SetVersion(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}
