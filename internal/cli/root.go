package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "opswatch",
	Short: "opswatch - monitoring assistant for a self-hosted observability stack",
	Long: `opswatch is a monitoring assistant that sits between an AI assistant and a
self-hosted observability stack. It exposes metrics, logs, and system status
as MCP tools, evaluates alert rules against Prometheus on a fixed interval,
and can annotate readings with a local language model.

It provides CLI commands for serving the tool interface, inspecting alerts,
checking system status, and chatting with the model about live metrics.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("opswatch %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
