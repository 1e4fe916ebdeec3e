package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a composite system status report",
	Long: `Gather CPU, memory, disk, and recent error-log readings into one report.

Sections whose backend is unreachable are marked unavailable; the report
succeeds as long as at least one section could be gathered.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Registry == nil {
			return fmt.Errorf("tool registry not initialized")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		result, err := Registry.Invoke(ctx, "get_system_status", nil)
		if err != nil {
			return fmt.Errorf("gathering system status: %w", err)
		}

		fmt.Println(result.Summary)
		if len(result.Unavailable) > 0 {
			fmt.Printf("\nUnavailable: %s\n", strings.Join(result.Unavailable, ", "))
		}

		fmt.Println("\nBackends:")
		fmt.Printf("  prometheus: %s\n", healthWord(Metrics != nil && Metrics.CheckHealth(ctx)))
		fmt.Printf("  loki:       %s\n", healthWord(Logs != nil && Logs.CheckHealth(ctx)))
		fmt.Printf("  model:      %s\n", healthWord(Model != nil && Model.CheckHealth(ctx)))
		return nil
	},
}

func healthWord(healthy bool) string {
	if healthy {
		return "up"
	}
	return "down"
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
