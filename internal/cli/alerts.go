package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var alertsEvaluate bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts",
	Long: `Display the alerts currently held in the engine's state table.

With --evaluate, run one evaluation cycle against the metrics backend
first, so the output reflects live readings rather than the last cycle
of a running server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return fmt.Errorf("alert engine not initialized")
		}

		if alertsEvaluate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			events := Engine.EvaluateCycle(ctx)
			for _, ev := range events {
				kind := "FIRED"
				if ev.Recovery {
					kind = "RECOVERED"
				}
				fmt.Printf("  %s %s\n", kind, ev.Message)
			}
			if len(events) > 0 {
				fmt.Println()
			}
		}

		active := Engine.ActiveAlerts()
		if len(active) == 0 {
			fmt.Println("No active alerts.")
			return nil
		}

		fmt.Printf("%d active alert(s):\n\n", len(active))
		for _, a := range active {
			severity := strings.ToUpper(string(a.Severity))
			fmt.Printf("  [%s] %s: %.2f\n", severity, a.RuleName, a.Value)
			fmt.Printf("             since %s\n\n", a.Since.Format("2006-01-02 15:04 UTC"))
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsEvaluate, "evaluate", true, "run one evaluation cycle before printing")
	rootCmd.AddCommand(alertsCmd)
}
