package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/opswatch/internal/backend"
)

// chatCommands maps slash commands to the tool they invoke.
var chatCommands = map[string]string{
	"/cpu":     "get_cpu_usage",
	"/memory":  "get_memory_status",
	"/disk":    "get_disk_usage",
	"/logs":    "search_error_logs",
	"/status":  "get_system_status",
	"/alerts":  "get_active_alerts",
	"/network": "get_network_status",
	"/top":     "get_top_processes",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive console for querying the monitoring stack",
	Long: `Start an interactive console session.

Slash commands invoke monitoring tools directly:

  /cpu      current CPU usage
  /memory   memory status
  /disk     disk usage per filesystem
  /logs     recent error logs
  /status   composite system status
  /alerts   active alerts
  /network  interface traffic, connections and errors
  /top      processes consuming the most CPU and memory
  /net      network error rate
  /labels   log label names known to the backend
  /find X   search recent logs for the literal text X
  /help     this list
  /exit     leave the session

Anything else is sent to the language model together with a snapshot of
the current system status, so questions like "why is the load high?" are
answered against live readings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Registry == nil {
			return fmt.Errorf("tool registry not initialized")
		}

		fmt.Println("opswatch chat. Type /help for commands, /exit to leave.")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			switch {
			case line == "/exit" || line == "/quit":
				return nil
			case line == "/help":
				printChatHelp()
			case line == "/net":
				runChatNet()
			case line == "/labels":
				runChatLabels()
			case strings.HasPrefix(line, "/find "):
				runChatFind(strings.TrimSpace(strings.TrimPrefix(line, "/find ")))
			case strings.HasPrefix(line, "/"):
				runChatTool(line)
			default:
				runChatPrompt(line)
			}
		}
		return scanner.Err()
	},
}

func printChatHelp() {
	fmt.Println("Commands:")
	for _, c := range []string{"/cpu", "/memory", "/disk", "/logs", "/status", "/alerts", "/network", "/top"} {
		fmt.Printf("  %-9s invoke %s\n", c, chatCommands[c])
	}
	fmt.Println("  /net      network error rate")
	fmt.Println("  /labels   log label names known to the backend")
	fmt.Println("  /find X   search recent logs for the literal text X")
	fmt.Println("  /help     this list")
	fmt.Println("  /exit     leave the session")
	fmt.Println("Anything else is sent to the language model with live system context.")
}

func runChatNet() {
	if Metrics == nil {
		fmt.Println("No metrics backend configured.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rate, err := Metrics.NetworkErrorRate(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Network error rate: %.4f errors/s\n", rate)
}

func runChatLabels() {
	if Logs == nil {
		fmt.Println("No log backend configured.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	labels, err := Logs.Labels(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(strings.Join(labels, ", "))
}

func runChatFind(text string) {
	if text == "" {
		fmt.Println("Usage: /find <text>")
		return
	}
	if Logs == nil {
		fmt.Println("No log backend configured.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := Logs.SearchLogs(ctx, text, time.Hour, 20)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(result.Lines) == 0 {
		fmt.Println("No matching lines in the last hour.")
		return
	}
	for _, l := range result.Lines {
		fmt.Printf("[%s] %s: %s\n", l.Timestamp.Format("15:04:05"), l.Source, l.Message)
	}
}

func runChatTool(line string) {
	tool, ok := chatCommands[line]
	if !ok {
		fmt.Printf("Unknown command %s. Type /help for the list.\n", line)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := Registry.Invoke(ctx, tool, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(result.Summary)
	if len(result.Unavailable) > 0 {
		fmt.Printf("(unavailable: %s)\n", strings.Join(result.Unavailable, ", "))
	}
}

func runChatPrompt(prompt string) {
	if Model == nil {
		fmt.Println("No language model configured.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	// Give the model the current system picture so it answers against
	// live readings rather than guesses.
	var contextNote string
	if Registry != nil {
		statusCtx, statusCancel := context.WithTimeout(ctx, 30*time.Second)
		if status, err := Registry.Invoke(statusCtx, "get_system_status", nil); err == nil {
			contextNote = status.Summary
		}
		statusCancel()
	}

	full := prompt
	if contextNote != "" {
		full = fmt.Sprintf("Current system status:\n%s\n\nQuestion: %s", contextNote, prompt)
	}

	answer, err := Model.Complete(ctx, full, backend.CompletionOptions{Temperature: 0.7})
	if err != nil {
		fmt.Printf("Model error: %v\n", err)
		return
	}
	fmt.Println(strings.TrimSpace(answer))
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
