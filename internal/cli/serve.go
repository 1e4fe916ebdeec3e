package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	opsmcp "github.com/valter-silva-au/opswatch/internal/mcp"
)

var (
	serveTransport string
	serveListen    string
	serveNoEngine  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the opswatch MCP server",
	Long: `Start the opswatch MCP (Model Context Protocol) server.

With --transport stdio (the default) the server talks to a single locally
spawned client over stdin/stdout. With --transport http it serves many
concurrent sessions over a streamable HTTP endpoint.

The alert evaluation loop runs alongside either transport unless
--no-engine is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Registry == nil {
			return fmt.Errorf("tool registry not initialized")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if Engine != nil && !serveNoEngine {
			go Engine.Run(ctx)
		}

		srv := opsmcp.NewServer(Registry, appVersion)

		switch serveTransport {
		case "stdio":
			if err := srv.Run(ctx); err != nil {
				return fmt.Errorf("running MCP server: %w", err)
			}
		case "http":
			listen := serveListen
			if listen == "" && Cfg != nil {
				listen = Cfg.Listen
			}
			if listen == "" {
				listen = ":8700"
			}
			if err := srv.ServeHTTP(ctx, listen); err != nil {
				return fmt.Errorf("running MCP server: %w", err)
			}
		default:
			return fmt.Errorf("unknown transport %q, expected stdio or http", serveTransport)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveTransport, "transport", "stdio", "transport to serve on: stdio or http")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address for the http transport (default from config)")
	serveCmd.Flags().BoolVar(&serveNoEngine, "no-engine", false, "do not run the alert evaluation loop")
	rootCmd.AddCommand(serveCmd)
}
