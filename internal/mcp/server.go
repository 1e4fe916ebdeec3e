// Package mcp provides the MCP (Model Context Protocol) dispatch layer: a
// thin adapter exposing the tool registry over two transports at once, a
// stdio channel for a single locally spawned caller and a streamable HTTP
// channel for many concurrent remote sessions. Both route every call
// through the same registry Invoke path, so tool behavior is
// transport-invariant.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/valter-silva-au/opswatch/internal/tools"
)

// Server exposes the tool registry as an MCP server.
type Server struct {
	server   *gomcp.Server
	registry *tools.Registry
	log      *logrus.Entry
}

// NewServer creates an MCP server over the given registry.
func NewServer(registry *tools.Registry, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		registry: registry,
		log:      logrus.WithField("component", "mcp"),
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "opswatch", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run serves a single caller over stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP handler. Each connecting client
// gets its own session; requests within a session are correlated by the
// protocol's request IDs, so a slow tool call never blocks another.
func (s *Server) HTTPHandler() http.Handler {
	return gomcp.NewStreamableHTTPHandler(func(*http.Request) *gomcp.Server {
		return s.server
	}, nil)
}

// ServeHTTP runs the streaming channel on addr until ctx is cancelled,
// then shuts the listener down gracefully.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.HTTPHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("streaming channel listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	}
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// registerTools mirrors every registry descriptor as an MCP tool whose
// handler delegates to Registry.Invoke. Handlers never learn which
// transport invoked them.
func (s *Server) registerTools() {
	for _, d := range s.registry.List() {
		name := d.Name
		gomcp.AddTool(s.server, &gomcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}, func(ctx context.Context, _ *gomcp.CallToolRequest, args map[string]any) (*gomcp.CallToolResult, any, error) {
			result, err := s.registry.Invoke(ctx, name, args)
			if err != nil {
				// Caller mistakes and backend failures alike come back
				// as structured tool errors, never protocol failures.
				return errorResult(err.Error()), nil, nil
			}
			return &gomcp.CallToolResult{
				Content:           []gomcp.Content{&gomcp.TextContent{Text: result.Summary}},
				StructuredContent: result,
			}, nil, nil
		})
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
