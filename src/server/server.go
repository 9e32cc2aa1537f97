// Package server exposes the aggregator and dispatcher as MCP tools.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/aggregator"
	"github.com/bitte-ai/go-mcp-proxy/src/config"
	"github.com/bitte-ai/go-mcp-proxy/src/dispatch"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/registry"
)

const (
	HeaderAgentID   = "x-agent-id"
	HeaderAccountID = "x-account-id"
	HeaderAPIKey    = "x-bitte-api-key"
)

// Identity is what a caller's request headers say about it. Nothing is verified.
type Identity struct {
	AgentID   string
	AccountID string
	APIKey    string
}

type identityKey struct{}

// WithIdentity stores id in ctx. A non-empty API key also becomes the runtime key.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	if id.APIKey != "" {
		ctx = registry.WithAPIKey(ctx, id.APIKey)
	}
	return ctx
}

// IdentityFromContext returns the caller identity, or the zero value.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// HTTPContext captures the identity headers of an incoming request.
func HTTPContext(ctx context.Context, r *http.Request) context.Context {
	return WithIdentity(ctx, Identity{
		AgentID:   r.Header.Get(HeaderAgentID),
		AccountID: r.Header.Get(HeaderAccountID),
		APIKey:    r.Header.Get(HeaderAPIKey),
	})
}

// Server is the MCP front end.
type Server struct {
	mcp    *mcpserver.MCPServer
	agg    *aggregator.Aggregator
	disp   *dispatch.Dispatcher
	logger logrus.FieldLogger
}

// New builds a Server with every tool registered.
func New(name, version string, agg *aggregator.Aggregator, disp *dispatch.Dispatcher, logger logrus.FieldLogger) *Server {
	if name == "" {
		name = config.DefaultServerName
	}
	s := &Server{
		mcp:    mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(false), mcpserver.WithRecovery()),
		agg:    agg,
		disp:   disp,
		logger: logging.OrDiscard(logger),
	}
	s.registerTools()
	return s
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Handler returns a streamable HTTP handler, for embedding and tests.
func (s *Server) Handler(endpoint string) http.Handler {
	if endpoint == "" {
		endpoint = config.DefaultMCPEndpoint
	}
	return mcpserver.NewStreamableHTTPServer(s.mcp,
		mcpserver.WithEndpointPath(endpoint),
		mcpserver.WithHTTPContextFunc(HTTPContext),
	)
}

// Serve runs the configured transport until ctx is cancelled or the transport fails.
func (s *Server) Serve(ctx context.Context, cfg config.ServerConfig) error {
	switch cfg.Transport {
	case config.TransportStdio:
		s.logger.Info("Starting MCP server on stdio")
		stdio := mcpserver.NewStdioServer(s.mcp)
		err := stdio.Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil

	case config.TransportSSE:
		sse := mcpserver.NewSSEServer(s.mcp,
			mcpserver.WithBaseURL(baseURL(cfg)),
			mcpserver.WithSSEEndpoint(cfg.SSEEndpoint),
			mcpserver.WithSSEContextFunc(HTTPContext),
		)
		return s.run(ctx, cfg, "SSE", sse.Start, sse.Shutdown)

	case config.TransportStreamable:
		streamable := mcpserver.NewStreamableHTTPServer(s.mcp,
			mcpserver.WithEndpointPath(cfg.MCPEndpoint),
			mcpserver.WithHTTPContextFunc(HTTPContext),
		)
		return s.run(ctx, cfg, "streamable HTTP", streamable.Start, streamable.Shutdown)
	}
	return fmt.Errorf("unknown transport %q", cfg.Transport)
}

func (s *Server) run(ctx context.Context, cfg config.ServerConfig, kind string, start func(string) error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Bitte AI MCP Proxy server is running on port %d (%s)", cfg.Port, kind)
		errCh <- start(cfg.Addr())
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down MCP server")
		return shutdown(context.Background())
	}
}

func baseURL(cfg config.ServerConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", strings.TrimSuffix(host, "/"), cfg.Port)
}
