// Package mcpupstream registers a remote or child-process MCP server as a capability
// source.
package mcpupstream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// ClientName is reported to upstream servers during initialization.
const ClientName = "go-mcp-proxy"

// Config describes one upstream. Exactly one of URL or Command must be set.
type Config struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("upstream name is required")
	}
	if (c.URL == "") == (len(c.Command) == 0) {
		return fmt.Errorf("upstream %s: exactly one of url or command must be set", c.Name)
	}
	return nil
}

// Source proxies an upstream MCP server's tools. The connection is opened on first
// use and kept; the tool list is fetched on every ListTools call.
type Source struct {
	cfg     Config
	version string
	logger  logrus.FieldLogger

	mu  sync.Mutex
	cli *mcpclient.Client
}

// New validates cfg and returns an unconnected Source.
func New(cfg Config, version string, logger logrus.FieldLogger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if version == "" {
		version = "dev"
	}
	return &Source{
		cfg:     cfg,
		version: version,
		logger:  logging.OrDiscard(logger).WithField("source", cfg.Name),
	}, nil
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) connect(ctx context.Context) (*mcpclient.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cli != nil {
		return s.cli, nil
	}

	var (
		cli *mcpclient.Client
		err error
	)
	if s.cfg.URL != "" {
		cli, err = mcpclient.NewStreamableHttpClient(s.cfg.URL, transport.WithHTTPHeaders(s.cfg.Headers))
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP HTTP client: %w", err)
		}
		if err := cli.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start MCP HTTP client: %w", err)
		}
	} else {
		env := os.Environ()
		for k, v := range s.cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		s.logger.Infof("starting MCP server with command: %v", s.cfg.Command)
		cli, err = mcpclient.NewStdioMCPClient(s.cfg.Command[0], env, s.cfg.Command[1:]...)
		if err != nil {
			return nil, fmt.Errorf("failed to start MCP server: %w", err)
		}
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: s.version}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	s.logger.Info("connected to upstream MCP server")
	s.cli = cli
	return cli, nil
}

// reset drops a broken connection so the next call reconnects.
func (s *Source) reset(cli *mcpclient.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cli == cli {
		s.cli.Close()
		s.cli = nil
	}
}

// ListTools fetches the upstream's current tools.
func (s *Source) ListTools(ctx context.Context) ([]tools.Tool, error) {
	cli, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		s.reset(cli)
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	out := make([]tools.Tool, 0, len(res.Tools))
	for _, tl := range res.Tools {
		name := tl.Name
		inputs := tools.Schema{
			Type:       tl.InputSchema.Type,
			Properties: tl.InputSchema.Properties,
			Required:   tl.InputSchema.Required,
		}
		if inputs.Type == "" {
			inputs.Type = "object"
		}
		out = append(out, tools.NewNativeTool(s.cfg.Name, name, tl.Description, inputs,
			func(ctx context.Context, params map[string]any) (any, error) {
				return s.call(ctx, name, params)
			}))
	}
	return out, nil
}

func (s *Source) call(ctx context.Context, name string, params map[string]any) (any, error) {
	cli, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = params

	s.logger.WithField("tool", name).Debug("calling upstream tool")
	res, err := cli.CallTool(ctx, req)
	if err != nil {
		s.reset(cli)
		return nil, err
	}
	return Unwrap(res)
}

// Unwrap turns a call result into a plain value: a lone text block becomes its string,
// anything richer a decoded JSON tree. Error results become Go errors.
func Unwrap(res *mcp.CallToolResult) (any, error) {
	if res == nil {
		return nil, nil
	}
	texts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		switch tc := c.(type) {
		case mcp.TextContent:
			texts = append(texts, tc.Text)
		case *mcp.TextContent:
			texts = append(texts, tc.Text)
		}
	}
	if res.IsError {
		if len(texts) == 0 {
			return nil, errors.New("upstream tool failed")
		}
		return nil, errors.New(strings.Join(texts, "\n"))
	}
	if len(texts) == 1 && len(res.Content) == 1 {
		return texts[0], nil
	}
	return json.Normalize(res)
}

// Close shuts down the upstream connection, if open.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cli == nil {
		return nil
	}
	err := s.cli.Close()
	s.cli = nil
	return err
}
