// Package app wires configuration into a running proxy: sources, registry client,
// aggregator, dispatcher and MCP server.
package app

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/aggregator"
	"github.com/bitte-ai/go-mcp-proxy/src/config"
	"github.com/bitte-ai/go-mcp-proxy/src/dispatch"
	"github.com/bitte-ai/go-mcp-proxy/src/evm"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/registry"
	"github.com/bitte-ai/go-mcp-proxy/src/repository"
	"github.com/bitte-ai/go-mcp-proxy/src/server"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/agentkit"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/goat"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/mcpupstream"
	"github.com/bitte-ai/go-mcp-proxy/src/sources/plugins"
	httpx "github.com/bitte-ai/go-mcp-proxy/src/transports/http"
)

// App holds the wired components.
type App struct {
	Config     *config.Config
	Registry   *registry.Client
	Sources    *repository.Registry
	Aggregator *aggregator.Aggregator
	Dispatcher *dispatch.Dispatcher
	Server     *server.Server

	upstreams []*mcpupstream.Source
}

// Build wires cfg. Sources are registered in the order goat, agentkit, upstreams,
// plugins.
func Build(cfg *config.Config, version string, logger logrus.FieldLogger) (*App, error) {
	logger = logging.OrDiscard(logger)
	timeout := cfg.Registry.Timeout

	var reader evm.Reader
	if cfg.Chain.RPCURL != "" {
		reader = evm.NewClient(cfg.Chain.RPCURL, timeout, logger.WithField("component", "rpc"))
	} else {
		logger.Warn("no ETH_RPC_URL configured; on-chain reads will fail")
	}
	wallet, err := evm.NewWallet(cfg.Chain.WalletAddress, cfg.Chain.ChainID, reader)
	if err != nil {
		return nil, err
	}

	providers := []agentkit.ActionProvider{agentkit.WalletActions{}, agentkit.ERC20Actions{}}
	if !cfg.Pyth.Disabled {
		providers = append(providers, agentkit.NewPythActions(cfg.Pyth.URL, timeout))
	}
	kit, err := agentkit.New(agentkit.NewWalletProvider(wallet), logger.WithField("source", agentkit.Name), providers...)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	sources := []repository.Source{
		goat.NewSource(goat.NewAdapter(wallet, cfg.Tokens...)),
		kit,
	}
	for _, uc := range cfg.Upstreams {
		up, err := mcpupstream.New(uc, version, logger)
		if err != nil {
			return nil, err
		}
		a.upstreams = append(a.upstreams, up)
		sources = append(sources, up)
	}
	for _, pc := range cfg.Plugins {
		p, err := plugins.NewSource(pc, timeout, logger)
		if err != nil {
			return nil, err
		}
		sources = append(sources, p)
	}
	if a.Sources, err = repository.NewRegistry(sources...); err != nil {
		return nil, fmt.Errorf("registering sources: %w", err)
	}

	a.Registry = registry.NewClient(registry.Options{
		RegistryURL: cfg.Registry.URL,
		RuntimeURL:  cfg.Registry.RuntimeURL,
		APIKey:      cfg.Registry.APIKey,
		Timeout:     timeout,
	}, logger.WithField("source", registry.SourceName))

	a.Aggregator = aggregator.New(a.Registry, a.Sources, logger)
	a.Dispatcher = dispatch.New(a.Aggregator, a.Registry, httpx.NewExecutor(logger, timeout), logger)
	a.Server = server.New(cfg.Server.Name, version, a.Aggregator, a.Dispatcher, logger)
	return a, nil
}

// Close releases upstream connections.
func (a *App) Close() error {
	var errList []error
	for _, up := range a.upstreams {
		if err := up.Close(); err != nil {
			errList = append(errList, fmt.Errorf("closing %s: %w", up.Name(), err))
		}
	}
	return errors.Join(errList...)
}
