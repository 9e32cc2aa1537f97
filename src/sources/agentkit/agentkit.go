// Package agentkit exposes wallet-bound action providers as tools named
// <ProviderName>_<action>.
package agentkit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/evm"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// Name is the source name agentkit tools are registered under.
const Name = "agentkit"

// Network describes the chain a wallet provider is bound to.
type Network struct {
	NetworkID      string `json:"networkId"`
	ChainID        string `json:"chainId"`
	ProtocolFamily string `json:"protocolFamily"`
}

// WalletProvider is the read-only wallet the action providers act for.
type WalletProvider struct {
	wallet *evm.Wallet
}

// NewWalletProvider wraps wallet.
func NewWalletProvider(wallet *evm.Wallet) *WalletProvider {
	return &WalletProvider{wallet: wallet}
}

func (p *WalletProvider) Name() string { return "AgentKitWalletProvider" }

func (p *WalletProvider) Address() string { return p.wallet.Address() }

func (p *WalletProvider) Wallet() *evm.Wallet { return p.wallet }

func (p *WalletProvider) Network() Network {
	id := p.wallet.ChainID()
	networkID := "chain-" + strconv.FormatUint(id, 10)
	switch id {
	case 1:
		networkID = "mainnet"
	case 8453:
		networkID = "base-mainnet"
	case 84532:
		networkID = "base-sepolia"
	}
	return Network{NetworkID: networkID, ChainID: strconv.FormatUint(id, 10), ProtocolFamily: "ethereum"}
}

// Action is one operation of an action provider. Actions report results as text.
type Action struct {
	Name        string
	Description string
	Schema      tools.Schema
	Invoke      func(ctx context.Context, wallet *WalletProvider, params map[string]any) (string, error)
}

// ActionProvider groups related actions.
type ActionProvider interface {
	Name() string
	Actions() []Action
}

// Kit binds action providers to a wallet.
type Kit struct {
	wallet    *WalletProvider
	providers []ActionProvider
	logger    logrus.FieldLogger
}

// New builds a Kit. Provider names must be unique.
func New(wallet *WalletProvider, logger logrus.FieldLogger, providers ...ActionProvider) (*Kit, error) {
	seen := map[string]bool{}
	for _, p := range providers {
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate action provider %s", p.Name())
		}
		seen[p.Name()] = true
	}
	return &Kit{wallet: wallet, providers: providers, logger: logging.OrDiscard(logger)}, nil
}

func (k *Kit) Name() string { return Name }

// ListTools flattens every provider's actions into native tools. A failing action
// yields "Error executing tool <name>: <msg>" as its result rather than an error.
func (k *Kit) ListTools(ctx context.Context) ([]tools.Tool, error) {
	var out []tools.Tool
	for _, p := range k.providers {
		for _, action := range p.Actions() {
			name := p.Name() + "_" + action.Name
			invoke := action.Invoke
			if invoke == nil {
				k.logger.WithField("tool", name).Warn("skipping action without an implementation")
				continue
			}
			out = append(out, tools.NewNativeTool(Name, name, action.Description, action.Schema,
				func(ctx context.Context, params map[string]any) (any, error) {
					log := k.logger.WithField("tool", name)
					log.Debug("executing action")
					res, err := invoke(ctx, k.wallet, params)
					if err != nil {
						log.Warnf("action failed: %v", err)
						return fmt.Sprintf("Error executing tool %s: %s", name, err.Error()), nil
					}
					return res, nil
				}))
		}
	}
	return out, nil
}
