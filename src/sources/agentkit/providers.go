package agentkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/cast"

	"github.com/bitte-ai/go-mcp-proxy/src/evm"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

func stringProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func requireString(params map[string]any, name string) (string, error) {
	v := strings.TrimSpace(cast.ToString(params[name]))
	if v == "" {
		return "", fmt.Errorf("missing parameter %s", name)
	}
	return v, nil
}

// WalletActions provides wallet details and native transfers.
type WalletActions struct{}

func (WalletActions) Name() string { return "WalletActionProvider" }

func (WalletActions) Actions() []Action {
	return []Action{
		{
			Name:        "get_wallet_details",
			Description: "This tool will return the details of the connected wallet including its address, network, and native balance.",
			Schema:      tools.ObjectSchema(nil),
			Invoke: func(ctx context.Context, w *WalletProvider, params map[string]any) (string, error) {
				bal, err := w.Wallet().Balance(ctx)
				if err != nil {
					return "", err
				}
				n := w.Network()
				return fmt.Sprintf("Wallet Details:\n- Provider: %s\n- Address: %s\n- Network:\n  * Protocol Family: %s\n  * Network ID: %s\n  * Chain ID: %s\n- Native Balance: %s WEI",
					w.Name(), w.Address(), n.ProtocolFamily, n.NetworkID, n.ChainID, bal.Dec()), nil
			},
		},
		{
			Name:        "native_transfer",
			Description: "This tool will prepare a transfer of native tokens from the wallet to another address. The value is in whole units (e.g. 0.01 ETH).",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"to":    stringProp("The destination address"),
				"value": stringProp("The amount to transfer in whole units"),
			}, "to", "value"),
			Invoke: func(ctx context.Context, w *WalletProvider, params map[string]any) (string, error) {
				to, err := requireString(params, "to")
				if err != nil {
					return "", err
				}
				value, err := requireString(params, "value")
				if err != nil {
					return "", err
				}
				if !evm.IsAddress(to) {
					return "", fmt.Errorf("invalid destination address %s", to)
				}
				wei, err := evm.ToBaseUnit(value, 18)
				if err != nil {
					return "", err
				}
				return preparedText(w.Wallet().Prepare(to, nil, wei))
			},
		},
	}
}

// ERC20Actions reads balances and prepares transfers of arbitrary ERC-20 tokens.
type ERC20Actions struct{}

func (ERC20Actions) Name() string { return "ERC20ActionProvider" }

func (ERC20Actions) Actions() []Action {
	return []Action{
		{
			Name:        "get_balance",
			Description: "This tool will get the balance of an ERC20 asset in the wallet.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"contractAddress": stringProp("The contract address of the token to get the balance for"),
			}, "contractAddress"),
			Invoke: func(ctx context.Context, w *WalletProvider, params map[string]any) (string, error) {
				addr, err := requireString(params, "contractAddress")
				if err != nil {
					return "", err
				}
				tok, err := evm.NewERC20(addr, w.Wallet().Reader())
				if err != nil {
					return "", err
				}
				bal, err := tok.BalanceOf(ctx, w.Address())
				if err != nil {
					return "", err
				}
				decimals, err := tok.Decimals(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Balance of %s is %s", tok.Address, evm.FromBaseUnit(bal, decimals)), nil
			},
		},
		{
			Name:        "transfer",
			Description: "This tool will prepare a transfer of an ERC20 token from the wallet to another onchain address. The amount is in whole units.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"amount":          stringProp("The amount of the asset to transfer"),
				"contractAddress": stringProp("The contract address of the token to transfer"),
				"destination":     stringProp("The destination to transfer the funds"),
			}, "amount", "contractAddress", "destination"),
			Invoke: func(ctx context.Context, w *WalletProvider, params map[string]any) (string, error) {
				amount, err := requireString(params, "amount")
				if err != nil {
					return "", err
				}
				addr, err := requireString(params, "contractAddress")
				if err != nil {
					return "", err
				}
				dest, err := requireString(params, "destination")
				if err != nil {
					return "", err
				}
				tok, err := evm.NewERC20(addr, w.Wallet().Reader())
				if err != nil {
					return "", err
				}
				decimals, err := tok.Decimals(ctx)
				if err != nil {
					return "", err
				}
				base, err := evm.ToBaseUnit(amount, decimals)
				if err != nil {
					return "", err
				}
				data, err := evm.TransferData(dest, base)
				if err != nil {
					return "", err
				}
				return preparedText(w.Wallet().Prepare(tok.Address, data, new(uint256.Int)))
			},
		},
	}
}

func preparedText(tx evm.PreparedTx) (string, error) {
	s, err := json.Stringify(tx)
	if err != nil {
		return "", err
	}
	return "Prepared unsigned transaction: " + s, nil
}
