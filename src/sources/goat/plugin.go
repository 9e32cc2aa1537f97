// Package goat exposes an ERC-20 plugin through the on-chain tools adapter shape:
// a flat list of tool definitions plus a single handler dispatching by name.
package goat

import (
	"context"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/spf13/cast"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/evm"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// Token is an ERC-20 token known to the plugin, with its contract per chain id.
type Token struct {
	Symbol    string            `json:"symbol" yaml:"symbol"`
	Name      string            `json:"name" yaml:"name"`
	Decimals  uint8             `json:"decimals" yaml:"decimals"`
	Contracts map[uint64]string `json:"contracts" yaml:"contracts"`
}

// USDC is the default token.
var USDC = Token{
	Symbol:   "USDC",
	Name:     "USDC",
	Decimals: 6,
	Contracts: map[uint64]string{
		1:     "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		10:    "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
		137:   "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		8453:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		42161: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
	},
}

// ToolDef is one tool as the adapter lists it.
type ToolDef struct {
	Name        string
	Description string
	InputSchema tools.Schema
}

type toolFunc func(ctx context.Context, params map[string]any) (any, error)

type entry struct {
	def ToolDef
	run toolFunc
}

// Adapter serves the ERC-20 plugin's tools for one wallet.
type Adapter struct {
	wallet  *evm.Wallet
	tokens  []Token
	entries []entry
}

// NewAdapter builds the adapter. An empty token list means USDC only.
func NewAdapter(wallet *evm.Wallet, tokens ...Token) *Adapter {
	if len(tokens) == 0 {
		tokens = []Token{USDC}
	}
	a := &Adapter{wallet: wallet, tokens: tokens}
	a.entries = a.erc20Tools()
	return a
}

// ListOfTools returns the tool definitions in a stable order.
func (a *Adapter) ListOfTools() []ToolDef {
	out := make([]ToolDef, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.def
	}
	return out
}

// ToolHandler runs the named tool.
func (a *Adapter) ToolHandler(ctx context.Context, name string, params map[string]any) (any, error) {
	for _, e := range a.entries {
		if e.def.Name == name {
			if params == nil {
				params = map[string]any{}
			}
			return e.run(ctx, params)
		}
	}
	return nil, &errs.NotFoundError{Kind: "tool", Name: name}
}

func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func num(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func (a *Adapter) erc20Tools() []entry {
	return []entry{
		{
			def: ToolDef{
				Name:        "get_token_info_by_symbol",
				Description: "Get the ERC20 token info by its symbol, including the contract address, decimals, and name",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"symbol": str("The symbol of the token to get the info of"),
				}, "symbol"),
			},
			run: a.tokenInfo,
		},
		{
			def: ToolDef{
				Name:        "get_token_balance",
				Description: "Get the balance of an ERC20 token in base units. Convert to decimal units before returning.",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"wallet":       str("The address to get the balance of"),
					"tokenAddress": str("The address of the token to get the balance of"),
				}, "wallet", "tokenAddress"),
			},
			run: a.balance,
		},
		{
			def: ToolDef{
				Name:        "get_token_total_supply",
				Description: "Get the total supply of an ERC20 token",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"tokenAddress": str("The address of the token to get the total supply of"),
				}, "tokenAddress"),
			},
			run: a.totalSupply,
		},
		{
			def: ToolDef{
				Name:        "get_token_allowance",
				Description: "Get the allowance of an ERC20 token",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"owner":        str("The address to check the allowance of"),
					"spender":      str("The address to check the allowance for"),
					"tokenAddress": str("The address of the token"),
				}, "owner", "spender", "tokenAddress"),
			},
			run: a.allowance,
		},
		{
			def: ToolDef{
				Name:        "transfer",
				Description: "Transfer an amount of an ERC20 token to an address",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"tokenAddress": str("The address of the token to transfer"),
					"to":           str("The address to transfer the token to"),
					"amount":       str("The amount of tokens to transfer in base units"),
				}, "tokenAddress", "to", "amount"),
			},
			run: a.transfer,
		},
		{
			def: ToolDef{
				Name:        "approve",
				Description: "Approve an amount of an ERC20 token to an address",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"tokenAddress": str("The address of the token to approve"),
					"spender":      str("The address to approve the allowance to"),
					"amount":       str("The amount of tokens to approve in base units"),
				}, "tokenAddress", "spender", "amount"),
			},
			run: a.approve,
		},
		{
			def: ToolDef{
				Name:        "convert_to_base_unit",
				Description: "Convert an amount of an ERC20 token to its base unit",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"amount":   str("The amount of tokens to convert to base units"),
					"decimals": num("The decimals of the token"),
				}, "amount", "decimals"),
			},
			run: convertToBase,
		},
		{
			def: ToolDef{
				Name:        "convert_from_base_unit",
				Description: "Convert an amount of an ERC20 token from its base unit to its decimal unit",
				InputSchema: tools.ObjectSchema(map[string]interface{}{
					"amount":   str("The amount of tokens to convert from base units"),
					"decimals": num("The decimals of the token"),
				}, "amount", "decimals"),
			},
			run: convertFromBase,
		},
	}
}

func required(params map[string]any, name string) (string, error) {
	v := strings.TrimSpace(cast.ToString(params[name]))
	if v == "" {
		return "", fmt.Errorf("missing parameter %s", name)
	}
	return v, nil
}

func (a *Adapter) token(ctx context.Context, params map[string]any) (*evm.ERC20, error) {
	addr, err := required(params, "tokenAddress")
	if err != nil {
		return nil, err
	}
	return evm.NewERC20(addr, a.wallet.Reader())
}

func (a *Adapter) tokenInfo(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := required(params, "symbol")
	if err != nil {
		return nil, err
	}
	for _, t := range a.tokens {
		if !strings.EqualFold(t.Symbol, symbol) {
			continue
		}
		contract, ok := t.Contracts[a.wallet.ChainID()]
		if !ok {
			return nil, fmt.Errorf("token %s not configured for chain %d", t.Symbol, a.wallet.ChainID())
		}
		return map[string]any{
			"symbol":          t.Symbol,
			"contractAddress": contract,
			"decimals":        t.Decimals,
			"name":            t.Name,
		}, nil
	}
	return nil, &errs.NotFoundError{Kind: "token", Name: symbol}
}

func (a *Adapter) balance(ctx context.Context, params map[string]any) (any, error) {
	owner := cast.ToString(params["wallet"])
	if owner == "" {
		owner = a.wallet.Address()
	}
	tok, err := a.token(ctx, params)
	if err != nil {
		return nil, err
	}
	v, err := tok.BalanceOf(ctx, owner)
	if err != nil {
		return nil, err
	}
	return v.Dec(), nil
}

func (a *Adapter) totalSupply(ctx context.Context, params map[string]any) (any, error) {
	tok, err := a.token(ctx, params)
	if err != nil {
		return nil, err
	}
	v, err := tok.TotalSupply(ctx)
	if err != nil {
		return nil, err
	}
	return v.Dec(), nil
}

func (a *Adapter) allowance(ctx context.Context, params map[string]any) (any, error) {
	owner, err := required(params, "owner")
	if err != nil {
		return nil, err
	}
	spender, err := required(params, "spender")
	if err != nil {
		return nil, err
	}
	tok, err := a.token(ctx, params)
	if err != nil {
		return nil, err
	}
	v, err := tok.Allowance(ctx, owner, spender)
	if err != nil {
		return nil, err
	}
	return v.Dec(), nil
}

func baseAmount(params map[string]any) (*uint256.Int, error) {
	raw, err := required(params, "amount")
	if err != nil {
		return nil, err
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("amount must be an integer in base units: %w", err)
	}
	return v, nil
}

func (a *Adapter) transfer(ctx context.Context, params map[string]any) (any, error) {
	to, err := required(params, "to")
	if err != nil {
		return nil, err
	}
	amount, err := baseAmount(params)
	if err != nil {
		return nil, err
	}
	tok, err := a.token(ctx, params)
	if err != nil {
		return nil, err
	}
	data, err := evm.TransferData(to, amount)
	if err != nil {
		return nil, err
	}
	return a.wallet.Prepare(tok.Address, data, nil), nil
}

func (a *Adapter) approve(ctx context.Context, params map[string]any) (any, error) {
	spender, err := required(params, "spender")
	if err != nil {
		return nil, err
	}
	amount, err := baseAmount(params)
	if err != nil {
		return nil, err
	}
	tok, err := a.token(ctx, params)
	if err != nil {
		return nil, err
	}
	data, err := evm.ApproveData(spender, amount)
	if err != nil {
		return nil, err
	}
	return a.wallet.Prepare(tok.Address, data, nil), nil
}

func decimalsParam(params map[string]any) (uint8, error) {
	d, err := cast.ToUint8E(params["decimals"])
	if err != nil {
		return 0, fmt.Errorf("invalid decimals: %w", err)
	}
	return d, nil
}

func convertToBase(ctx context.Context, params map[string]any) (any, error) {
	d, err := decimalsParam(params)
	if err != nil {
		return nil, err
	}
	v, err := evm.ToBaseUnit(cast.ToString(params["amount"]), d)
	if err != nil {
		return nil, err
	}
	return v.Dec(), nil
}

func convertFromBase(ctx context.Context, params map[string]any) (any, error) {
	d, err := decimalsParam(params)
	if err != nil {
		return nil, err
	}
	v, err := baseAmount(params)
	if err != nil {
		return nil, err
	}
	return evm.FromBaseUnit(v, d), nil
}
