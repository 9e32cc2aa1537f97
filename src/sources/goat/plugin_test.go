package goat

import (
	"context"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/evm"
)

type mockReader struct{ mock.Mock }

func (m *mockReader) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	args := m.Called(to, hex.EncodeToString(data[:4]))
	if b, ok := args.Get(0).([]byte); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReader) Balance(ctx context.Context, addr string) (*uint256.Int, error) {
	args := m.Called(addr)
	return args.Get(0).(*uint256.Int), args.Error(1)
}

const usdcMainnet = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"

func newAdapter(t *testing.T, r evm.Reader) *Adapter {
	t.Helper()
	w, err := evm.NewWallet(evm.DefaultAddress, 1, r)
	require.NoError(t, err)
	return NewAdapter(w)
}

func TestListOfToolsNames(t *testing.T) {
	var names []string
	for _, d := range newAdapter(t, nil).ListOfTools() {
		names = append(names, d.Name)
		assert.Equal(t, "object", d.InputSchema.Type)
	}
	assert.Equal(t, []string{
		"get_token_info_by_symbol", "get_token_balance", "get_token_total_supply", "get_token_allowance",
		"transfer", "approve", "convert_to_base_unit", "convert_from_base_unit",
	}, names)
}

func TestTokenInfo(t *testing.T) {
	a := newAdapter(t, nil)
	out, err := a.ToolHandler(context.Background(), "get_token_info_by_symbol", map[string]any{"symbol": "usdc"})
	require.NoError(t, err)
	info := out.(map[string]any)
	assert.Equal(t, usdcMainnet, info["contractAddress"])
	assert.Equal(t, uint8(6), info["decimals"])

	_, err = a.ToolHandler(context.Background(), "get_token_info_by_symbol", map[string]any{"symbol": "DAI"})
	assert.True(t, errs.IsNotFound(err))
}

func TestBalanceReadsChain(t *testing.T) {
	r := &mockReader{}
	word := uint256.NewInt(2500000).Bytes32()
	r.On("CallContract", usdcMainnet, "70a08231").Return(word[:], nil)

	a := newAdapter(t, r)
	out, err := a.ToolHandler(context.Background(), "get_token_balance", map[string]any{"tokenAddress": strings.ToLower(usdcMainnet)})
	require.NoError(t, err)
	assert.Equal(t, "2500000", out)
	r.AssertExpectations(t)
}

func TestTransferPreparesUnsignedTx(t *testing.T) {
	a := newAdapter(t, nil)
	out, err := a.ToolHandler(context.Background(), "transfer", map[string]any{
		"tokenAddress": usdcMainnet,
		"to":           "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"amount":       "1000000",
	})
	require.NoError(t, err)
	tx, ok := out.(evm.PreparedTx)
	require.True(t, ok)
	assert.Equal(t, usdcMainnet, tx.To)
	assert.Equal(t, evm.DefaultAddress, tx.From)
	assert.True(t, strings.HasPrefix(tx.Data, "0xa9059cbb"))

	_, err = a.ToolHandler(context.Background(), "approve", map[string]any{"tokenAddress": usdcMainnet, "spender": "nope", "amount": "1"})
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	a := newAdapter(t, nil)
	out, err := a.ToolHandler(context.Background(), "convert_to_base_unit", map[string]any{"amount": "2.5", "decimals": float64(6)})
	require.NoError(t, err)
	assert.Equal(t, "2500000", out)

	out, err = a.ToolHandler(context.Background(), "convert_from_base_unit", map[string]any{"amount": "2500000", "decimals": 6})
	require.NoError(t, err)
	assert.Equal(t, "2.5", out)
}

func TestUnknownTool(t *testing.T) {
	_, err := newAdapter(t, nil).ToolHandler(context.Background(), "mint", nil)
	assert.True(t, errs.IsNotFound(err))
}

func TestSourceWrapsAdapter(t *testing.T) {
	src := NewSource(newAdapter(t, nil))
	assert.Equal(t, "goat", src.Name())
	list, err := src.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 8)
	for _, tool := range list {
		assert.NoError(t, tool.Validate())
		assert.Equal(t, "goat", tool.Source)
	}
	out, err := list[6].Handler(context.Background(), map[string]any{"amount": "1", "decimals": 2})
	require.NoError(t, err)
	assert.Equal(t, "100", out)
}
