package evm

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitte-ai/go-mcp-proxy/src/json"
)

func TestChecksumAddress(t *testing.T) {
	for _, want := range []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	} {
		got, err := ChecksumAddress(strings.ToLower(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ChecksumAddress("0x1234")
	assert.Error(t, err)
	assert.False(t, IsAddress("742d35Cc6634C0532925a3b844Bc454e4438f44e"))
}

func TestSelectors(t *testing.T) {
	cases := map[string]string{
		"balanceOf(address)":         "70a08231",
		"transfer(address,uint256)":  "a9059cbb",
		"approve(address,uint256)":   "095ea7b3",
		"totalSupply()":              "18160ddd",
		"allowance(address,address)": "dd62ed3e",
		"decimals()":                 "313ce567",
	}
	for sig, want := range cases {
		assert.Equal(t, want, hex.EncodeToString(Selector(sig)), sig)
	}
}

func TestEncodeCall(t *testing.T) {
	addr, err := AddressWord(DefaultAddress)
	require.NoError(t, err)
	data := EncodeCall("transfer(address,uint256)", addr, UintWord(uint256.NewInt(1000)))
	require.Len(t, data, 4+64)
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	assert.Equal(t, strings.ToLower(DefaultAddress[2:]), hex.EncodeToString(data[16:36]))
	assert.Equal(t, byte(0x03), data[66])
	assert.Equal(t, byte(0xe8), data[67])
}

func TestDecodeString(t *testing.T) {
	// offset 0x20, length 4, "USDC"
	raw, _ := hex.DecodeString(
		"0000000000000000000000000000000000000000000000000000000000000020" +
			"0000000000000000000000000000000000000000000000000000000000000004" +
			"5553444300000000000000000000000000000000000000000000000000000000")
	s, err := DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, "USDC", s)

	b32, _ := hex.DecodeString("4d4b520000000000000000000000000000000000000000000000000000000000")
	s, err = DecodeString(b32)
	require.NoError(t, err)
	assert.Equal(t, "MKR", s)

	_, err = DecodeString([]byte{1, 2})
	assert.Error(t, err)
}

func TestUnits(t *testing.T) {
	v, err := ToBaseUnit("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", v.Dec())

	v, err = ToBaseUnit("0.000001", 6)
	require.NoError(t, err)
	assert.Equal(t, "1", v.Dec())

	v, err = ToBaseUnit("0", 18)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = ToBaseUnit("0.0000001", 6)
	assert.Error(t, err)
	_, err = ToBaseUnit("1e6", 6)
	assert.Error(t, err)

	assert.Equal(t, "1.5", FromBaseUnit(uint256.NewInt(1500000), 6))
	assert.Equal(t, "0.000001", FromBaseUnit(uint256.NewInt(1), 6))
	assert.Equal(t, "42", FromBaseUnit(uint256.NewInt(42), 0))
	assert.Equal(t, "2", FromBaseUnit(uint256.NewInt(2000000), 6))
}

func TestClientCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_getBalance":
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0xde0b6b3a7640000"}`))
		case "eth_call":
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x00000000000000000000000000000000000000000000000000000000000f4240"}`))
		case "eth_chainId":
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x2105"}`))
		default:
			w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, 0, nil)
	ctx := context.Background()

	bal, err := c.Balance(ctx, DefaultAddress)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", bal.Dec())

	out, err := c.CallContract(ctx, DefaultAddress, Selector("totalSupply()"))
	require.NoError(t, err)
	supply, err := DecodeUint(out)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000), supply.Uint64())

	id, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(8453), id)

	err = c.Call(ctx, nil, "eth_bogus")
	assert.ErrorContains(t, err, "method not found")
}

func TestWalletPrepare(t *testing.T) {
	w, err := NewWallet(strings.ToLower(DefaultAddress), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultAddress, w.Address())
	assert.Equal(t, uint64(1), w.ChainID())

	tx := w.Prepare("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", []byte{0xa9, 0x05}, nil)
	assert.Equal(t, "0xa905", tx.Data)
	assert.Equal(t, "0", tx.Value)
	assert.Equal(t, DefaultAddress, tx.From)

	_, err = w.Balance(context.Background())
	assert.Error(t, err)
}
