package evm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
)

// Reader is the read-only chain access the on-chain sources depend on.
type Reader interface {
	// CallContract executes an eth_call against the latest block.
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
	// Balance returns the native balance of addr in wei.
	Balance(ctx context.Context, addr string) (*uint256.Int, error)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Client is a minimal Ethereum JSON-RPC client over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	logger     logrus.FieldLogger
	nextID     atomic.Uint64
}

// NewClient constructs a Client for the endpoint at url.
func NewClient(url string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrDiscard(logger),
	}
}

// Call invokes method and unmarshals the result into out.
func (c *Client) Call(ctx context.Context, out any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithField("method", method).Debug("json-rpc call")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: %w", method, &errs.HTTPError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)})
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var r rpcResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("%s: decoding response: %w", method, err)
	}
	if r.Error != nil {
		return fmt.Errorf("%s: %w", method, r.Error)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(r.Result, out)
}

// CallContract implements Reader.
func (c *Client) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	var result string
	msg := map[string]string{"to": to, "data": EncodeHex(data)}
	if err := c.Call(ctx, &result, "eth_call", msg, "latest"); err != nil {
		return nil, err
	}
	return DecodeHex(result)
}

// Balance implements Reader.
func (c *Client) Balance(ctx context.Context, addr string) (*uint256.Int, error) {
	var result string
	if err := c.Call(ctx, &result, "eth_getBalance", addr, "latest"); err != nil {
		return nil, err
	}
	return parseQuantity(result)
}

// ChainID returns the chain id the endpoint reports.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var result string
	if err := c.Call(ctx, &result, "eth_chainId"); err != nil {
		return 0, err
	}
	v, err := parseQuantity(result)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

func parseQuantity(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return new(uint256.Int), nil
	}
	b, err := DecodeHex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	if len(b) > 32 {
		return nil, fmt.Errorf("quantity %q overflows 256 bits", s)
	}
	return new(uint256.Int).SetBytes(b), nil
}
