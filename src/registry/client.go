// Package registry talks to the remote agent registry and the agent runtime.
package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

const (
	DefaultRegistryURL = "https://registry.bitte.ai"
	DefaultRuntimeURL  = "https://ai-runtime-446257178793.europe-west1.run.app"

	chatEndpoint = "/chat"
)

// Options configures a Client.
type Options struct {
	RegistryURL string
	RuntimeURL  string
	APIKey      string
	Timeout     time.Duration
}

// Client routes /api/ endpoints to the registry and everything else to the runtime.
type Client struct {
	registryURL string
	runtimeURL  string
	apiKey      string
	httpClient  *http.Client
	logger      logrus.FieldLogger
}

// NewClient constructs a Client; empty URLs take the public defaults.
func NewClient(opts Options, logger logrus.FieldLogger) *Client {
	if opts.RegistryURL == "" {
		opts.RegistryURL = DefaultRegistryURL
	}
	if opts.RuntimeURL == "" {
		opts.RuntimeURL = DefaultRuntimeURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		registryURL: strings.TrimRight(opts.RegistryURL, "/"),
		runtimeURL:  strings.TrimRight(opts.RuntimeURL, "/"),
		apiKey:      opts.APIKey,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		logger:      logging.OrDiscard(logger),
	}
}

type apiKeyKey struct{}

// WithAPIKey returns a context whose runtime calls authenticate with key instead of the
// configured one.
func WithAPIKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyKey{}, key)
}

func (c *Client) apiKeyFor(ctx context.Context) string {
	if k, ok := ctx.Value(apiKeyKey{}).(string); ok && k != "" {
		return k
	}
	return c.apiKey
}

// Call performs a request and decodes the response: /chat yields the raw text, every
// other endpoint a decoded JSON value. Non-2xx responses fail with errs.HTTPError.
func (c *Client) Call(ctx context.Context, endpoint, method string, body any) (any, error) {
	raw, err := c.do(ctx, endpoint, method, body)
	if err != nil {
		return nil, err
	}
	if endpoint == chatEndpoint {
		return string(raw), nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, endpoint, method string, body any) ([]byte, error) {
	if method == "" {
		method = http.MethodGet
	}
	isRegistry := strings.HasPrefix(endpoint, "/api/")
	base := c.runtimeURL
	if isRegistry {
		base = c.registryURL
	}
	target := base + endpoint

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if body != nil && !isRegistry {
		if key := c.apiKeyFor(ctx); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	log := c.logger.WithField("endpoint", endpoint)
	log.Infof("Calling %s %s", method, target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("API error: %v", err)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &errs.HTTPError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
		log.WithField("status", resp.StatusCode).Errorf("API error: %v", herr)
		return nil, herr
	}
	return raw, nil
}

// AgentQuery filters the registry's agent listing.
type AgentQuery struct {
	VerifiedOnly bool
	Limit        int
	Offset       int
	ChainIDs     string
	Category     string
}

// Encode renders q in the registry's parameter order.
func (q AgentQuery) Encode() string {
	parts := []string{
		"verifiedOnly=" + strconv.FormatBool(q.VerifiedOnly),
		"limit=" + strconv.Itoa(q.Limit),
		"offset=" + strconv.Itoa(q.Offset),
	}
	if q.ChainIDs != "" {
		parts = append(parts, "chainIds="+url.QueryEscape(q.ChainIDs))
	}
	if q.Category != "" {
		parts = append(parts, "category="+url.QueryEscape(q.Category))
	}
	return strings.Join(parts, "&")
}

// ListAgents fetches agents. A response that is not a list yields no agents.
func (c *Client) ListAgents(ctx context.Context, q AgentQuery) ([]Agent, error) {
	raw, err := c.do(ctx, "/api/agents?"+q.Encode(), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	agents, ok := decodeList[Agent](raw, c.logger.WithField("endpoint", "/api/agents"))
	if !ok {
		c.logger.Warn("registry did not return an array of agents")
		return []Agent{}, nil
	}
	return agents, nil
}

// GetAgent fetches one agent by id.
func (c *Client) GetAgent(ctx context.Context, id string) (*Agent, error) {
	raw, err := c.do(ctx, "/api/agents/"+url.PathEscape(id), http.MethodGet, nil)
	if err != nil {
		var herr *errs.HTTPError
		if errors.As(err, &herr) && herr.Status == http.StatusNotFound {
			return nil, &errs.NotFoundError{Kind: "agent", Name: id}
		}
		return nil, err
	}
	var agent Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		return nil, fmt.Errorf("decoding agent %s: %w", id, err)
	}
	if agent.ID == "" {
		return nil, &errs.NotFoundError{Kind: "agent", Name: id}
	}
	return &agent, nil
}

// ListTools fetches the registry's plugin tools. A response that is not a list yields
// no tools.
func (c *Client) ListTools(ctx context.Context) ([]tools.Tool, error) {
	raw, err := c.do(ctx, "/api/tools", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	list, ok := decodeList[AgentTool](raw, c.logger.WithField("endpoint", "/api/tools"))
	if !ok {
		c.logger.Warn("registry did not return an array of tools")
		return []tools.Tool{}, nil
	}
	out := make([]tools.Tool, 0, len(list))
	for _, t := range list {
		out = append(out, t.Tool())
	}
	return out, nil
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the runtime's chat body.
type ChatRequest struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	AccountID string    `json:"accountId"`
	Messages  []Message `json:"messages"`
}

// Chat runs an agent on the runtime and returns its raw text reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if req.Messages == nil {
		req.Messages = []Message{}
	}
	raw, err := c.do(ctx, chatEndpoint, http.MethodPost, req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeList decodes a JSON array element by element. Elements that fail to decode
// are logged and skipped. ok is false when raw is not an array.
func decodeList[T any](raw []byte, logger logrus.FieldLogger) (out []T, ok bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, false
	}
	out = make([]T, 0, len(elems))
	for i, elem := range elems {
		var v T
		if err := json.Unmarshal(elem, &v); err != nil {
			logger.WithField("index", i).Warnf("skipping malformed registry entry: %v", err)
			continue
		}
		out = append(out, v)
	}
	return out, true
}
