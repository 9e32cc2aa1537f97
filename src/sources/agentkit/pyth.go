package agentkit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/tidwall/gjson"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/evm"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// DefaultHermesURL is Pyth's public price service.
const DefaultHermesURL = "https://hermes.pyth.network"

// PythActions reads prices from a Pyth Hermes endpoint.
type PythActions struct {
	baseURL    string
	httpClient *http.Client
}

// NewPythActions builds the provider; an empty baseURL means DefaultHermesURL.
func NewPythActions(baseURL string, timeout time.Duration) *PythActions {
	if baseURL == "" {
		baseURL = DefaultHermesURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PythActions{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{Timeout: timeout}}
}

func (p *PythActions) Name() string { return "PythActionProvider" }

func (p *PythActions) Actions() []Action {
	return []Action{
		{
			Name:        "fetch_price_feed",
			Description: "Fetch the price feed ID for a given token symbol from Pyth.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"tokenSymbol": stringProp("The token ticker symbol, e.g. BTC, ETH, SOL"),
			}, "tokenSymbol"),
			Invoke: func(ctx context.Context, w *WalletProvider, params map[string]any) (string, error) {
				sym, err := requireString(params, "tokenSymbol")
				if err != nil {
					return "", err
				}
				return p.priceFeedID(ctx, sym)
			},
		},
		{
			Name:        "fetch_price",
			Description: "Fetch the price of a given price feed from Pyth. Use fetch_price_feed first to get the feed ID.",
			Schema: tools.ObjectSchema(map[string]interface{}{
				"priceFeedID": stringProp("The price feed ID to fetch the price for"),
			}, "priceFeedID"),
			Invoke: func(ctx context.Context, w *WalletProvider, params map[string]any) (string, error) {
				id, err := requireString(params, "priceFeedID")
				if err != nil {
					return "", err
				}
				return p.price(ctx, id)
			},
		},
	}
}

func (p *PythActions) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.HTTPError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}
	return io.ReadAll(resp.Body)
}

func (p *PythActions) priceFeedID(ctx context.Context, symbol string) (string, error) {
	body, err := p.get(ctx, "/v2/price_feeds", url.Values{"query": {symbol}, "asset_type": {"crypto"}})
	if err != nil {
		return "", err
	}
	feeds := gjson.ParseBytes(body)
	if !feeds.IsArray() {
		return "", fmt.Errorf("unexpected price feed response")
	}
	var id string
	feeds.ForEach(func(_, feed gjson.Result) bool {
		if strings.EqualFold(feed.Get("attributes.base").String(), symbol) &&
			strings.EqualFold(feed.Get("attributes.quote_currency").String(), "USD") {
			id = feed.Get("id").String()
			return false
		}
		return true
	})
	if id == "" {
		return "", &errs.NotFoundError{Kind: "price feed", Name: symbol}
	}
	return id, nil
}

func (p *PythActions) price(ctx context.Context, feedID string) (string, error) {
	body, err := p.get(ctx, "/v2/updates/price/latest", url.Values{"ids[]": {feedID}})
	if err != nil {
		return "", err
	}
	parsed := gjson.GetBytes(body, "parsed.0.price")
	if !parsed.Exists() {
		return "", &errs.NotFoundError{Kind: "price", Name: feedID}
	}
	raw := parsed.Get("price").String()
	expo := parsed.Get("expo").Int()

	negative := strings.HasPrefix(raw, "-")
	v, err := uint256.FromDecimal(strings.TrimPrefix(raw, "-"))
	if err != nil {
		return "", fmt.Errorf("invalid price %q: %w", raw, err)
	}
	var out string
	if expo < 0 {
		out = evm.FromBaseUnit(v, uint8(-expo))
	} else {
		scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(expo)))
		out = new(uint256.Int).Mul(v, scale).Dec()
	}
	if negative {
		out = "-" + out
	}
	return out, nil
}
