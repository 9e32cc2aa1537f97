// Package http invokes declarative HTTP tools described by an execution descriptor.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// MetadataHeader carries the caller's JSON-encoded metadata on every invocation.
const MetadataHeader = "mb-metadata"

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Outcome is the result of one invocation. Exactly one of Data or Error is meaningful.
type Outcome struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Failed reports whether the invocation failed.
func (o Outcome) Failed() bool { return o.Error != "" }

// Executor performs HTTP tool invocations.
type Executor struct {
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewExecutor constructs an Executor. A zero timeout means 30 seconds.
func NewExecutor(logger logrus.FieldLogger, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrDiscard(logger),
	}
}

// Invoke calls tool with params. Errors never escape: they are folded into the outcome
// as "<tool name>: <message>". params is not modified.
func (e *Executor) Invoke(ctx context.Context, tool tools.Tool, params map[string]any, metadata any) Outcome {
	data, err := e.invoke(ctx, tool, params, metadata)
	if err != nil {
		e.logger.WithField("tool", tool.Name).Debugf("http tool failed: %v", err)
		return Outcome{Error: fmt.Sprintf("%s: %s", tool.Name, errs.Message(err))}
	}
	return Outcome{Data: data}
}

func (e *Executor) invoke(ctx context.Context, tool tools.Tool, params map[string]any, metadata any) (any, error) {
	if tool.Execution == nil {
		return nil, fmt.Errorf("tool has no execution descriptor")
	}
	exec := tool.Execution
	method := strings.ToUpper(strings.TrimSpace(exec.HTTPMethod))
	if method == "" {
		method = http.MethodGet
	}

	remaining := make(map[string]any, len(params))
	for k, v := range params {
		remaining[k] = v
	}

	path, err := substitutePath(exec.Path, remaining)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(BaseURL(exec.BaseURL) + path)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	var body io.Reader
	hasBody := method != http.MethodGet && method != http.MethodHead
	if hasBody {
		payload, err := json.Marshal(remaining)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(payload)
	} else {
		q := u.Query()
		for k, v := range remaining {
			addQuery(q, k, v)
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if metadata != nil {
		meta, err := json.Stringify(metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		req.Header.Set(MetadataHeader, meta)
	}

	e.logger.WithFields(logrus.Fields{"tool": tool.Name, "endpoint": u.String()}).Debugf("%s request", method)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.HTTPError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}
	return DecodeBody(resp)
}

// BaseURL prefixes https:// when raw carries no scheme.
func BaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	return "https://" + raw
}

// substitutePath replaces {name} placeholders with path-escaped values, removing each
// consumed key from params.
func substitutePath(path string, params map[string]any) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(path, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == nil {
			if missing == "" {
				missing = name
			}
			return m
		}
		delete(params, name)
		return url.PathEscape(cast.ToString(v))
	})
	if missing != "" {
		return "", &errs.MissingParameterError{Name: missing}
	}
	if out != "" && !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out, nil
}

func addQuery(q url.Values, key string, v any) {
	switch val := v.(type) {
	case nil:
	case []any:
		for _, item := range val {
			addQuery(q, key, item)
		}
	case []string:
		for _, item := range val {
			q.Add(key, item)
		}
	case map[string]any:
		if s, err := json.Stringify(val); err == nil {
			q.Add(key, s)
		}
	default:
		q.Add(key, cast.ToString(val))
	}
}

// DecodeBody decodes a response by content type: JSON to a value, text/* to a string,
// anything else to raw bytes.
func DecodeBody(resp *http.Response) (any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(ct, "json"):
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding json response: %w", err)
		}
		return v, nil
	case strings.HasPrefix(ct, "text/"):
		return string(raw), nil
	default:
		return raw, nil
	}
}
