// Package dispatch resolves a tool or agent by name and invokes it, folding every
// outcome into one response envelope.
package dispatch

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/aggregator"
	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/registry"
	"github.com/bitte-ai/go-mcp-proxy/src/repository"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
	httpx "github.com/bitte-ai/go-mcp-proxy/src/transports/http"
)

// ResolveThreshold approximates exact matching when no source hint is given.
const ResolveThreshold = 0.1

// Runtime is the part of the registry client agents need.
type Runtime interface {
	GetAgent(ctx context.Context, id string) (*registry.Agent, error)
	Chat(ctx context.Context, req registry.ChatRequest) (string, error)
}

// Block is one content block of a response.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Response is the uniform envelope returned for every execution.
type Response struct {
	Content []Block `json:"content"`
	IsError bool    `json:"isError,omitempty"`
}

// Text returns the concatenated text of all blocks.
func (r Response) Text() string {
	var s string
	for _, b := range r.Content {
		s += b.Text
	}
	return s
}

func textResponse(s string) Response {
	return Response{Content: []Block{{Type: "text", Text: s}}}
}

func errorResponse(prefix string, err error) Response {
	r := textResponse(fmt.Sprintf("%s: %s", prefix, errs.Message(err)))
	r.IsError = true
	return r
}

// ToolCall names a tool and its arguments. SourceHint and Metadata are optional.
type ToolCall struct {
	Name       string
	Params     map[string]any
	SourceHint string
	Metadata   any
}

// AgentCall names an agent and the user input to send it.
type AgentCall struct {
	AgentID   string
	Input     string
	SessionID string
	AccountID string
}

// Dispatcher resolves and invokes tools and agents.
type Dispatcher struct {
	agg       *aggregator.Aggregator
	runtime   Runtime
	executor  *httpx.Executor
	logger    logrus.FieldLogger
	sessionID func() string
}

// New builds a Dispatcher. runtime may be nil when agents are not served.
func New(agg *aggregator.Aggregator, runtime Runtime, executor *httpx.Executor, logger logrus.FieldLogger) *Dispatcher {
	logger = logging.OrDiscard(logger)
	if executor == nil {
		executor = httpx.NewExecutor(logger, 0)
	}
	return &Dispatcher{
		agg:       agg,
		runtime:   runtime,
		executor:  executor,
		logger:    logger,
		sessionID: uuid.NewString,
	}
}

// ExecuteTool resolves call.Name and invokes the tool.
func (d *Dispatcher) ExecuteTool(ctx context.Context, call ToolCall) Response {
	log := d.logger.WithField("tool", call.Name)
	log.Infof("Executing tool: %s", call.Name)

	tool, err := d.ResolveTool(ctx, call.Name, call.SourceHint)
	if err != nil {
		log.Errorf("Error executing tool: %v", err)
		return errorResponse("Error executing tool", err)
	}

	params := call.Params
	if params == nil {
		params = map[string]any{}
	}

	var result any
	switch tool.Kind {
	case tools.KindNative:
		result, err = d.invokeNative(ctx, tool, params)
	case tools.KindHTTP:
		out := d.executor.Invoke(ctx, tool, params, call.Metadata)
		if out.Failed() {
			err = fmt.Errorf("%s", out.Error)
		}
		result = out.Data
	default:
		err = fmt.Errorf("tool '%s' found but cannot be executed", tool.Name)
	}
	if err != nil {
		log.WithField("source", tool.Source).Errorf("Error executing tool: %v", err)
		return errorResponse("Error executing tool", err)
	}

	text, err := normalize(result)
	if err != nil {
		return errorResponse("Error executing tool", err)
	}
	return textResponse(text)
}

func (d *Dispatcher) invokeNative(ctx context.Context, tool tools.Tool, params map[string]any) (result any, err error) {
	if tool.Handler == nil {
		return nil, fmt.Errorf("tool '%s' found but cannot be executed", tool.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()
	return tool.Handler(ctx, params)
}

// ResolveTool finds the tool a call refers to. A known hint restricts the lookup to an
// exact name match within that source; otherwise the best fuzzy match across all
// sources wins.
func (d *Dispatcher) ResolveTool(ctx context.Context, name, hint string) (tools.Tool, error) {
	if hint != "" {
		list, ok, err := d.hintedTools(ctx, hint)
		if err != nil {
			return tools.Tool{}, err
		}
		if ok {
			for _, t := range list {
				if t.Name == name {
					return t, nil
				}
			}
			return tools.Tool{}, &errs.NotFoundError{Kind: "tool", Name: name}
		}
		d.logger.WithField("source", hint).Warnf("Service not found: %s", hint)
	}

	threshold := ResolveThreshold
	res, err := d.agg.SearchTools(ctx, aggregator.ToolSearchParams{Query: name, Threshold: &threshold})
	if err != nil {
		return tools.Tool{}, err
	}
	if len(res.Combined) == 0 {
		return tools.Tool{}, &errs.NotFoundError{Kind: "tool", Name: name}
	}
	return res.Combined[0].Item, nil
}

func (d *Dispatcher) hintedTools(ctx context.Context, hint string) ([]tools.Tool, bool, error) {
	if hint == registry.SourceName {
		reg := d.agg.Registry()
		if reg == nil {
			return nil, false, nil
		}
		list, err := reg.ListTools(ctx)
		if err != nil {
			return nil, true, &errs.SourceUnavailableError{Source: hint, Err: err}
		}
		return repository.Sanitize(hint, list, d.logger), true, nil
	}
	src, ok := d.agg.Sources().Get(hint)
	if !ok {
		return nil, false, nil
	}
	list, err := repository.ListSanitized(ctx, src, d.logger)
	if err != nil {
		return nil, true, &errs.SourceUnavailableError{Source: hint, Err: err}
	}
	return list, true, nil
}

// ExecuteAgent resolves call.AgentID and sends call.Input to the runtime.
func (d *Dispatcher) ExecuteAgent(ctx context.Context, call AgentCall) Response {
	log := d.logger.WithField("agent", call.AgentID)
	log.Infof("Executing agent with ID: %s", call.AgentID)

	text, err := d.executeAgent(ctx, call)
	if err != nil {
		log.Errorf("Error executing agent: %v", err)
		return errorResponse("Error executing agent", err)
	}
	return textResponse(text)
}

func (d *Dispatcher) executeAgent(ctx context.Context, call AgentCall) (string, error) {
	if d.runtime == nil {
		return "", fmt.Errorf("agent runtime is not configured")
	}
	threshold := ResolveThreshold
	res, err := d.agg.SearchAgents(ctx, aggregator.AgentSearchParams{Query: call.AgentID, Threshold: &threshold})
	if err != nil {
		return "", err
	}
	if len(res.Combined) == 0 {
		return "", &errs.NotFoundError{Kind: "agent", Name: call.AgentID}
	}
	agent := res.Combined[0].Item

	session := call.SessionID
	if session == "" {
		session = d.sessionID()
	}
	return d.runtime.Chat(ctx, registry.ChatRequest{
		ID:        session,
		AgentID:   agent.ID,
		AccountID: call.AccountID,
		Messages:  []registry.Message{{Role: "user", Content: call.Input}},
	})
}

// GetAgent fetches one registry agent and returns it as JSON text.
func (d *Dispatcher) GetAgent(ctx context.Context, id string) Response {
	d.logger.WithField("agent", id).Infof("Getting agent with ID: %s", id)
	if d.runtime == nil {
		return errorResponse("Error getting agent", fmt.Errorf("registry is not configured"))
	}
	agent, err := d.runtime.GetAgent(ctx, id)
	if err != nil {
		return errorResponse("Error getting agent", err)
	}
	text, err := json.Stringify(agent)
	if err != nil {
		return errorResponse("Error getting agent", err)
	}
	return textResponse(text)
}

// normalize renders a handler result as text: strings verbatim, valid UTF-8 bytes as
// text, everything else as JSON.
func normalize(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		if utf8.Valid(val) {
			return string(val), nil
		}
	}
	return json.Stringify(v)
}
