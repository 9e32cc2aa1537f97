package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/bitte-ai/go-mcp-proxy/src/aggregator"
	"github.com/bitte-ai/go-mcp-proxy/src/dispatch"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/registry"
)

var stringItems = mcp.Items(map[string]any{"type": "string"})

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("get-agent-by-id",
		mcp.WithDescription("Get details of a specific AI agent by ID from the Bitte AI registry"),
		mcp.WithString("agentId", mcp.Required(), mcp.Description("ID of the agent to retrieve")),
	), s.getAgentByID)

	s.mcp.AddTool(mcp.NewTool("execute-agent",
		mcp.WithDescription("Execute an AI agent"),
		mcp.WithString("agentId", mcp.Required(), mcp.Description("ID of the agent to execute")),
		mcp.WithString("input", mcp.Required(), mcp.Description("Input to the agent")),
	), s.executeAgent)

	s.mcp.AddTool(mcp.NewTool("execute-tool",
		mcp.WithDescription("Execute a tool"),
		mcp.WithString("tool", mcp.Required(), mcp.Description("The tool to execute")),
		mcp.WithString("params", mcp.Description("The parameters to pass to the tool as a JSON string")),
		mcp.WithObject("metadata", mcp.Description(`Optional metadata to pass to the tool i.e. {accountId: "123", evmAddress: "0x123"}`)),
		mcp.WithString("source", mcp.Description("Optional name of the service that owns the tool")),
	), s.executeTool)

	s.mcp.AddTool(mcp.NewTool("search-agents",
		mcp.WithDescription("Search for AI agents across Bitte API and other services"),
		mcp.WithString("query", mcp.Required(), mcp.Description(`Search query for finding agents, or "*" for all`)),
		mcp.WithBoolean("verifiedOnly", mcp.Description("Only return verified agents (default true)")),
		mcp.WithString("chainIds", mcp.Description("Comma-separated chain ids to filter by")),
		mcp.WithString("category", mcp.Description("Category to filter by")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		mcp.WithNumber("offset", mcp.Description("Offset for pagination")),
		mcp.WithNumber("threshold", mcp.Description("Fuzzy match threshold between 0 and 1 (default 0.3)")),
		mcp.WithArray("includeServices", stringItems, mcp.Description("Services to include in the search")),
	), s.searchAgents)

	s.mcp.AddTool(mcp.NewTool("search-tools",
		mcp.WithDescription("Search for tools across Bitte API and other services"),
		mcp.WithString("query", mcp.Required(), mcp.Description(`Search query for finding tools, or "*" for all`)),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results per service (default 5)")),
		mcp.WithNumber("threshold", mcp.Description("Fuzzy match threshold between 0 and 1 (default 1)")),
		mcp.WithArray("includeServices", stringItems, mcp.Description("Services to include besides goat and agentkit")),
	), s.searchTools)

	s.mcp.AddTool(mcp.NewTool("list-sources",
		mcp.WithDescription("List the services tools and agents are searched in"),
	), s.listSources)
}

func toResult(res dispatch.Response) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: res.IsError}
	for _, b := range res.Content {
		out.Content = append(out.Content, mcp.NewTextContent(b.Text))
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	text, err := json.Stringify(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) getAgentByID(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := cast.ToString(req.GetArguments()["agentId"])
	if id == "" {
		return mcp.NewToolResultError("agentId is required"), nil
	}
	return toResult(s.disp.GetAgent(ctx, id)), nil
}

func (s *Server) executeAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	call := dispatch.AgentCall{
		AgentID:   cast.ToString(args["agentId"]),
		Input:     cast.ToString(args["input"]),
		AccountID: IdentityFromContext(ctx).AccountID,
	}
	if session := mcpserver.ClientSessionFromContext(ctx); session != nil {
		call.SessionID = session.SessionID()
	}
	return toResult(s.disp.ExecuteAgent(ctx, call)), nil
}

func (s *Server) executeTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	s.logger.WithField("tool", args["tool"]).Debug("Executing execute-tool")

	params, err := ParseParams(args["params"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error executing tool: %v", err)), nil
	}
	call := dispatch.ToolCall{
		Name:       cast.ToString(args["tool"]),
		Params:     params,
		SourceHint: cast.ToString(args["source"]),
		Metadata:   args["metadata"],
	}
	return toResult(s.disp.ExecuteTool(ctx, call)), nil
}

// ParseParams accepts tool parameters as a JSON object string or an already decoded
// object. Empty input means no parameters.
func ParseParams(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("params must be a JSON object: %w", err)
		}
		if out == nil {
			out = map[string]any{}
		}
		return out, nil
	}
	return nil, fmt.Errorf("params must be a JSON object, got %T", raw)
}

func (s *Server) searchAgents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	p := aggregator.AgentSearchParams{
		Query:           cast.ToString(args["query"]),
		ChainIDs:        cast.ToString(args["chainIds"]),
		Category:        cast.ToString(args["category"]),
		VerifiedOnly:    optBool(args, "verifiedOnly"),
		Limit:           optInt(args, "limit"),
		Offset:          optInt(args, "offset"),
		Threshold:       optFloat(args, "threshold"),
		IncludeServices: stringList(args, "includeServices"),
	}
	res, err := s.agg.SearchAgents(ctx, p)
	if err != nil {
		s.logger.Errorf("Error searching agents: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error searching agents: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) searchTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	p := aggregator.ToolSearchParams{
		Query:           cast.ToString(args["query"]),
		Limit:           optInt(args, "limit"),
		Threshold:       optFloat(args, "threshold"),
		IncludeServices: stringList(args, "includeServices"),
	}
	res, err := s.agg.SearchTools(ctx, p)
	if err != nil {
		s.logger.Errorf("Error searching tools: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error searching tools: %v", err)), nil
	}
	return jsonResult(res)
}

func (s *Server) listSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := append([]string{registry.SourceName}, s.agg.Sources().Names()...)
	return jsonResult(map[string]any{"sources": names})
}

func optBool(args map[string]any, key string) *bool {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil
	}
	return &b
}

func optInt(args map[string]any, key string) *int {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return nil
	}
	return &n
}

func optFloat(args map[string]any, key string) *float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil
	}
	return &f
}

// stringList reads an array of names or a comma-separated string. Absent means nil.
func stringList(args map[string]any, key string) []string {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	out := []string{}
	switch list := v.(type) {
	case string:
		for _, part := range strings.Split(list, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, item := range list {
			out = append(out, cast.ToString(item))
		}
	default:
		out = append(out, cast.ToStringSlice(v)...)
	}
	return out
}
