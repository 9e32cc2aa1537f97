package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitte-ai/go-mcp-proxy/src/json"
)

func TestValidate(t *testing.T) {
	native := NewNativeTool("goat", "transfer", "send tokens", ObjectSchema(nil), func(ctx context.Context, p map[string]any) (any, error) {
		return "ok", nil
	})
	assert.NoError(t, native.Validate())

	noHandler := native
	noHandler.Handler = nil
	assert.Error(t, noHandler.Validate())

	httpTool := NewHTTPTool("bitte-registry", "get-price", "price", ObjectSchema(nil), Execution{BaseURL: "api.example.com", Path: "/price", HTTPMethod: "GET"})
	assert.NoError(t, httpTool.Validate())

	incomplete := httpTool
	incomplete.Execution = &Execution{Path: "/x"}
	assert.Error(t, incomplete.Validate())

	defaultMethod := httpTool
	defaultMethod.Execution = &Execution{BaseURL: "api.example.com", Path: "/price"}
	assert.NoError(t, defaultMethod.Validate(), "an empty method means GET")

	assert.Error(t, Tool{Kind: KindNative}.Validate())
	assert.Error(t, Tool{Name: "x", Kind: "bogus"}.Validate())
}

func TestDecodeRegistryPluginTool(t *testing.T) {
	raw := `{
		"id": "tool-1",
		"type": "function",
		"function": {
			"name": "get-swap-quote",
			"description": "Quote a swap",
			"parameters": {"type": "object", "properties": {"amount": {"type": "string"}}, "required": ["amount"]}
		},
		"execution": {"baseUrl": "swap.example.com", "path": "/api/quote/{pair}", "httpMethod": "GET"}
	}`
	var tool Tool
	require.NoError(t, json.Unmarshal([]byte(raw), &tool))

	assert.Equal(t, KindHTTP, tool.Kind)
	assert.Equal(t, "get-swap-quote", tool.Name)
	assert.Equal(t, "Quote a swap", tool.Description)
	assert.Equal(t, []string{"amount"}, tool.Inputs.Required)
	require.NotNil(t, tool.Execution)
	assert.Equal(t, "/api/quote/{pair}", tool.Execution.Path)
	assert.NoError(t, tool.Validate())
}

func TestDecodeWithoutExecutionIsNotInvocable(t *testing.T) {
	var tool Tool
	require.NoError(t, json.Unmarshal([]byte(`{"function":{"name":"orphan"}}`), &tool))
	assert.Equal(t, KindNative, tool.Kind)
	assert.Error(t, tool.Validate())
}

func TestMarshalHTTPToolCarriesFunctionFields(t *testing.T) {
	tool := NewHTTPTool("plugins", "lookup", "Look things up", ObjectSchema(nil), Execution{BaseURL: "https://a.b", Path: "/l", HTTPMethod: "POST"})
	data, err := json.Marshal(tool)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	fn, ok := m["function"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "lookup", fn["name"])
	assert.Equal(t, "http", m["kind"])

	native := NewNativeTool("goat", "approve", "", ObjectSchema(nil), nil)
	data, err = json.Marshal(native)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"function"`)
}
