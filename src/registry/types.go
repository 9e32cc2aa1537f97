package registry

import (
	"bytes"
	"strings"

	"github.com/spf13/cast"

	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// SourceName is the pseudo-source name used for registry results.
const SourceName = "bitte-registry"

// ChainID accepts either a JSON number or a JSON string.
type ChainID string

func (c *ChainID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = ChainID(cast.ToString(v))
	return nil
}

// AgentTool is a tool as the registry describes it.
type AgentTool struct {
	ID          string           `json:"id,omitempty"`
	AgentID     string           `json:"agentId,omitempty"`
	Type        string           `json:"type,omitempty"`
	Function    tools.Function   `json:"function"`
	Execution   *tools.Execution `json:"execution,omitempty"`
	Verified    bool             `json:"verified,omitempty"`
	Image       string           `json:"image,omitempty"`
	ChainIDs    []ChainID        `json:"chainIds,omitempty"`
	IsPrimitive bool             `json:"isPrimitive,omitempty"`
	Pings       int              `json:"pings,omitempty"`
}

// Tool converts t into an invocable tool. Tools without an execution descriptor come
// back as handler-less native tools, which fail tools.Tool.Validate.
func (t AgentTool) Tool() tools.Tool {
	if t.Execution != nil {
		tool := tools.NewHTTPTool(SourceName, t.Function.Name, t.Function.Description, t.Function.Parameters, *t.Execution)
		tool.ID = t.ID
		return tool
	}
	tool := tools.NewNativeTool(SourceName, t.Function.Name, t.Function.Description, t.Function.Parameters, nil)
	tool.ID = t.ID
	return tool
}

// Agent is a registry agent record.
type Agent struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	AccountID            string      `json:"accountId"`
	Description          string      `json:"description"`
	Instructions         string      `json:"instructions"`
	Tools                []AgentTool `json:"tools"`
	Image                string      `json:"image,omitempty"`
	Verified             bool        `json:"verified"`
	ChainIDs             []ChainID   `json:"chainIds,omitempty"`
	Repo                 string      `json:"repo,omitempty"`
	GeneratedDescription string      `json:"generatedDescription,omitempty"`
	Category             string      `json:"category,omitempty"`
	DefaultPrompts       []string    `json:"defaultPrompts,omitempty"`
	Pings                int         `json:"pings"`
	// Source is set for agents derived from a capability source rather than the registry.
	Source string `json:"source,omitempty"`
}

// LooksLikeAgent reports whether a source tool stands for an agent: it takes an
// agentId parameter or mentions "agent" in its name.
func LooksLikeAgent(t tools.Tool) bool {
	if _, ok := t.Inputs.Properties["agentId"]; ok {
		return true
	}
	return strings.Contains(strings.ToLower(t.Name), "agent")
}

// AgentFromTool converts an agent-like tool into an Agent record. The id is the tool's
// default agentId when its schema declares one, else the tool name.
func AgentFromTool(t tools.Tool) Agent {
	id := t.Name
	if prop, ok := t.Inputs.Properties["agentId"].(map[string]interface{}); ok {
		if def := cast.ToString(prop["default"]); def != "" {
			id = def
		}
	}
	return Agent{
		ID:          id,
		Name:        t.Name,
		Description: t.Description,
		Tools:       []AgentTool{},
		Verified:    true,
		Source:      t.Source,
	}
}
