package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitte-ai/go-mcp-proxy/src/json"
)

// Kind discriminates the two invocable variants.
type Kind string

const (
	// KindNative tools carry an in-process Handler.
	KindNative Kind = "native"
	// KindHTTP tools carry an Execution descriptor and are invoked by the dynamic HTTP executor.
	KindHTTP Kind = "http"
)

// Schema mirrors the JSON schema description of a tool's parameters.
type Schema struct {
	Type        string                 `json:"type"`                 // e.g. "object", "array", "string"
	Properties  map[string]interface{} `json:"properties,omitempty"` // field schemas
	Required    []string               `json:"required,omitempty"`
	Description string                 `json:"description,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Items       map[string]interface{} `json:"items,omitempty"` // for arrays
	Enum        []interface{}          `json:"enum,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	Format      string                 `json:"format,omitempty"` // e.g. "date-time"
}

// ObjectSchema builds an object schema from property schemas and required names.
func ObjectSchema(props map[string]interface{}, required ...string) Schema {
	if props == nil {
		props = map[string]interface{}{}
	}
	return Schema{Type: "object", Properties: props, Required: required}
}

// Execution describes how a declarative tool is reached over HTTP.
type Execution struct {
	BaseURL    string `json:"baseUrl"`
	Path       string `json:"path"`
	HTTPMethod string `json:"httpMethod"` // empty means GET
}

// Function is the registry's plugin-function triple.
type Function struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// Handler is the embedded callable of a native tool.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Tool is one invocable capability. Exactly one of Handler (KindNative) or
// Execution (KindHTTP) is meaningful, selected by Kind.
type Tool struct {
	ID          string
	Name        string
	Description string
	Inputs      Schema
	Source      string
	Kind        Kind
	Handler     Handler
	Execution   *Execution
}

// NewNativeTool builds a native tool.
func NewNativeTool(source, name, description string, inputs Schema, h Handler) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Inputs:      inputs,
		Source:      source,
		Kind:        KindNative,
		Handler:     h,
	}
}

// NewHTTPTool builds a declarative HTTP tool.
func NewHTTPTool(source, name, description string, inputs Schema, exec Execution) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Inputs:      inputs,
		Source:      source,
		Kind:        KindHTTP,
		Execution:   &exec,
	}
}

// Validate reports why a tool cannot be invoked, if it cannot.
func (t Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("tool has no name")
	}
	switch t.Kind {
	case KindNative:
		if t.Handler == nil {
			return fmt.Errorf("native tool %s has no handler", t.Name)
		}
	case KindHTTP:
		if t.Execution == nil {
			return fmt.Errorf("http tool %s has no execution descriptor", t.Name)
		}
		if t.Execution.BaseURL == "" {
			return fmt.Errorf("http tool %s has no base url", t.Name)
		}
	default:
		return fmt.Errorf("tool %s has unknown kind %q", t.Name, t.Kind)
	}
	return nil
}

// wireTool is the JSON shape of a Tool. HTTP tools also carry the registry's
// function/execution fields so the same dotted keys search both variants.
type wireTool struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Schema     `json:"parameters"`
	Source      string     `json:"source,omitempty"`
	Kind        Kind       `json:"kind"`
	Function    *Function  `json:"function,omitempty"`
	Execution   *Execution `json:"execution,omitempty"`
}

func (t Tool) MarshalJSON() ([]byte, error) {
	w := wireTool{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.Inputs,
		Source:      t.Source,
		Kind:        t.Kind,
	}
	if t.Kind == KindHTTP {
		w.Function = &Function{Name: t.Name, Description: t.Description, Parameters: t.Inputs}
		w.Execution = t.Execution
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts both the proxy's own encoding and registry plugin-tool records
// ({"function": {...}, "execution": {...}}). Decoded tools never carry a handler, so a
// record without an execution descriptor decodes as a native tool that fails Validate.
func (t *Tool) UnmarshalJSON(data []byte) error {
	var w wireTool
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Tool{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Inputs:      w.Parameters,
		Source:      w.Source,
		Kind:        KindNative,
		Execution:   w.Execution,
	}
	if w.Function != nil {
		if t.Name == "" {
			t.Name = w.Function.Name
		}
		if t.Description == "" {
			t.Description = w.Function.Description
		}
		if t.Inputs.Type == "" {
			t.Inputs = w.Function.Parameters
		}
	}
	if w.Execution != nil {
		t.Kind = KindHTTP
	}
	return nil
}
