package goat

import (
	"context"

	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// Name is the source name goat tools are registered under.
const Name = "goat"

// Source lists the adapter's tools as native tools.
type Source struct {
	adapter *Adapter
}

// NewSource wraps adapter.
func NewSource(adapter *Adapter) *Source {
	return &Source{adapter: adapter}
}

func (s *Source) Name() string { return Name }

func (s *Source) ListTools(ctx context.Context) ([]tools.Tool, error) {
	defs := s.adapter.ListOfTools()
	out := make([]tools.Tool, 0, len(defs))
	for _, def := range defs {
		name := def.Name
		out = append(out, tools.NewNativeTool(Name, name, def.Description, def.InputSchema,
			func(ctx context.Context, params map[string]any) (any, error) {
				return s.adapter.ToolHandler(ctx, name, params)
			}))
	}
	return out, nil
}
