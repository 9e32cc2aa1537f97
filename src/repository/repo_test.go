package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

func listing(name string, ts ...tools.Tool) Func {
	return Func{SourceName: name, List: func(ctx context.Context) ([]tools.Tool, error) { return ts, nil }}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	reg, err := NewRegistry(listing("goat"), listing("agentkit"), listing("upstream"))
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	names := reg.Names()
	if len(names) != 3 || names[0] != "goat" || names[2] != "upstream" {
		t.Fatalf("unexpected order: %v", names)
	}
	if _, ok := reg.Get("agentkit"); !ok {
		t.Fatalf("agentkit not found")
	}
	if reg.Has("missing") {
		t.Fatalf("unexpected source")
	}
	if all := reg.All(); len(all) != 3 || all[1].Name() != "agentkit" {
		t.Fatalf("unexpected All(): %v", all)
	}

	names[0] = "mutated"
	if reg.Names()[0] != "goat" {
		t.Fatalf("Names must return a copy")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(listing("goat"), listing("goat")); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if _, err := NewRegistry(listing("")); err == nil {
		t.Fatalf("expected empty name error")
	}
}

func TestRegistrySelect(t *testing.T) {
	reg, _ := NewRegistry(listing("goat"), listing("agentkit"), listing("extra"))
	known, unknown := reg.Select([]string{"extra", "nope", "goat", "goat"})
	if len(known) != 2 || known[0] != "goat" || known[1] != "extra" {
		t.Fatalf("unexpected known: %v", known)
	}
	if len(unknown) != 1 || unknown[0] != "nope" {
		t.Fatalf("unexpected unknown: %v", unknown)
	}
}

func TestSanitizeSkipsMalformed(t *testing.T) {
	ok := tools.NewNativeTool("", "ok", "", tools.ObjectSchema(nil), func(ctx context.Context, p map[string]any) (any, error) { return nil, nil })
	noHandler := tools.NewNativeTool("", "broken", "", tools.ObjectSchema(nil), nil)
	noName := tools.NewHTTPTool("", "", "", tools.ObjectSchema(nil), tools.Execution{BaseURL: "x", HTTPMethod: "GET"})

	out := Sanitize("goat", []tools.Tool{ok, noHandler, noName}, nil)
	if len(out) != 1 || out[0].Name != "ok" {
		t.Fatalf("unexpected sanitized list: %v", out)
	}
	if out[0].Source != "goat" {
		t.Fatalf("source not stamped: %q", out[0].Source)
	}
}

func TestListSanitizedPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	src := Func{SourceName: "bad", List: func(ctx context.Context) ([]tools.Tool, error) { return nil, boom }}
	if _, err := ListSanitized(context.Background(), src, nil); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ts, err := (Func{SourceName: "empty"}).ListTools(context.Background()); err != nil || ts != nil {
		t.Fatalf("nil List should yield nothing")
	}
}
