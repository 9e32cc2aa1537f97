// Package repository holds the capability sources the proxy federates over.
package repository

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

// Source is a named provider of invocable tools. ListTools is called on every search
// and dispatch; implementations must not assume their results are cached.
type Source interface {
	Name() string
	ListTools(ctx context.Context) ([]tools.Tool, error)
}

// Func adapts a listing function into a Source.
type Func struct {
	SourceName string
	List       func(ctx context.Context) ([]tools.Tool, error)
}

func (f Func) Name() string { return f.SourceName }

func (f Func) ListTools(ctx context.Context) ([]tools.Tool, error) {
	if f.List == nil {
		return nil, nil
	}
	return f.List(ctx)
}

// Registry is the ordered, immutable set of sources known at startup.
type Registry struct {
	order   []string
	sources map[string]Source
}

// NewRegistry registers sources in the given order. Empty or duplicate names are rejected.
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		if s == nil {
			return nil, fmt.Errorf("nil source")
		}
		name := s.Name()
		if name == "" {
			return nil, fmt.Errorf("source has no name")
		}
		if _, dup := r.sources[name]; dup {
			return nil, fmt.Errorf("duplicate source name: %s", name)
		}
		r.sources[name] = s
		r.order = append(r.order, name)
	}
	return r, nil
}

// Names returns source names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the named source.
func (r *Registry) Get(name string) (Source, bool) {
	s, ok := r.sources[name]
	return s, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.sources[name]
	return ok
}

// All returns the sources in registration order.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sources[name])
	}
	return out
}

// Select resolves names against the registry, keeping registration order and dropping
// duplicates. Unknown names are returned separately.
func (r *Registry) Select(names []string) (known []string, unknown []string) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if r.Has(n) {
			want[n] = true
		} else {
			unknown = append(unknown, n)
		}
	}
	for _, n := range r.order {
		if want[n] {
			known = append(known, n)
		}
	}
	return known, unknown
}

// Sanitize drops tools that cannot be invoked, logging each one, and stamps the
// source name on the rest.
func Sanitize(source string, list []tools.Tool, logger logrus.FieldLogger) []tools.Tool {
	logger = logging.OrDiscard(logger)
	out := make([]tools.Tool, 0, len(list))
	for _, t := range list {
		if err := t.Validate(); err != nil {
			logger.WithFields(logrus.Fields{"source": source, "tool": t.Name}).
				Warnf("skipping malformed tool: %v", err)
			continue
		}
		if t.Source == "" {
			t.Source = source
		}
		out = append(out, t)
	}
	return out
}

// ListSanitized lists s and sanitizes the result.
func ListSanitized(ctx context.Context, s Source, logger logrus.FieldLogger) ([]tools.Tool, error) {
	list, err := s.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	return Sanitize(s.Name(), list, logger), nil
}
