// Package aggregator federates fuzzy searches over the registry and every capability
// source.
package aggregator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bitte-ai/go-mcp-proxy/src/errs"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/registry"
	"github.com/bitte-ai/go-mcp-proxy/src/repository"
	"github.com/bitte-ai/go-mcp-proxy/src/search"
	"github.com/bitte-ai/go-mcp-proxy/src/tools"
)

var (
	// AgentKeys are the fields agent searches match against.
	AgentKeys = []string{"id", "name", "description", "instructions", "generatedDescription", "category"}
	// ToolKeys are the fields tool searches match against.
	ToolKeys = []string{"name", "description", "function.name", "function.description"}

	// BuiltinSources are always searched for tools when registered.
	BuiltinSources = []string{"goat", "agentkit"}
)

const (
	DefaultAgentLimit     = 10
	DefaultAgentThreshold = 0.3
	DefaultToolLimit      = 5
	DefaultToolThreshold  = 1.0
)

// RegistryClient is the part of the registry API searches need.
type RegistryClient interface {
	ListAgents(ctx context.Context, q registry.AgentQuery) ([]registry.Agent, error)
	ListTools(ctx context.Context) ([]tools.Tool, error)
}

// AgentSearchParams are agent search inputs. Nil fields take their defaults.
type AgentSearchParams struct {
	Query           string
	VerifiedOnly    *bool
	ChainIDs        string
	Category        string
	Limit           *int
	Offset          *int
	Threshold       *float64
	IncludeServices []string
}

// ToolSearchParams are tool search inputs. Nil fields take their defaults.
type ToolSearchParams struct {
	Query           string
	Limit           *int
	Threshold       *float64
	IncludeServices []string
}

// Result is a federated search result.
type Result[T any] struct {
	PrimaryResults []search.Result[T]
	BySource       map[string][]search.Result[T]
	Combined       []search.Result[T]
	SourceErrors   map[string]string
}

// TotalResults counts primary and per-source results.
func (r *Result[T]) TotalResults() int {
	n := len(r.PrimaryResults)
	for _, rs := range r.BySource {
		n += len(rs)
	}
	return n
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	type wire struct {
		PrimaryResults  []search.Result[T]            `json:"primaryResults"`
		ServiceResults  map[string][]search.Result[T] `json:"serviceResults"`
		CombinedResults []search.Result[T]            `json:"combinedResults"`
		SourceErrors    map[string]string             `json:"sourceErrors,omitempty"`
		TotalResults    int                           `json:"totalResults"`
	}
	w := wire{
		PrimaryResults:  r.PrimaryResults,
		ServiceResults:  r.BySource,
		CombinedResults: r.Combined,
		SourceErrors:    r.SourceErrors,
		TotalResults:    r.TotalResults(),
	}
	if w.PrimaryResults == nil {
		w.PrimaryResults = []search.Result[T]{}
	}
	if w.ServiceResults == nil {
		w.ServiceResults = map[string][]search.Result[T]{}
	}
	if w.CombinedResults == nil {
		w.CombinedResults = []search.Result[T]{}
	}
	return json.Marshal(w)
}

// Aggregator runs federated searches.
type Aggregator struct {
	registry RegistryClient
	sources  *repository.Registry
	logger   logrus.FieldLogger
}

// New builds an Aggregator. sources may be empty but not nil.
func New(reg RegistryClient, sources *repository.Registry, logger logrus.FieldLogger) *Aggregator {
	return &Aggregator{registry: reg, sources: sources, logger: logging.OrDiscard(logger)}
}

// Sources returns the source registry.
func (a *Aggregator) Sources() *repository.Registry { return a.sources }

// Registry returns the registry client.
func (a *Aggregator) Registry() RegistryClient { return a.registry }

type slot[T any] struct {
	results []search.Result[T]
	err     error
}

// SearchAgents searches registry agents and agent-like source tools.
func (a *Aggregator) SearchAgents(ctx context.Context, p AgentSearchParams) (*Result[registry.Agent], error) {
	limit := intOr(p.Limit, DefaultAgentLimit)
	opts := search.Options{Keys: AgentKeys, Limit: limit, Threshold: floatOr(p.Threshold, DefaultAgentThreshold)}
	q := registry.AgentQuery{
		VerifiedOnly: boolOr(p.VerifiedOnly, true),
		Limit:        limit,
		Offset:       intOr(p.Offset, 0),
		ChainIDs:     p.ChainIDs,
		Category:     p.Category,
	}

	names := a.includedSources(p.IncludeServices, nil)
	log := a.logger.WithField("query", p.Query)
	log.Infof("Searching for agents with query: %s", p.Query)

	return run(ctx, a, names, opts, p.Query,
		func(ctx context.Context) ([]registry.Agent, error) {
			if a.registry == nil {
				return nil, nil
			}
			return a.registry.ListAgents(ctx, q)
		},
		func(ctx context.Context, src repository.Source) ([]registry.Agent, error) {
			list, err := repository.ListSanitized(ctx, src, a.logger)
			if err != nil {
				return nil, err
			}
			agents := make([]registry.Agent, 0)
			for _, t := range list {
				if registry.LooksLikeAgent(t) {
					agents = append(agents, registry.AgentFromTool(t))
				}
			}
			return agents, nil
		})
}

// SearchTools searches registry tools and every included source's tools.
func (a *Aggregator) SearchTools(ctx context.Context, p ToolSearchParams) (*Result[tools.Tool], error) {
	opts := search.Options{
		Keys:      ToolKeys,
		Limit:     intOr(p.Limit, DefaultToolLimit),
		Threshold: floatOr(p.Threshold, DefaultToolThreshold),
	}
	names := a.includedSources(p.IncludeServices, BuiltinSources)
	a.logger.WithField("query", p.Query).Infof("Searching for tools with query: %s", p.Query)

	return run(ctx, a, names, opts, p.Query,
		func(ctx context.Context) ([]tools.Tool, error) {
			if a.registry == nil {
				return nil, nil
			}
			list, err := a.registry.ListTools(ctx)
			if err != nil {
				return nil, err
			}
			return repository.Sanitize(registry.SourceName, list, a.logger), nil
		},
		func(ctx context.Context, src repository.Source) ([]tools.Tool, error) {
			return repository.ListSanitized(ctx, src, a.logger)
		})
}

// includedSources resolves the requested names (all sources when nil) plus always,
// in registration order. Unknown names are logged and dropped.
func (a *Aggregator) includedSources(requested, always []string) []string {
	if requested == nil {
		return a.sources.Names()
	}
	want := append(append([]string{}, requested...), always...)
	known, unknown := a.sources.Select(want)
	for _, name := range unknown {
		if name == registry.SourceName {
			continue
		}
		a.logger.WithField("source", name).Warnf("Service not found: %s", name)
	}
	return known
}

func run[T any](
	ctx context.Context,
	a *Aggregator,
	names []string,
	opts search.Options,
	query string,
	primary func(ctx context.Context) ([]T, error),
	fromSource func(ctx context.Context, src repository.Source) ([]T, error),
) (*Result[T], error) {
	var (
		g        errgroup.Group
		primSlot slot[T]
		slots    = make([]slot[T], len(names))
	)

	g.Go(func() error {
		items, err := primary(ctx)
		if err != nil {
			a.logger.WithField("source", registry.SourceName).Errorf("Error searching registry: %v", err)
			primSlot.err = err
			return nil
		}
		res, err := search.Search(items, query, opts)
		if err != nil {
			return err
		}
		primSlot.results = res
		return nil
	})

	for i, name := range names {
		src, _ := a.sources.Get(name)
		g.Go(func() error {
			items, err := listRecovered(ctx, src, fromSource)
			if err != nil {
				a.logger.WithField("source", name).Errorf("Error searching service %s: %v", name, err)
				slots[i].err = &errs.SourceUnavailableError{Source: name, Err: err}
				return nil
			}
			res, err := search.Search(items, query, opts)
			if err != nil {
				return err
			}
			slots[i].results = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result[T]{
		PrimaryResults: primSlot.results,
		BySource:       make(map[string][]search.Result[T], len(names)),
		SourceErrors:   map[string]string{},
	}
	if out.PrimaryResults == nil {
		out.PrimaryResults = []search.Result[T]{}
	}
	if primSlot.err != nil {
		out.SourceErrors[registry.SourceName] = primSlot.err.Error()
	}
	out.Combined = append(out.Combined, out.PrimaryResults...)
	for i, name := range names {
		res := slots[i].results
		if res == nil {
			res = []search.Result[T]{}
		}
		out.BySource[name] = res
		if slots[i].err != nil {
			out.SourceErrors[name] = slots[i].err.Error()
		}
		out.Combined = append(out.Combined, res...)
	}
	if out.Combined == nil {
		out.Combined = []search.Result[T]{}
	}
	return out, nil
}

func listRecovered[T any](ctx context.Context, src repository.Source, list func(context.Context, repository.Source) ([]T, error)) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while listing: %v", r)
		}
	}()
	return list(ctx, src)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
