// Package resolver turns catalog path templates into callable paths.
//
// A placeholder is resolved from the run's parameter map, then through its
// aliases, then through a dependent lookup against the live service. Lookups
// run at most once per name per run. Descriptors whose placeholders all
// resolve go to the Ready bucket; the rest go to NeedsParameters, partially
// substituted.
package resolver

import (
	"context"
	"log/slog"

	"endpoint-prober/internal/catalog"
	"endpoint-prober/internal/session"
	"endpoint-prober/internal/types"
)

// Target is one descriptor after resolution
type Target struct {
	// Path is the template with every resolved placeholder substituted
	Path string
	// Template is the path as it appeared in the catalog
	Template string
	// Unresolved lists the placeholder names left in Path
	Unresolved []string
	// Entry is the source catalog entry
	Entry catalog.Entry
}

// Buckets is the result of resolving a catalog
type Buckets struct {
	Ready           *types.Tree[Target]
	NeedsParameters *types.Tree[Target]
	// Malformed counts catalog entries dropped from both buckets
	Malformed int
}

// Count returns ready + needsParameters + malformed, which equals the
// catalog count.
func (b *Buckets) Count() int {
	return b.Ready.Count() + b.NeedsParameters.Count() + b.Malformed
}

// Options configures a Resolver
type Options struct {
	Parameters map[string]string
	Aliases    map[string][]string
	Lookups    map[string]Lookup
	Logger     *slog.Logger
}

type lookupResult struct {
	value string
	err   error
}

// Resolver resolves placeholders for one run. Not safe for concurrent use.
type Resolver struct {
	client  session.Client
	params  map[string]string
	aliases map[string][]string
	lookups map[string]Lookup
	logger  *slog.Logger

	cache  map[string]lookupResult
	active map[string]bool
}

// New creates a resolver that performs dependent lookups through client
func New(client session.Client, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:  client,
		params:  opts.Parameters,
		aliases: opts.Aliases,
		lookups: opts.Lookups,
		logger:  logger,
		cache:   make(map[string]lookupResult),
		active:  make(map[string]bool),
	}
}

// Value resolves a single placeholder name. Empty values count as unresolved.
func (r *Resolver) Value(ctx context.Context, name string) (string, bool) {
	if r.active[name] {
		return "", false
	}
	r.active[name] = true
	defer delete(r.active, name)

	if v := r.params[name]; v != "" {
		return v, true
	}
	for _, alias := range r.aliases[name] {
		if v, ok := r.Value(ctx, alias); ok {
			return v, true
		}
	}
	return r.lookup(ctx, name)
}

func (r *Resolver) lookup(ctx context.Context, name string) (string, bool) {
	l, ok := r.lookups[name]
	if !ok {
		return "", false
	}
	if res, ok := r.cache[name]; ok {
		return res.value, res.err == nil && res.value != ""
	}

	value, err := l.Lookup(ctx, r)
	r.cache[name] = lookupResult{value: value, err: err}
	if err != nil {
		r.logger.Warn("dependent lookup failed", "placeholder", name, "error", err)
		return "", false
	}
	r.logger.Debug("dependent lookup resolved", "placeholder", name, "value", value)
	return value, value != ""
}

// Expand substitutes every resolvable placeholder in template and returns
// the names that stayed unresolved.
func (r *Resolver) Expand(ctx context.Context, template string) (string, []string) {
	path := template
	var unresolved []string
	for _, name := range Placeholders(template) {
		value, ok := r.Value(ctx, name)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		path = Substitute(path, name, value)
	}
	return path, unresolved
}

// Resolve partitions the catalog into ready and needs-parameters buckets.
// It only fails when ctx is done.
func (r *Resolver) Resolve(ctx context.Context, c *catalog.Catalog) (*Buckets, error) {
	buckets := &Buckets{
		Ready:           types.NewTree[Target](),
		NeedsParameters: types.NewTree[Target](),
	}

	for _, cat := range c.Categories() {
		for _, group := range cat.Methods {
			for _, entry := range group.Items {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				if entry.Malformed {
					r.logger.Warn("skip invalid endpoint format",
						"category", cat.Name, "method", group.Method, "entry", string(entry.Raw))
					buckets.Malformed++
					continue
				}

				path, unresolved := r.Expand(ctx, entry.Endpoint)
				target := Target{
					Path:       path,
					Template:   entry.Endpoint,
					Unresolved: unresolved,
					Entry:      entry,
				}
				if len(unresolved) == 0 {
					buckets.Ready.Append(cat.Name, group.Method, target)
				} else {
					buckets.NeedsParameters.Append(cat.Name, group.Method, target)
				}
			}
		}
	}
	return buckets, nil
}
