package resolver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"endpoint-prober/internal/config"
	"endpoint-prober/internal/session"
)

// Lookup obtains a placeholder value from the live service. The resolver is
// passed in so a lookup can call the client and expand its own path.
type Lookup interface {
	Lookup(ctx context.Context, r *Resolver) (string, error)
}

// LookupFunc adapts a plain function to Lookup
type LookupFunc func(ctx context.Context, r *Resolver) (string, error)

func (f LookupFunc) Lookup(ctx context.Context, r *Resolver) (string, error) {
	return f(ctx, r)
}

// FieldLookup GETs Path and reads Field (a gjson path) from the JSON body.
// Path may hold placeholders; they are resolved first, possibly through
// other lookups.
type FieldLookup struct {
	Path  string
	Field string
}

func (l FieldLookup) Lookup(ctx context.Context, r *Resolver) (string, error) {
	path, unresolved := r.Expand(ctx, l.Path)
	if len(unresolved) > 0 {
		return "", fmt.Errorf("lookup path %s needs %s", l.Path, strings.Join(unresolved, ", "))
	}

	resp, err := r.client.Do(ctx, session.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s returned status %d", path, resp.StatusCode)
	}
	if !gjson.ValidBytes(resp.Body) {
		return "", fmt.Errorf("response from %s is not JSON", path)
	}

	value := gjson.GetBytes(resp.Body, l.Field)
	if !value.Exists() || value.String() == "" {
		return "", fmt.Errorf("response from %s has no %s", path, l.Field)
	}
	return value.String(), nil
}

// FieldLookups builds the lookup table from configuration
func FieldLookups(cfg map[string]config.LookupConfig) map[string]Lookup {
	lookups := make(map[string]Lookup, len(cfg))
	for name, l := range cfg {
		lookups[name] = FieldLookup{Path: l.Path, Field: l.Field}
	}
	return lookups
}
