package names

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Lookup resolves an identity ID to a display name.
type Lookup func(ctx context.Context, identityID string) (string, error)

// Resolver caches display-name lookups in a bounded LRU so the on-demand
// profile endpoint is not hit on every presence event.
type Resolver struct {
	lookup Lookup
	cache  *lru.Cache[string, string]
	logger zerolog.Logger
}

// NewResolver creates a resolver with a cache of the given size.
func NewResolver(size int, lookup Lookup, logger zerolog.Logger) (*Resolver, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		lookup: lookup,
		cache:  cache,
		logger: logger.With().Str("component", "names").Logger(),
	}, nil
}

// DisplayName returns the display name for an identity, consulting the
// cache first. Returns "" when the name cannot be resolved; failures are
// not cached so a later lookup can succeed.
func (r *Resolver) DisplayName(ctx context.Context, identityID string) string {
	if name, ok := r.cache.Get(identityID); ok {
		return name
	}

	name, err := r.lookup(ctx, identityID)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("identity_id", identityID).
			Msg("Display name lookup failed")
		return ""
	}

	r.cache.Add(identityID, name)
	return name
}

// Prime records a display name observed in an event payload, keeping the
// cache current without a lookup.
func (r *Resolver) Prime(identityID, name string) {
	if name == "" {
		return
	}
	r.cache.Add(identityID, name)
}
