// Package filterconfig resolves, rewrites, and fingerprints a tenant's
// FilterConfiguration (C2/C3/C4).
package filterconfig

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-query-engine/internal/domain"
)

// Store is the external source of FilterConfiguration candidates for a
// tenant. The production implementation is configstore.PostgresStore
// (optionally wrapped by configstore.CachedStore); this interface is what
// C2 depends on so it never imports storage concerns directly.
type Store interface {
	CandidatesForTenant(ctx context.Context, shop string) ([]*domain.FilterConfiguration, error)
}

// ResolvedConfig bundles a FilterConfiguration with the derived indices C3
// and C1 post-processing need, or reports an explicit absence (NullConfig,
// per spec §9) so callers never scatter nil checks.
type ResolvedConfig struct {
	Config              *domain.FilterConfiguration
	HandleToOption       map[string]string
	StandardFilterNames  map[string]bool
}

// IsNull reports whether this is the pass-through sentinel.
func (r *ResolvedConfig) IsNull() bool {
	return r == nil || r.Config == nil
}

// nullConfig is the shared pass-through sentinel: all lookups report "not found".
var nullConfig = &ResolvedConfig{
	HandleToOption:      map[string]string{},
	StandardFilterNames: map[string]bool{},
}

// standardOptionTypes maps a normalized optionType to the standard-filter
// name it corresponds to, per spec §4.2 / §4.3.
var standardOptionTypes = map[string]string{
	"vendor":       "vendor",
	"producttype":  "productType",
	"product_type": "productType",
	"tag":          "tag",
	"tags":         "tags",
	"collection":   "collection",
	"collections":  "collections",
	"price":        "price",
}

// Resolver resolves the active FilterConfiguration for a tenant, with a
// short-TTL lookup cache (spec §9: "a burst of storefront requests doesn't
// stampede the admin store").
type Resolver struct {
	store Store
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]resolvedCacheEntry
}

type resolvedCacheEntry struct {
	value     *ResolvedConfig
	expiresAt time.Time
}

// NewResolver builds a Resolver backed by store, caching resolutions for ttl.
func NewResolver(store Store, ttl time.Duration) *Resolver {
	return &Resolver{
		store: store,
		ttl:   ttl,
		cache: make(map[string]resolvedCacheEntry),
	}
}

func lookupKey(shop, collectionID, cpid string) string {
	return shop + "|" + collectionID + "|" + cpid
}

// Resolve returns the tenant's active ResolvedConfig, or the NullConfig
// sentinel if none is eligible. collectionID is an optional scoping hint used
// for collection-scoped precedence; cpid only partitions the lookup cache.
func (r *Resolver) Resolve(ctx context.Context, shop, collectionID, cpid string) (*ResolvedConfig, error) {
	key := lookupKey(shop, collectionID, cpid)

	r.mu.Lock()
	if entry, ok := r.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		r.mu.Unlock()
		return entry.value, nil
	}
	r.mu.Unlock()

	candidates, err := r.store.CandidatesForTenant(ctx, shop)
	if err != nil {
		// ConfigMissing per spec §7: treat as null config, transparent to caller.
		return nullConfig, nil
	}

	resolved := selectConfig(candidates, collectionID)
	var result *ResolvedConfig
	if resolved == nil {
		result = nullConfig
	} else {
		result = buildResolvedConfig(resolved)
	}

	r.mu.Lock()
	r.cache[key] = resolvedCacheEntry{value: result, expiresAt: time.Now().Add(r.ttl)}
	r.mu.Unlock()

	return result, nil
}

// selectConfig picks the first eligible candidate, preferring
// collection-scoped configurations over unscoped ones, breaking ties by
// most recent UpdatedAt, per spec §4.2.
func selectConfig(candidates []*domain.FilterConfiguration, collectionID string) *domain.FilterConfiguration {
	var eligible []*domain.FilterConfiguration
	for _, c := range candidates {
		if c.Eligible() {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	var scoped, unscoped []*domain.FilterConfiguration
	for _, c := range eligible {
		if collectionID != "" && len(c.AllowedCollections) > 0 && c.HasCollection(collectionID) {
			scoped = append(scoped, c)
		} else {
			unscoped = append(unscoped, c)
		}
	}

	pool := scoped
	if len(pool) == 0 {
		pool = unscoped
	}

	sort.Slice(pool, func(i, j int) bool {
		return pool[i].UpdatedAt.After(pool[j].UpdatedAt)
	})
	return pool[0]
}

// buildResolvedConfig derives handleToOption and standardFilterNames from a
// FilterConfiguration's published options, per spec §4.2.
func buildResolvedConfig(c *domain.FilterConfiguration) *ResolvedConfig {
	handleToOption := make(map[string]string)
	standardNames := make(map[string]bool)

	for _, opt := range c.Options {
		if opt.Status != domain.StatusPublished {
			continue
		}
		name := optionName(opt)
		handleToOption[opt.Handle] = name

		normalized := strings.ToLower(strings.TrimSpace(opt.OptionType))
		if _, ok := standardOptionTypes[normalized]; ok {
			standardNames[name] = true
		}
	}

	return &ResolvedConfig{
		Config:              c,
		HandleToOption:      handleToOption,
		StandardFilterNames: standardNames,
	}
}

// optionName returns variantOptionKey || optionType || handle, per spec §4.2.
func optionName(opt domain.FilterOption) string {
	if opt.OptionSettings.VariantOptionKey != "" {
		return opt.OptionSettings.VariantOptionKey
	}
	if opt.OptionType != "" {
		return opt.OptionType
	}
	return opt.Handle
}
