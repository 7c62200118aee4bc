package configstore

import (
	"context"
	"encoding/json"
	"time"

	"storefront-query-engine/internal/domain"
	"storefront-query-engine/internal/filterconfig"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a Store with a Redis read-through cache, matching the
// get/set/JSON-marshal idiom of
// product-service/internal/repository/redis/cache_repository.go. This is
// independent of, and faster than, the resolver's own in-process lookup
// cache (spec §9) — it exists to protect Postgres from a burst of
// storefront traffic against a cold resolver cache.
type CachedStore struct {
	inner  filterconfig.Store
	client *redis.Client
	ttl    time.Duration
}

// NewCachedStore wraps inner with a Redis cache of the given TTL.
func NewCachedStore(inner filterconfig.Store, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl}
}

func cacheKey(shop string) string {
	return "filterconfig:candidates:" + shop
}

// CandidatesForTenant reads from Redis first; on a miss it falls through to
// inner and populates the cache. A Redis failure (including a connection
// error) is treated as a cache miss, not a request failure — it degrades
// to hitting Postgres directly, matching the cache repository's
// redis.Nil-as-miss convention.
func (s *CachedStore) CandidatesForTenant(ctx context.Context, shop string) ([]*domain.FilterConfiguration, error) {
	key := cacheKey(shop)

	if raw, err := s.client.Get(ctx, key).Result(); err == nil {
		var candidates []*domain.FilterConfiguration
		if jsonErr := json.Unmarshal([]byte(raw), &candidates); jsonErr == nil {
			return candidates, nil
		}
	}

	candidates, err := s.inner.CandidatesForTenant(ctx, shop)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(candidates); err == nil {
		_ = s.client.Set(ctx, key, payload, s.ttl).Err()
	}

	return candidates, nil
}
