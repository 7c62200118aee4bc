// Package cache implements the in-process TTL+LRU+single-flight cache
// layer (C5). It is deliberately not persistent — that is an explicit
// non-goal — and the LRU bookkeeping is hand-rolled rather than pulled from
// a third-party cache library, since nothing in the retrieved corpus ships
// an LRU package (see DESIGN.md).
package cache

import (
	"strings"
	"sync"
	"time"

	"storefront-query-engine/internal/domain"

	"golang.org/x/sync/singleflight"
)

// Cache is one named TTL+LRU cache with single-flight dedup on misses.
type Cache struct {
	name    string
	ttl     time.Duration
	maxSize int
	group   singleflight.Group

	mu       sync.Mutex
	entries  map[string]*domain.CacheEntry
	disabled *bool // shared flag owned by Manager
}

func newCache(name string, ttl time.Duration, maxSize int, disabled *bool) *Cache {
	return &Cache{
		name:     name,
		ttl:      ttl,
		maxSize:  maxSize,
		entries:  make(map[string]*domain.CacheEntry),
		disabled: disabled,
	}
}

// Get returns the cached value for key and true if present and unexpired.
// A stale entry is removed and reported as a miss.
func (c *Cache) Get(key string) (interface{}, bool) {
	if *c.disabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if entry.Expired(now) {
		delete(c.entries, key)
		return nil, false
	}
	entry.LastAccessed = now
	entry.AccessCount++
	return entry.Value, true
}

// Set stores value under key with this cache's TTL, evicting the
// least-recently-accessed entry first if at capacity.
func (c *Cache) Set(key string, value interface{}) {
	if *c.disabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *Cache) setLocked(key string, value interface{}) {
	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &domain.CacheEntry{
		Value:        value,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttl),
		LastAccessed: now,
		AccessCount:  0,
	}
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.LastAccessed.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.LastAccessed
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Keys returns the current key set.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// InvalidateByPattern deletes every key matching pattern. A trailing "*"
// is a prefix glob, per spec §4.5.
func (c *Cache) InvalidateByPattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if matchPattern(pattern, k) {
			delete(c.entries, k)
		}
	}
}

func matchPattern(pattern, key string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == key
}

// sweepExpired removes every entry whose TTL has elapsed. Called
// periodically by Manager's background sweeper.
func (c *Cache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, k)
		}
	}
}

// GetOrBuild returns the cached value for key, or calls build exactly once
// across all concurrent callers for a cold key (single-flight, per spec
// §4.5 / §8 property 7), caching the result on success.
func (c *Cache) GetOrBuild(key string, build func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under single-flight: another goroutine may have filled it
		// while we were queued behind the group lock.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := build()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	return v, err
}
