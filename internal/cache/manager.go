package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"time"

	"storefront-query-engine/internal/config"
)

// Names of the three logical caches, per spec §4.5 / §9 open question 2
// (the three-cache variant).
const (
	FilterList = "filter-list"
	Search     = "search"
	Facet      = "facet"
)

// Manager owns the three named caches and the background sweeper, and is
// the process-wide disable switch.
type Manager struct {
	disabled bool

	filterList *Cache
	search     *Cache
	facet      *Cache

	stopSweep chan struct{}
}

// NewManager builds a Manager from cache configuration.
func NewManager(cfg *config.CacheConfig) *Manager {
	m := &Manager{disabled: cfg.Disabled}
	m.filterList = newCache(FilterList, cfg.FilterListTTL, cfg.MaxSize, &m.disabled)
	m.search = newCache(Search, cfg.SearchTTL, cfg.MaxSize, &m.disabled)
	m.facet = newCache(Facet, cfg.FacetTTL, cfg.MaxSize, &m.disabled)

	m.stopSweep = make(chan struct{})
	go m.runSweeper(cfg.SweepInterval)

	return m
}

func (m *Manager) runSweeper(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.filterList.sweepExpired()
			m.search.sweepExpired()
			m.facet.sweepExpired()
		case <-m.stopSweep:
			return
		}
	}
}

// Close stops the background sweeper. Must be called during shutdown to
// avoid leaking the timer goroutine.
func (m *Manager) Close() {
	close(m.stopSweep)
}

// Disable turns the cache off process-wide: Get always misses, Set is a no-op.
func (m *Manager) Disable() { m.disabled = true }

// Enable turns the cache back on.
func (m *Manager) Enable() { m.disabled = false }

// FilterListCache returns the filter-list named cache.
func (m *Manager) FilterListCache() *Cache { return m.filterList }

// SearchCache returns the search-results named cache.
func (m *Manager) SearchCache() *Cache { return m.search }

// FacetCache returns the facet-aggregations named cache.
func (m *Manager) FacetCache() *Cache { return m.facet }

// FilterListKey builds the filter-list cache key: (tenant, normalized
// collection-page-ID-or-"all"), per spec §4.5.
func FilterListKey(tenant, collectionID string) string {
	if collectionID == "" {
		collectionID = "all"
	}
	return tenant + ":" + collectionID
}

// ResultKey builds the search/facet cache key:
// (shape, tenant, "cfg:"+configHash, MD5(canonical(filterInput))[0..16]),
// per spec §4.5.
func ResultKey(shape, tenant, configHash string, filterInput interface{}) string {
	canon, err := json.Marshal(filterInput)
	if err != nil {
		canon = []byte{}
	}
	sum := md5.Sum(canon)
	digest := hex.EncodeToString(sum[:])[:16]
	return shape + ":" + tenant + ":cfg:" + configHash + ":" + digest
}

// InvalidateShop deletes every cache entry for tenant across all three
// caches, per spec §4.5's invalidateShop rule.
func (m *Manager) InvalidateShop(tenant string) {
	m.search.InvalidateByPattern("search:" + tenant + ":cfg:*")
	m.facet.InvalidateByPattern("facet:" + tenant + ":cfg:*")
	m.filterList.InvalidateByPattern(tenant + ":*")
}

// InvalidateSearch deletes one exact search-cache entry.
func (m *Manager) InvalidateSearch(key string) { m.search.Delete(key) }

// InvalidateFilter deletes one exact facet-cache entry.
func (m *Manager) InvalidateFilter(key string) { m.facet.Delete(key) }
