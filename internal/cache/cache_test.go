package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration, maxSize int) *Cache {
	disabled := false
	return newCache("test", ttl, maxSize, &disabled)
}

func TestCache_RoundTripWithinTTL(t *testing.T) {
	c := newTestCache(time.Minute, 10)
	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCache_MissAfterTTL(t *testing.T) {
	c := newTestCache(10*time.Millisecond, 10)
	c.Set("k", "v")
	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	c := newTestCache(time.Minute, 2)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	// touch "a" so "b" becomes the least-recently-accessed
	c.Get("a")
	time.Sleep(time.Millisecond)
	c.Set("c", 3)

	keys := c.Keys()
	assert.Len(t, keys, 2)
	_, bPresent := c.Get("b")
	assert.False(t, bPresent, "b should have been evicted as least-recently-accessed")
	_, aPresent := c.Get("a")
	assert.True(t, aPresent)
}

func TestCache_SingleFlightDedupesColdKey(t *testing.T) {
	c := newTestCache(time.Minute, 10)
	var calls int64

	var wg sync.WaitGroup
	results := make([]interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.GetOrBuild("k", func() (interface{}, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return "built", nil
			})
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls)
	for _, r := range results {
		assert.Equal(t, "built", r)
	}
}

func TestCache_InvalidateByPatternPrefix(t *testing.T) {
	c := newTestCache(time.Minute, 100)
	c.Set("search:shop1:cfg:abc:111", "v1")
	c.Set("search:shop1:cfg:def:222", "v2")
	c.Set("search:shop2:cfg:abc:333", "v3")

	c.InvalidateByPattern("search:shop1:cfg:*")

	_, ok1 := c.Get("search:shop1:cfg:abc:111")
	_, ok2 := c.Get("search:shop1:cfg:def:222")
	_, ok3 := c.Get("search:shop2:cfg:abc:333")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestCache_DisabledAlwaysMisses(t *testing.T) {
	disabled := true
	c := newCache("test", time.Minute, 10, &disabled)
	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestManager_InvalidateShop(t *testing.T) {
	m := &Manager{}
	disabled := false
	m.disabled = disabled
	m.filterList = newCache(FilterList, time.Minute, 100, &m.disabled)
	m.search = newCache(Search, time.Minute, 100, &m.disabled)
	m.facet = newCache(Facet, time.Minute, 100, &m.disabled)

	m.search.Set("search:shop1:cfg:abc:111", "v")
	m.facet.Set("facet:shop1:cfg:abc:111", "v")
	m.filterList.Set(FilterListKey("shop1", "all"), "v")
	m.search.Set("search:shop2:cfg:abc:111", "v")

	m.InvalidateShop("shop1")

	_, ok1 := m.search.Get("search:shop1:cfg:abc:111")
	_, ok2 := m.facet.Get("facet:shop1:cfg:abc:111")
	_, ok3 := m.filterList.Get(FilterListKey("shop1", "all"))
	_, ok4 := m.search.Get("search:shop2:cfg:abc:111")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.False(t, ok3)
	assert.True(t, ok4)
}
