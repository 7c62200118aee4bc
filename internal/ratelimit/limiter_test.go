package ratelimit

import (
	"testing"

	"storefront-query-engine/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsWithinBurst(t *testing.T) {
	l := New(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 2})
	defer l.Close()
	assert.True(t, l.Allow("shop-a.myshopify.com"))
	assert.True(t, l.Allow("shop-a.myshopify.com"))
}

func TestLimiter_DeniesBeyondBurst(t *testing.T) {
	l := New(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 1})
	defer l.Close()
	assert.True(t, l.Allow("shop-b.myshopify.com"))
	assert.False(t, l.Allow("shop-b.myshopify.com"))
}

func TestLimiter_DisabledAlwaysAllows(t *testing.T) {
	l := New(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 1, Burst: 1})
	defer l.Close()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("shop-c.myshopify.com"))
	}
}

func TestLimiter_PerTenantIsolation(t *testing.T) {
	l := New(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 1})
	defer l.Close()
	assert.True(t, l.Allow("shop-d.myshopify.com"))
	assert.False(t, l.Allow("shop-d.myshopify.com"))
	assert.True(t, l.Allow("shop-e.myshopify.com"))
}
