// Package ratelimit implements the per-tenant token-bucket rate limiter
// used by the HTTP middleware, adapted from the teacher's per-IP limiter.
package ratelimit

import (
	"sync"
	"time"

	"storefront-query-engine/internal/config"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per tenant shop domain.
type Limiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	cfg      *config.RateLimitConfig

	stopCleanup chan struct{}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New builds a Limiter from the given configuration and starts its
// background cleanup goroutine, matching api-gateway's rate_limit.go.
func New(cfg *config.RateLimitConfig) *Limiter {
	l := &Limiter{
		limiters:    make(map[string]*limiterEntry),
		cfg:         cfg,
		stopCleanup: make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether shop may proceed, creating its bucket on first use.
func (l *Limiter) Allow(shop string) bool {
	if !l.cfg.Enabled {
		return true
	}
	return l.getLimiter(shop).Allow()
}

func (l *Limiter) getLimiter(shop string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[shop]
	if !ok {
		limit := rate.Limit(float64(l.cfg.RequestsPerMinute) / 60.0)
		entry = &limiterEntry{limiter: rate.NewLimiter(limit, l.cfg.Burst)}
		l.limiters[shop] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanup periodically drops buckets for tenants that haven't been seen in
// over an hour, bounding memory for long-running processes.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-time.Hour)
			for shop, entry := range l.limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(l.limiters, shop)
				}
			}
			l.mu.Unlock()
		case <-l.stopCleanup:
			return
		}
	}
}

// Close stops the background cleanup goroutine.
func (l *Limiter) Close() {
	close(l.stopCleanup)
}
