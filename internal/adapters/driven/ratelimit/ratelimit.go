// Package ratelimit provides a per-key token bucket limiter for calls to
// the reasoning service.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

// Ensure Limiter implements the interface.
var _ driven.RateLimiter = (*Limiter)(nil)

// Default limits. These stay well below hosted provider quotas.
const (
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 4
	DefaultIdleTTL           = 30 * time.Minute
	DefaultBackoff           = 60 * time.Second
)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate per key.
	RequestsPerSecond float64
	// Burst is the maximum burst size per key.
	Burst int
	// IdleTTL is how long an unused key is kept before eviction.
	IdleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	retryAt  time.Time
	lastUsed time.Time
}

// Limiter keeps one token bucket per key (typically a project ID).
// Buckets idle for longer than IdleTTL are evicted lazily.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	now     func() time.Time
}

// New creates a limiter. Zero config fields take the defaults.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Wait blocks until a request for key may proceed or ctx is done.
// It also respects any backoff set by RecordRateLimitError.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	b, retryAt := l.get(key)

	if wait := retryAt.Sub(l.now()); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return b.Wait(ctx)
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	b, retryAt := l.get(key)
	if l.now().Before(retryAt) {
		return false
	}
	return b.Allow()
}

// Reset forgets all state for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// RecordRateLimitError pauses key for retryAfter, or DefaultBackoff when
// retryAfter is not positive. Call it when a provider answers 429.
func (l *Limiter) RecordRateLimitError(key string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = DefaultBackoff
	}
	l.get(key)

	l.mu.Lock()
	if b, ok := l.buckets[key]; ok {
		b.retryAt = l.now().Add(retryAfter)
	}
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// get returns the bucket for key, creating it if needed, and evicts idle keys.
func (l *Limiter) get(key string) (*rate.Limiter, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, b := range l.buckets {
		if k != key && now.Sub(b.lastUsed) > l.cfg.IdleTTL {
			delete(l.buckets, k)
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastUsed = now
	return b.limiter, b.retryAt
}
