// ABOUTME: TTL cache wrapper around an enrichment Resolver
// ABOUTME: Repeated exports within the TTL reuse resolved fields instead of refetching

package jira

import (
	"context"
	"sync"
	"time"
)

// cached holds one resolved result and when it landed.
type cached struct {
	fields  *Fields
	fetched time.Time
}

// CachedResolver memoizes successful lookups for a bounded time. Failures
// are never cached, so the next caller retries the wrapped resolver.
// Expired entries are pruned opportunistically on write; no background
// goroutine is needed.
type CachedResolver struct {
	next Resolver
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]*cached
}

var _ Resolver = (*CachedResolver)(nil)

// NewCachedResolver wraps next with a TTL cache.
func NewCachedResolver(next Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:    next,
		ttl:     ttl,
		entries: make(map[string]*cached),
	}
}

// Resolve returns the cached fields for key while fresh, otherwise asks the
// wrapped resolver and remembers a success.
func (r *CachedResolver) Resolve(ctx context.Context, key string) (*Fields, error) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok && time.Since(e.fetched) < r.ttl {
		return e.fields, nil
	}

	f, err := r.next.Resolve(ctx, key)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.pruneLocked()
	r.entries[key] = &cached{fields: f, fetched: time.Now()}
	r.mu.Unlock()
	return f, nil
}

// pruneLocked drops expired entries. Must be called with mu held.
func (r *CachedResolver) pruneLocked() {
	now := time.Now()
	for k, e := range r.entries {
		if now.Sub(e.fetched) >= r.ttl {
			delete(r.entries, k)
		}
	}
}
