package middleware

import (
	"context"
	"sync"
	"time"
)

const (
	activeCacheTTL     = time.Minute
	negativeCacheTTL   = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = 60 * time.Second
)

type cachedUser struct {
	active    bool
	fetchedAt time.Time
}

// ttl returns the appropriate TTL for this entry.
func (cu cachedUser) ttl() time.Duration {
	if cu.active {
		return activeCacheTTL
	}
	return negativeCacheTTL
}

// CachedUserChecker wraps an ActiveUserChecker with a bounded in-memory cache
// so every request does not hit the database.
type CachedUserChecker struct {
	inner ActiveUserChecker
	mu    sync.RWMutex
	cache map[string]cachedUser
	now   func() time.Time
}

// NewCachedUserChecker creates a caching wrapper around inner. ctx controls
// the lifetime of the eviction goroutine.
func NewCachedUserChecker(ctx context.Context, inner ActiveUserChecker) *CachedUserChecker {
	c := &CachedUserChecker{
		inner: inner,
		cache: make(map[string]cachedUser),
		now:   time.Now,
	}
	go c.evictLoop(ctx)
	return c
}

func (c *CachedUserChecker) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			c.evictExpired()
			c.mu.Unlock()
		}
	}
}

// evictExpired must be called with mu held.
func (c *CachedUserChecker) evictExpired() {
	now := c.now()
	for k, v := range c.cache {
		if now.Sub(v.fetchedAt) >= v.ttl() {
			delete(c.cache, k)
		}
	}
}

// IsActiveUser returns a cached answer or delegates to the inner checker.
// Errors are never cached.
func (c *CachedUserChecker) IsActiveUser(ctx context.Context, userID string) (bool, error) {
	c.mu.RLock()
	entry, ok := c.cache[userID]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.fetchedAt) < entry.ttl() {
		return entry.active, nil
	}

	active, err := c.inner.IsActiveUser(ctx, userID)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if len(c.cache) >= maxCacheEntries {
		c.evictExpired()
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}
	c.cache[userID] = cachedUser{active: active, fetchedAt: c.now()}
	c.mu.Unlock()

	return active, nil
}

// Invalidate drops the cached answer for userID.
func (c *CachedUserChecker) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.cache, userID)
	c.mu.Unlock()
}
