package util

import (
	"context"
	"sync"
	"time"
)

// TokenCache holds a single short-lived value, typically a session token or nonce
type TokenCache struct {
	mu      sync.Mutex
	value   string
	expires time.Time
	maxAge  time.Duration
	now     func() time.Time
}

// NewTokenCache creates a cache whose entries live maxAge unless Set says otherwise
func NewTokenCache(maxAge time.Duration) *TokenCache {
	return &TokenCache{maxAge: maxAge, now: time.Now}
}

// Get returns the cached value if present and not expired
func (c *TokenCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked()
}

func (c *TokenCache) getLocked() (string, bool) {
	if c.value == "" || !c.now().Before(c.expires) {
		return "", false
	}
	return c.value, true
}

// Set stores value for ttl, or the default max age when ttl <= 0
func (c *TokenCache) Set(value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(value, ttl)
}

func (c *TokenCache) setLocked(value string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.maxAge
	}
	c.value = value
	c.expires = c.now().Add(ttl)
}

// Invalidate drops the cached value
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = ""
	c.expires = time.Time{}
}

// GetOrFetch returns the cached value or calls fetch to refresh it. Concurrent
// callers wait for a single fetch.
func (c *TokenCache) GetOrFetch(ctx context.Context, fetch func(ctx context.Context) (string, time.Duration, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.getLocked(); ok {
		return v, nil
	}

	value, ttl, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	c.setLocked(value, ttl)
	return value, nil
}
