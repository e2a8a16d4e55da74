// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package auth

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VA7DBI/skillswap/metrics"
)

const (
	DefaultCapacity     = 50
	DefaultTTL          = 30 * time.Minute
	DefaultSafetyMargin = 5 * time.Minute
)

type CacheOptions struct {
	Capacity     int
	DefaultTTL   time.Duration
	SafetyMargin time.Duration // subtracted from a token's exp when caching it
	Now          func() time.Time
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Size             int    `json:"size"`
	Capacity         int    `json:"capacity"`
	Hits             uint64 `json:"hits"`
	Misses           uint64 `json:"misses"`
	HitRate          string `json:"hitRate"`
	LRUEvictions     uint64 `json:"lruEvictions"`
	ExpiredEvictions uint64 `json:"expiredEvictions"`
}

type cacheEntry struct {
	token        string
	value        Claims
	expiresAt    time.Time
	lastAccessed time.Time
}

// TokenCache maps raw tokens to their decoded claims. It holds at most
// Capacity entries, evicting the least recently used one when full, and never
// returns an entry past its deadline. Safe for concurrent use.
type TokenCache struct {
	mu     sync.Mutex
	cap    int
	ttl    time.Duration
	margin time.Duration
	now    func() time.Time
	items  map[string]*list.Element
	lru    *list.List // front is most recently used
	hits   uint64
	misses uint64
	lruEvs uint64
	expEvs uint64
}

func NewTokenCache(opts CacheOptions) *TokenCache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.SafetyMargin < 0 {
		opts.SafetyMargin = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenCache{
		cap:    opts.Capacity,
		ttl:    opts.DefaultTTL,
		margin: opts.SafetyMargin,
		now:    opts.Now,
		items:  make(map[string]*list.Element, opts.Capacity),
		lru:    list.New(),
	}
}

// Get returns the cached claims for token. Expired entries are removed and
// reported as a miss.
func (c *TokenCache) Get(token string) (Claims, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	el, ok := c.items[token]
	if !ok {
		c.miss()
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if now.After(e.expiresAt) {
		c.removeExpired(el)
		c.miss()
		return nil, false
	}
	e.lastAccessed = now
	c.lru.MoveToFront(el)
	c.hits++
	metrics.TokenCacheLookups.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores claims under token for ttl, or for the default TTL when ttl is
// not positive.
func (c *TokenCache) Set(token string, claims Claims, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := &cacheEntry{
		token:        token,
		value:        claims,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
	}
	if el, ok := c.items[token]; ok {
		el.Value = e
		c.lru.MoveToFront(el)
		return
	}
	if c.lru.Len() >= c.cap {
		c.sweepLocked(now)
	}
	for c.lru.Len() >= c.cap {
		back := c.lru.Back()
		delete(c.items, back.Value.(*cacheEntry).token)
		c.lru.Remove(back)
		c.lruEvs++
		metrics.TokenCacheEvictions.WithLabelValues("lru").Inc()
	}
	c.items[token] = c.lru.PushFront(e)
	metrics.TokenCacheEntries.Set(float64(c.lru.Len()))
}

// Has reports whether a live entry exists for token without touching its
// recency.
func (c *TokenCache) Has(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[token]
	if !ok {
		return false
	}
	if c.now().After(el.Value.(*cacheEntry).expiresAt) {
		c.removeExpired(el)
		return false
	}
	return true
}

// Decode returns the claims for token from the cache, decoding and caching
// them on a miss. The entry lives until the token's exp minus the safety
// margin, capped at the default TTL. Decode failures are not cached.
func (c *TokenCache) Decode(token string) (Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}
	if claims, ok := c.Get(token); ok {
		return claims, nil
	}
	claims, err := Decode(token)
	if err != nil {
		return nil, err
	}
	ttl := c.ttl
	if exp, ok := claims.ExpiresAt(); ok {
		if until := exp.Sub(c.now()) - c.margin; until < ttl {
			ttl = until
		}
	}
	if ttl > 0 {
		c.Set(token, claims, ttl)
	}
	return claims, nil
}

// Clear drops every entry.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.cap)
	c.lru.Init()
	metrics.TokenCacheEntries.Set(0)
}

// Sweep removes expired entries and returns how many were dropped.
func (c *TokenCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Run sweeps the cache every interval until ctx is done.
func (c *TokenCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *TokenCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := "0%"
	if total := c.hits + c.misses; total > 0 {
		rate = fmt.Sprintf("%.2f%%", float64(c.hits)/float64(total)*100)
	}
	return CacheStats{
		Size:             c.lru.Len(),
		Capacity:         c.cap,
		Hits:             c.hits,
		Misses:           c.misses,
		HitRate:          rate,
		LRUEvictions:     c.lruEvs,
		ExpiredEvictions: c.expEvs,
	}
}

func (c *TokenCache) sweepLocked(now time.Time) int {
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if now.After(el.Value.(*cacheEntry).expiresAt) {
			c.removeExpired(el)
			removed++
		}
		el = next
	}
	return removed
}

func (c *TokenCache) removeExpired(el *list.Element) {
	delete(c.items, el.Value.(*cacheEntry).token)
	c.lru.Remove(el)
	c.expEvs++
	metrics.TokenCacheEvictions.WithLabelValues("expired").Inc()
	metrics.TokenCacheEntries.Set(float64(c.lru.Len()))
}

func (c *TokenCache) miss() {
	c.misses++
	metrics.TokenCacheLookups.WithLabelValues("miss").Inc()
}
