// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// CacheConfig tunes CachedProvider.
type CacheConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	// RequestsPerSecond caps outbound provider calls. Cache hits are free.
	RequestsPerSecond float64
	Burst             int
}

// DefaultCacheConfig caches results for 15 minutes and allows 2 calls/s.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:               15 * time.Minute,
		CleanupInterval:   5 * time.Minute,
		RequestsPerSecond: 2,
		Burst:             4,
	}
}

// CachedProvider memoizes query results and rate-limits misses.
//
// # Thread Safety
//
// Safe for concurrent use; go-cache and rate.Limiter are both synchronized.
type CachedProvider struct {
	inner   Provider
	cache   *cache.Cache
	limiter *rate.Limiter
}

// NewCachedProvider wraps inner. A nil inner yields a nil *CachedProvider
// so callers can keep treating "no provider" as disabled.
func NewCachedProvider(inner Provider, cfg CacheConfig) *CachedProvider {
	if inner == nil {
		return nil
	}
	defaults := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	return &CachedProvider{
		inner:   inner,
		cache:   cache.New(cfg.TTL, cfg.CleanupInterval),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

func cacheKey(query string, opts SearchOptions) string {
	return fmt.Sprintf("%d|%s|%s", opts.Limit, opts.SearchDepth, strings.ToLower(strings.TrimSpace(query)))
}

// Search implements Provider. Errors are not cached.
func (c *CachedProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	key := cacheKey(query, opts)
	if cached, found := c.cache.Get(key); found {
		slog.Debug("Web search cache hit", "query", query)
		return append([]Result(nil), cached.([]Result)...), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("web search rate limit wait: %w", err)
	}
	results, err := c.inner.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, append([]Result(nil), results...), cache.DefaultExpiration)
	return results, nil
}

// CachedQueries reports the number of live cache entries.
func (c *CachedProvider) CachedQueries() int {
	return c.cache.ItemCount()
}
