// Package cache memoizes available-years probes. Each probe spawns an
// interpreter and parses every CSV source, so results are kept per
// (catalog version, dataset) for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/orsg/prisme/internal/pkg/logger"
)

// YearsCache stores year lists. Implementations treat backend failures as
// misses.
type YearsCache interface {
	Get(ctx context.Context, version uint64, datasetID string) ([]int, bool)
	Set(ctx context.Context, version uint64, datasetID string, years []int)
}

func key(version uint64, datasetID string) string {
	return fmt.Sprintf("prisme:years:v%d:%s", version, datasetID)
}

// =============================================================================
// In-memory
// =============================================================================

// MemoryCache is a bounded LRU with per-entry expiry.
type MemoryCache struct {
	lru *lru.LRU[string, []int]
}

// NewMemoryCache holds at most size entries for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryCache{lru: lru.NewLRU[string, []int](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, version uint64, datasetID string) ([]int, bool) {
	years, ok := c.lru.Get(key(version, datasetID))
	if !ok {
		return nil, false
	}
	return clone(years), true
}

func (c *MemoryCache) Set(_ context.Context, version uint64, datasetID string, years []int) {
	c.lru.Add(key(version, datasetID), clone(years))
}

// Purge drops every entry. Keys of an older catalog version can never hit
// again, so the server purges on reload instead of waiting for expiry.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// =============================================================================
// Redis
// =============================================================================

// RedisCache shares year lists between server instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, version uint64, datasetID string) ([]int, bool) {
	raw, err := c.client.Get(ctx, key(version, datasetID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("years cache read failed", "dataset", datasetID, "error", err)
		}
		return nil, false
	}
	var years []int
	if err := json.Unmarshal(raw, &years); err != nil {
		logger.Warn("years cache entry corrupt", "dataset", datasetID, "error", err)
		return nil, false
	}
	if years == nil {
		years = []int{}
	}
	return years, true
}

func (c *RedisCache) Set(ctx context.Context, version uint64, datasetID string, years []int) {
	if years == nil {
		years = []int{}
	}
	data, err := json.Marshal(years)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(version, datasetID), data, c.ttl).Err(); err != nil {
		logger.Warn("years cache write failed", "dataset", datasetID, "error", err)
	}
}

func clone(years []int) []int {
	out := make([]int, len(years))
	copy(out, years)
	return out
}
