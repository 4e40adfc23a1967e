package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mvrgate/internal/mvr"
	"mvrgate/internal/platform/redis"
)

const (
	aggregateKeyPrefix = "mvr:aggregate:"
	aggregateTTL       = 5 * time.Minute
)

// Cache is a read-through Redis cache for subject aggregates. All cache
// errors degrade to a miss; retrieval correctness never depends on Redis.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached aggregate for license, or nil on miss.
func (c *Cache) Get(ctx context.Context, license string) *mvr.Aggregate {
	if !c.enabled() {
		return nil
	}
	raw, err := c.client.Get(ctx, aggregateKeyPrefix+license).Bytes()
	if err != nil {
		return nil
	}
	var agg mvr.Aggregate
	if err := json.Unmarshal(raw, &agg); err != nil {
		c.logger.Warn("discarding undecodable cached aggregate", "error", err)
		c.Invalidate(ctx, license)
		return nil
	}
	return &agg
}

// Set stores the aggregate with a short TTL.
func (c *Cache) Set(ctx context.Context, license string, agg *mvr.Aggregate) {
	if !c.enabled() || agg == nil {
		return
	}
	raw, err := json.Marshal(agg)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, aggregateKeyPrefix+license, raw, aggregateTTL).Err(); err != nil {
		c.logger.Warn("failed to cache aggregate", "error", err)
	}
}

// Invalidate drops the cached aggregate after an accepted ingestion.
func (c *Cache) Invalidate(ctx context.Context, license string) {
	if !c.enabled() {
		return
	}
	if err := c.client.Del(ctx, aggregateKeyPrefix+license).Err(); err != nil {
		c.logger.Warn("failed to invalidate cached aggregate", "error", err)
	}
}
