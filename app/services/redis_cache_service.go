package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/geo-bucket/internal/stats"
)

// RedisReportCache shares reports and the generation counter between
// processes. Reports expire after ttl; superseded generations are left to expire.
type RedisReportCache struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisReportCache wraps an existing client.
func NewRedisReportCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisReportCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisReportCache{
		client: client,
		logger: logger,
		prefix: "geobucket:stats:",
		ttl:    ttl,
	}
}

func (c *RedisReportCache) generationKey() string {
	return c.prefix + "generation"
}

// Generation reads the shared generation; a missing key is generation 0.
func (c *RedisReportCache) Generation(ctx context.Context) (uint64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read stats generation: %w", err)
	}
	return gen, nil
}

// Get fetches and decodes a report.
func (c *RedisReportCache) Get(ctx context.Context, gen uint64, period string) (*stats.Report, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+"report:"+reportKey(gen, period)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached report: %w", err)
	}

	var report stats.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, false, fmt.Errorf("decode cached report: %w", err)
	}
	c.hits.Add(1)
	c.logger.Debug("Redis stats cache hit", zap.Uint64("generation", gen), zap.String("period", period))
	return &report, true, nil
}

// Set encodes and stores a report with the cache TTL.
func (c *RedisReportCache) Set(ctx context.Context, gen uint64, period string, report *stats.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+"report:"+reportKey(gen, period), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("store report: %w", err)
	}
	return nil
}

// Invalidate increments the shared generation.
func (c *RedisReportCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.generationKey()).Err(); err != nil {
		return fmt.Errorf("bump stats generation: %w", err)
	}
	return nil
}

// Stats counts stored reports with SCAN.
func (c *RedisReportCache) Stats(ctx context.Context) (*CacheStats, error) {
	var items int64
	iter := c.client.Scan(ctx, 0, c.prefix+"report:*", 100).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cached reports: %w", err)
	}

	hits, misses := c.hits.Load(), c.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: items,
	}, nil
}
