package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/geo-bucket/internal/stats"
)

// MemoryReportCache keeps reports in a bounded in-process LRU with a TTL.
type MemoryReportCache struct {
	reports *expirable.LRU[string, *stats.Report]
	gen     atomic.Uint64
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemoryReportCache holds up to size reports for ttl each.
func NewMemoryReportCache(size int, ttl time.Duration) *MemoryReportCache {
	if size <= 0 {
		size = 64
	}
	return &MemoryReportCache{
		reports: expirable.NewLRU[string, *stats.Report](size, nil, ttl),
	}
}

// Generation returns the local generation.
func (c *MemoryReportCache) Generation(context.Context) (uint64, error) {
	return c.gen.Load(), nil
}

// Get looks up a report.
func (c *MemoryReportCache) Get(_ context.Context, gen uint64, period string) (*stats.Report, bool, error) {
	r, ok := c.reports.Get(reportKey(gen, period))
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return r, true, nil
}

// Set stores a report.
func (c *MemoryReportCache) Set(_ context.Context, gen uint64, period string, report *stats.Report) error {
	c.reports.Add(reportKey(gen, period), report)
	return nil
}

// Invalidate bumps the generation and drops every stored report.
func (c *MemoryReportCache) Invalidate(context.Context) error {
	c.gen.Add(1)
	c.reports.Purge()
	return nil
}

// Stats reports hit counts and the number of live entries.
func (c *MemoryReportCache) Stats(context.Context) (*CacheStats, error) {
	hits, misses := c.hits.Load(), c.misses.Load()
	return &CacheStats{
		HitRate:    hitRate(hits, misses),
		TotalHits:  hits,
		TotalMiss:  misses,
		TotalItems: int64(c.reports.Len()),
	}, nil
}
