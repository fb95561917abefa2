package services

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/geo-bucket/internal/stats"
)

// CacheStats summarises cache effectiveness.
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

// ReportCache stores statistics reports by time period. Entries are scoped to
// a generation: Invalidate starts a new generation, so reports computed
// before a write are never served after it.
type ReportCache interface {
	// Generation returns the current generation.
	Generation(ctx context.Context) (uint64, error)

	// Get returns the report cached for period in generation gen.
	Get(ctx context.Context, gen uint64, period string) (*stats.Report, bool, error)

	// Set stores a report computed while gen was current.
	Set(ctx context.Context, gen uint64, period string, report *stats.Report) error

	// Invalidate starts a new generation.
	Invalidate(ctx context.Context) error

	// Stats reports hit counts and the number of stored reports.
	Stats(ctx context.Context) (*CacheStats, error)
}

func reportKey(gen uint64, period string) string {
	return strconv.FormatUint(gen, 10) + ":" + period
}

func hitRate(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// invalidateReports drops cached reports after a write. A failure leaves
// stale reports until their TTL runs out.
func invalidateReports(ctx context.Context, cache ReportCache, logger *zap.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx); err != nil {
		logger.Warn("failed to invalidate stats cache", zap.Error(err))
	}
}
