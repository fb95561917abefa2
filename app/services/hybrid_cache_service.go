package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/geo-bucket/internal/stats"
)

// HybridReportCache puts an in-process LRU (L1) in front of a shared cache
// (L2). The generation always comes from L2, so a write in any process
// invalidates every L1.
type HybridReportCache struct {
	local  *MemoryReportCache
	shared ReportCache
	logger *zap.Logger
}

// NewHybridReportCache combines local and shared.
func NewHybridReportCache(local *MemoryReportCache, shared ReportCache, logger *zap.Logger) *HybridReportCache {
	return &HybridReportCache{
		local:  local,
		shared: shared,
		logger: logger,
	}
}

// Generation returns the shared generation.
func (h *HybridReportCache) Generation(ctx context.Context) (uint64, error) {
	return h.shared.Generation(ctx)
}

// Get tries L1, then L2. An L2 hit is copied into L1.
func (h *HybridReportCache) Get(ctx context.Context, gen uint64, period string) (*stats.Report, bool, error) {
	if r, ok, _ := h.local.Get(ctx, gen, period); ok {
		h.logger.Debug("L1 stats cache hit", zap.String("period", period))
		return r, true, nil
	}

	r, ok, err := h.shared.Get(ctx, gen, period)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = h.local.Set(ctx, gen, period, r)
	h.logger.Debug("L2 stats cache hit", zap.String("period", period))
	return r, true, nil
}

// Set stores the report in both levels. L1 keeps it even when L2 fails.
func (h *HybridReportCache) Set(ctx context.Context, gen uint64, period string, report *stats.Report) error {
	_ = h.local.Set(ctx, gen, period, report)
	return h.shared.Set(ctx, gen, period, report)
}

// Invalidate bumps the shared generation and clears L1.
func (h *HybridReportCache) Invalidate(ctx context.Context) error {
	_ = h.local.Invalidate(ctx)
	return h.shared.Invalidate(ctx)
}

// Stats combines both levels: hits from either, misses counted at L2, items
// counted at L2.
func (h *HybridReportCache) Stats(ctx context.Context) (*CacheStats, error) {
	local, _ := h.local.Stats(ctx)
	shared, err := h.shared.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("shared cache stats: %w", err)
	}

	hits := local.TotalHits + shared.TotalHits
	return &CacheStats{
		HitRate:    hitRate(hits, shared.TotalMiss),
		TotalHits:  hits,
		TotalMiss:  shared.TotalMiss,
		TotalItems: shared.TotalItems,
	}, nil
}
