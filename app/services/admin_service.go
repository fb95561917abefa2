package services

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/bucket"
	"github.com/geo-bucket/internal/geo"
	"github.com/geo-bucket/internal/normalizer"
	"github.com/geo-bucket/internal/store"
)

// IndexBuilder is implemented by stores that manage their own indexes.
type IndexBuilder interface {
	EnsureIndexes(ctx context.Context) error
}

// SeedResult summarises a seed run.
type SeedResult struct {
	Skipped          bool  `json:"skipped"`
	BucketsCreated   int   `json:"buckets_created"`
	PropertiesAdded  int   `json:"properties_added"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// IndexBuildResult summarises an index build.
type IndexBuildResult struct {
	StoreIndexes     bool  `json:"store_indexes"`
	SearchIndex      bool  `json:"search_index"`
	BucketsIndexed   int   `json:"buckets_indexed"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// SystemStats describes the running service.
type SystemStats struct {
	Uptime        string                 `json:"uptime"`
	MemoryUsage   map[string]interface{} `json:"memory_usage"`
	Goroutines    int                    `json:"goroutines"`
	DatabaseStats DatabaseStats          `json:"database_stats"`
	SearchIndex   bool                   `json:"search_index"`
	StatsCache    *CacheStats            `json:"stats_cache,omitempty"`
}

// DatabaseStats counts stored records.
type DatabaseStats struct {
	GeoBuckets int64 `json:"geo_buckets"`
	Properties int64 `json:"properties"`
}

// AdminService runs maintenance operations.
type AdminService struct {
	store      store.Store
	resolver   *bucket.Resolver
	normalizer *normalizer.Normalizer
	index      BucketIndexer
	cache      ReportCache
	logger     *zap.Logger
	startTime  time.Time
	now        func() time.Time
}

// AdminServiceOption configures an AdminService.
type AdminServiceOption func(*AdminService)

// WithAdminReportCache invalidates cache after writes and reports its counters.
func WithAdminReportCache(cache ReportCache) AdminServiceOption {
	return func(as *AdminService) { as.cache = cache }
}

// NewAdminService creates an AdminService. index may be nil.
func NewAdminService(s store.Store, resolver *bucket.Resolver, n *normalizer.Normalizer, index BucketIndexer, logger *zap.Logger, opts ...AdminServiceOption) *AdminService {
	if n == nil {
		n = normalizer.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	as := &AdminService{
		store:      s,
		resolver:   resolver,
		normalizer: n,
		index:      index,
		logger:     logger,
		startTime:  time.Now(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(as)
	}
	return as
}

// Seed loads the sample Lagos data set. It does nothing when buckets already exist.
func (as *AdminService) Seed(ctx context.Context) (*SeedResult, error) {
	start := time.Now()

	_, existing, err := as.store.Buckets(ctx, store.BucketFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("count buckets: %w", err)
	}
	if existing > 0 {
		as.logger.Info("seed skipped, store is not empty", zap.Int64("buckets", existing))
		return &SeedResult{Skipped: true}, nil
	}

	cfg := as.resolver.Config()
	now := as.now()
	byName := make(map[string]*models.GeoBucket, len(seedBuckets))
	created := make([]models.GeoBucket, 0, len(seedBuckets))

	for _, sb := range seedBuckets {
		point := geo.NewPoint(sb.Lng, sb.Lat)
		b := models.NewGeoBucket(sb.Name, as.normalizer.Normalize(sb.Name, nil), point, cfg.RadiusMeters, cfg.CellPrecision)
		b.CreatedAt = now.AddDate(0, 0, -sb.AgeDays)

		err := as.store.InsertBucket(ctx, b)
		if errors.Is(err, store.ErrDuplicateBucket) {
			b, err = as.store.BucketByKey(ctx, b.NormalizedName, b.Cell)
		}
		if err != nil {
			return nil, fmt.Errorf("seed bucket %q: %w", sb.Name, err)
		}
		byName[sb.Name] = b
		created = append(created, *b)
	}

	for _, sp := range seedProperties {
		owner, ok := byName[sp.Bucket]
		if !ok {
			return nil, fmt.Errorf("seed property %q: unknown bucket %q", sp.Title, sp.Bucket)
		}
		p := &models.Property{
			Title:        sp.Title,
			LocationName: sp.LocationName,
			Location:     models.NewGeoJSONPoint(geo.NewPoint(sp.Lng, sp.Lat)),
			Price:        sp.Price,
			Bedrooms:     sp.Bedrooms,
			Bathrooms:    sp.Bathrooms,
			GeoBucketID:  owner.ID,
			CreatedAt:    now.AddDate(0, 0, -sp.AgeDays),
		}
		if err := as.store.InsertProperty(ctx, p); err != nil {
			return nil, fmt.Errorf("seed property %q: %w", sp.Title, err)
		}
	}

	if as.index != nil {
		if err := as.index.IndexBuckets(ctx, created); err != nil {
			as.logger.Warn("failed to index seeded buckets", zap.Error(err))
		}
	}
	invalidateReports(ctx, as.cache, as.logger)

	result := &SeedResult{
		BucketsCreated:   len(created),
		PropertiesAdded:  len(seedProperties),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	as.logger.Info("seed completed",
		zap.Int("buckets", result.BucketsCreated),
		zap.Int("properties", result.PropertiesAdded))
	return result, nil
}

// BuildIndexes creates store indexes and rebuilds the bucket search index.
func (as *AdminService) BuildIndexes(ctx context.Context) (*IndexBuildResult, error) {
	start := time.Now()
	result := &IndexBuildResult{}

	if ib, ok := as.store.(IndexBuilder); ok {
		if err := ib.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure store indexes: %w", err)
		}
		result.StoreIndexes = true
	}

	if as.index != nil {
		if err := as.index.Configure(ctx); err != nil {
			return nil, fmt.Errorf("configure search index: %w", err)
		}
		buckets, _, err := as.store.Buckets(ctx, store.BucketFilter{})
		if err != nil {
			return nil, fmt.Errorf("load buckets: %w", err)
		}
		if err := as.index.IndexBuckets(ctx, buckets); err != nil {
			return nil, fmt.Errorf("index buckets: %w", err)
		}
		result.SearchIndex = true
		result.BucketsIndexed = len(buckets)
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	as.logger.Info("indexes built",
		zap.Bool("store", result.StoreIndexes),
		zap.Int("buckets_indexed", result.BucketsIndexed))
	return result, nil
}

// DeleteBucket removes a bucket that owns no properties.
func (as *AdminService) DeleteBucket(ctx context.Context, id string) error {
	if err := as.store.DeleteBucket(ctx, id); err != nil {
		return err
	}
	invalidateReports(ctx, as.cache, as.logger)
	as.logger.Info("bucket deleted", zap.String("bucket_id", id))
	return nil
}

// Resolve runs the bucket resolver directly.
func (as *AdminService) Resolve(ctx context.Context, locationName string, lat, lng float64) (bucket.Resolution, error) {
	if !geo.NewPoint(lng, lat).Valid() {
		return bucket.Resolution{}, fmt.Errorf("%w: lat must be in [-90, 90] and lng in [-180, 180]", ErrInvalidInput)
	}
	res, err := as.resolver.ResolveOrCreate(ctx, locationName, lat, lng)
	if err != nil {
		return bucket.Resolution{}, err
	}
	if res.Outcome == bucket.OutcomeCreated {
		invalidateReports(ctx, as.cache, as.logger)
		if as.index != nil {
			if err := as.index.IndexBucket(ctx, res.Bucket); err != nil {
				as.logger.Warn("failed to index bucket", zap.String("bucket_id", res.Bucket.ID), zap.Error(err))
			}
		}
	}
	return res, nil
}

// SystemStats reports record counts and process information.
func (as *AdminService) SystemStats(ctx context.Context) (*SystemStats, error) {
	_, buckets, err := as.store.Buckets(ctx, store.BucketFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("count buckets: %w", err)
	}
	_, properties, err := as.store.Properties(ctx, store.PropertyFilter{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("count properties: %w", err)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var cacheStats *CacheStats
	if as.cache != nil {
		if cacheStats, err = as.cache.Stats(ctx); err != nil {
			as.logger.Warn("failed to read stats cache counters", zap.Error(err))
		}
	}

	return &SystemStats{
		Uptime: time.Since(as.startTime).Round(time.Second).String(),
		MemoryUsage: map[string]interface{}{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"num_gc":         m.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
		DatabaseStats: DatabaseStats{
			GeoBuckets: buckets,
			Properties: properties,
		},
		SearchIndex: as.index != nil,
		StatsCache:  cacheStats,
	}, nil
}
