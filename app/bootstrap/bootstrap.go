// Package bootstrap builds the service graph from configuration. The HTTP
// server and the CLI share it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/config"
	"github.com/geo-bucket/app/controllers"
	"github.com/geo-bucket/app/services"
	"github.com/geo-bucket/internal/bucket"
	"github.com/geo-bucket/internal/metrics"
	"github.com/geo-bucket/internal/normalizer"
	"github.com/geo-bucket/internal/search"
	"github.com/geo-bucket/internal/stats"
	"github.com/geo-bucket/internal/store"
	"github.com/geo-bucket/routes"
)

// App holds the wired components.
type App struct {
	Config     *config.AppConfig
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Store      store.Store
	Normalizer *normalizer.Normalizer
	Resolver   *bucket.Resolver
	Finder     *bucket.Finder
	Aggregator *stats.Aggregator
	Buckets    *services.BucketService
	Properties *services.PropertyService
	Admin      *services.AdminService
	Limiter    *services.RateLimiter
	Cache      services.ReportCache

	redis   *redis.Client
	index   *search.BucketIndex
	checks  map[string]controllers.HealthCheck
	closers []func(context.Context) error
}

// New connects the configured backends and wires the services. Empty
// Mongo, Redis and Meilisearch URLs select the in-memory store, the
// in-process key lock and no search index.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		checks:   make(map[string]controllers.HealthCheck),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(a.Registry)

	// 1. Store
	if err := a.initStore(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}

	// 2. Redis, key lock and stats cache
	if err := a.initRedis(ctx); err != nil {
		a.Close(context.Background())
		return nil, err
	}
	locks := a.initKeyLock()
	a.initReportCache()

	// 3. Search index (optional, degrades to store scans)
	var indexer services.BucketIndexer
	if a.initSearchIndex(ctx) {
		indexer = a.index
	}

	// 4. Engine
	engine := cfg.Engine()
	a.Normalizer = cfg.NewNormalizer()
	a.Resolver = bucket.NewResolver(a.Store, engine, logger,
		bucket.WithKeyLock(locks),
		bucket.WithMetrics(a.Metrics),
		bucket.WithNormalizer(a.Normalizer))
	a.Finder = bucket.NewFinder(a.Store, engine, logger)
	a.Aggregator = stats.NewAggregator(a.Store, logger, a.Metrics)

	// 5. Services
	propertyOpts := []services.PropertyServiceOption{
		services.WithServiceMetrics(a.Metrics),
		services.WithPropertyNormalizer(a.Normalizer),
	}
	if indexer != nil {
		propertyOpts = append(propertyOpts, services.WithBucketIndex(indexer))
	}
	var bucketOpts []services.BucketServiceOption
	var adminOpts []services.AdminServiceOption
	if a.Cache != nil {
		bucketOpts = append(bucketOpts, services.WithReportCache(a.Cache, a.Metrics))
		propertyOpts = append(propertyOpts, services.WithStatsInvalidation(a.Cache))
		adminOpts = append(adminOpts, services.WithAdminReportCache(a.Cache))
	}
	a.Buckets = services.NewBucketService(a.Store, a.Finder, a.Aggregator, a.Normalizer, logger, bucketOpts...)
	a.Properties = services.NewPropertyService(a.Store, a.Resolver, services.PropertySearchConfig{
		SimilarityThreshold: cfg.Search.SimilarityThreshold,
		NearbyRadiusMeters:  cfg.Search.NearbyRadiusMeters,
		PriceVariance:       cfg.Search.PriceVariance,
	}, logger, propertyOpts...)
	a.Admin = services.NewAdminService(a.Store, a.Resolver, a.Normalizer, indexer, logger, adminOpts...)

	// 6. Rate limiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter, err := services.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.Clients, a.Metrics)
		if err != nil {
			a.Close(context.Background())
			return nil, err
		}
		a.Limiter = limiter
	}

	return a, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.Config.Mongo.URL == "" {
		a.Store = store.NewMemoryStore()
		a.Logger.Info("Using in-memory store")
		return nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(a.Config.Mongo.URL))
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	a.closers = append(a.closers, client.Disconnect)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	ms := store.NewMongoStore(client.Database(a.Config.Mongo.Database), a.Logger)
	if err := ms.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure mongodb indexes: %w", err)
	}
	a.Store = ms
	a.checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	a.Logger.Info("Connected to MongoDB", zap.String("database", a.Config.Mongo.Database))
	return nil
}

// initRedis connects the shared Redis client when one is configured.
func (a *App) initRedis(ctx context.Context) error {
	if a.Config.Redis.URL == "" {
		return nil
	}
	opts, err := redis.ParseURL(a.Config.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.redis = client
	a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	a.Logger.Info("Connected to Redis")
	return nil
}

func (a *App) initKeyLock() bucket.KeyLock {
	local := services.NewLocalKeyLock(a.Config.Redis.LocalLockSlots)
	if a.redis == nil {
		return local
	}
	return services.NewRedisKeyLockWithClient(a.redis, services.RedisKeyLockConfig{
		TTL:   a.Config.Redis.LockTTL,
		Wait:  a.Config.Redis.LockWait,
		Retry: a.Config.Redis.LockRetry,
	}, local, a.Metrics, a.Logger)
}

// initReportCache keeps stats reports in process, shared through Redis when available.
func (a *App) initReportCache() {
	ttl := a.Config.Stats.CacheTTL
	if ttl <= 0 {
		return
	}
	local := services.NewMemoryReportCache(a.Config.Stats.CacheSize, ttl)
	if a.redis == nil {
		a.Cache = local
		return
	}
	shared := services.NewRedisReportCache(a.redis, ttl, a.Logger)
	a.Cache = services.NewHybridReportCache(local, shared, a.Logger)
}

// initSearchIndex connects Meilisearch. Failures are logged and the service
// runs without the index.
func (a *App) initSearchIndex(ctx context.Context) bool {
	if a.Config.Meilisearch.URL == "" {
		return false
	}
	idx, err := search.NewBucketIndex(search.Config{
		Host:      a.Config.Meilisearch.URL,
		APIKey:    a.Config.Meilisearch.MasterKey,
		IndexName: a.Config.Meilisearch.Index,
		Limit:     a.Config.Meilisearch.Limit,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn("Meilisearch unavailable, location search scans the store", zap.Error(err))
		return false
	}
	if err := idx.Configure(ctx); err != nil {
		a.Logger.Warn("Failed to configure bucket index", zap.Error(err))
	}
	a.index = idx
	a.checks["meilisearch"] = idx.Healthy
	return true
}

// Controllers builds the HTTP handlers.
func (a *App) Controllers() routes.Controllers {
	return routes.Controllers{
		Buckets:    controllers.NewBucketController(a.Buckets, a.Config.Stats.DefaultLimit, a.Logger),
		Properties: controllers.NewPropertyController(a.Properties, a.Logger),
		Admin:      controllers.NewAdminController(a.Admin, a.Logger),
		Health:     controllers.NewHealthController(a.checks),
	}
}

// RouteOptions returns the middleware configuration.
func (a *App) RouteOptions() routes.Options {
	return routes.Options{
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		Gatherer:       a.Registry,
		Limiter:        a.Limiter,
		RequestTimeout: a.Config.App.RequestTimeout,
	}
}

// Router builds the gin engine with every route installed.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	routes.SetupAllRoutes(router, a.Controllers(), a.RouteOptions())
	return router
}

// Close releases backend connections in reverse order.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn("Error closing backend", zap.Error(err))
		}
	}
	a.closers = nil
}
