package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/geo-bucket/internal/bucket"
	"github.com/geo-bucket/internal/normalizer"
)

// AppConfig is the full service configuration.
type AppConfig struct {
	App         AppSection      `mapstructure:"app"`
	Log         LogConfig       `mapstructure:"log"`
	Mongo       MongoConfig     `mapstructure:"mongo"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Meilisearch MeiliConfig     `mapstructure:"meilisearch"`
	Bucket      BucketConfig    `mapstructure:"bucket"`
	Search      SearchConfig    `mapstructure:"search"`
	Stats       StatsConfig     `mapstructure:"stats"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// AppSection configures the HTTP server.
type AppSection struct {
	Port           string        `mapstructure:"port"`
	Env            string        `mapstructure:"env"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// MongoConfig configures the durable store. An empty URL selects the in-memory store.
type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// RedisConfig configures the distributed key lock. An empty URL keeps locks in-process.
type RedisConfig struct {
	URL            string        `mapstructure:"url"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	LockWait       time.Duration `mapstructure:"lock_wait"`
	LockRetry      time.Duration `mapstructure:"lock_retry"`
	LocalLockSlots int           `mapstructure:"local_lock_slots"`
}

// MeiliConfig configures the bucket search index. An empty URL disables it.
type MeiliConfig struct {
	URL       string `mapstructure:"url"`
	MasterKey string `mapstructure:"master_key"`
	Index     string `mapstructure:"index"`
	Limit     int    `mapstructure:"limit"`
}

// BucketConfig holds the resolver and finder tunables.
type BucketConfig struct {
	RadiusMeters            int      `mapstructure:"radius_meters"`
	FuzzyRadiusFactor       float64  `mapstructure:"fuzzy_radius_factor"`
	SimilarityThreshold     float64  `mapstructure:"similarity_threshold"`
	CellPrecision           uint     `mapstructure:"cell_precision"`
	NameMatchThreshold      float64  `mapstructure:"name_match_threshold"`
	ProximityFactor         float64  `mapstructure:"proximity_factor"`
	SimilarScanRadiusMeters float64  `mapstructure:"similar_scan_radius_meters"`
	FoldAccents             bool     `mapstructure:"fold_accents"`
	ExtraSuffixes           []string `mapstructure:"extra_suffixes"`
	ExtraStopWords          []string `mapstructure:"extra_stop_words"`
	FrequencyThreshold      float64  `mapstructure:"frequency_threshold"`
}

// SearchConfig configures free-text property search.
type SearchConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	NearbyRadiusMeters  float64 `mapstructure:"nearby_radius_meters"`
	PriceVariance       float64 `mapstructure:"price_variance"`
}

// StatsConfig configures the statistics endpoint. A zero CacheTTL disables the report cache.
type StatsConfig struct {
	DefaultLimit int           `mapstructure:"default_limit"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheSize    int           `mapstructure:"cache_size"`
}

// RateLimitConfig configures the per-client request limiter. Zero RPS disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	Clients           int     `mapstructure:"clients"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.request_timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("mongo.url", "")
	v.SetDefault("mongo.database", "geo_bucket")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.lock_ttl", "5s")
	v.SetDefault("redis.lock_wait", "3s")
	v.SetDefault("redis.lock_retry", "25ms")
	v.SetDefault("redis.local_lock_slots", 4096)
	v.SetDefault("meilisearch.url", "")
	v.SetDefault("meilisearch.master_key", "")
	v.SetDefault("meilisearch.index", "geo_buckets")
	v.SetDefault("meilisearch.limit", 50)
	v.SetDefault("bucket.radius_meters", 1000)
	v.SetDefault("bucket.fuzzy_radius_factor", bucket.DefaultFuzzyRadiusFactor)
	v.SetDefault("bucket.similarity_threshold", bucket.DefaultSimilarityThreshold)
	v.SetDefault("bucket.cell_precision", 6)
	v.SetDefault("bucket.name_match_threshold", bucket.DefaultNameMatchThreshold)
	v.SetDefault("bucket.proximity_factor", bucket.DefaultProximityFactor)
	v.SetDefault("bucket.similar_scan_radius_meters", bucket.DefaultSimilarScanRadiusMeters)
	v.SetDefault("bucket.fold_accents", false)
	v.SetDefault("bucket.extra_suffixes", []string{})
	v.SetDefault("bucket.extra_stop_words", []string{})
	v.SetDefault("bucket.frequency_threshold", normalizer.DefaultFrequencyThreshold)
	v.SetDefault("search.similarity_threshold", 0.6)
	v.SetDefault("search.nearby_radius_meters", 5000)
	v.SetDefault("search.price_variance", 0.2)
	v.SetDefault("stats.default_limit", 50)
	v.SetDefault("stats.cache_ttl", "30s")
	v.SetDefault("stats.cache_size", 64)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.clients", 10000)
}

// Load reads config/app.yaml (or ./app.yaml) and environment overrides.
// Environment keys use underscores for nesting, e.g. MONGO_URL, BUCKET_SIMILARITY_THRESHOLD.
func Load(paths ...string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("app")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in defaults without reading files or environment.
func Default() *AppConfig {
	v := viper.New()
	setDefaults(v)
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate rejects tunables outside their meaningful range.
func (c *AppConfig) Validate() error {
	switch {
	case c.Bucket.RadiusMeters <= 0:
		return fmt.Errorf("bucket.radius_meters must be positive, got %d", c.Bucket.RadiusMeters)
	case c.Bucket.SimilarityThreshold <= 0 || c.Bucket.SimilarityThreshold > 1:
		return fmt.Errorf("bucket.similarity_threshold must be in (0, 1], got %v", c.Bucket.SimilarityThreshold)
	case c.Bucket.NameMatchThreshold <= 0 || c.Bucket.NameMatchThreshold > 1:
		return fmt.Errorf("bucket.name_match_threshold must be in (0, 1], got %v", c.Bucket.NameMatchThreshold)
	case c.Bucket.CellPrecision == 0 || c.Bucket.CellPrecision > 12:
		return fmt.Errorf("bucket.cell_precision must be in [1, 12], got %d", c.Bucket.CellPrecision)
	case c.Bucket.FrequencyThreshold <= 0 || c.Bucket.FrequencyThreshold > 1:
		return fmt.Errorf("bucket.frequency_threshold must be in (0, 1], got %v", c.Bucket.FrequencyThreshold)
	case c.Search.SimilarityThreshold <= 0 || c.Search.SimilarityThreshold > 1:
		return fmt.Errorf("search.similarity_threshold must be in (0, 1], got %v", c.Search.SimilarityThreshold)
	}
	return nil
}

// Engine converts the bucket section to the resolver/finder configuration.
func (c *AppConfig) Engine() bucket.Config {
	return bucket.Config{
		RadiusMeters:            c.Bucket.RadiusMeters,
		FuzzyRadiusFactor:       c.Bucket.FuzzyRadiusFactor,
		SimilarityThreshold:     c.Bucket.SimilarityThreshold,
		CellPrecision:           c.Bucket.CellPrecision,
		NameMatchThreshold:      c.Bucket.NameMatchThreshold,
		ProximityFactor:         c.Bucket.ProximityFactor,
		SimilarScanRadiusMeters: c.Bucket.SimilarScanRadiusMeters,
	}
}

// NewNormalizer builds the location normalizer: the embedded vocabulary
// extended with the configured words, and accent folding when enabled.
func (c *AppConfig) NewNormalizer() *normalizer.Normalizer {
	vocab := normalizer.DefaultVocabulary().
		WithSuffixes(lowerAll(c.Bucket.ExtraSuffixes)...).
		WithStopWords(lowerAll(c.Bucket.ExtraStopWords)...).
		WithFrequencyThreshold(c.Bucket.FrequencyThreshold)
	return normalizer.New(
		normalizer.WithVocabulary(vocab),
		normalizer.WithAccentFolding(c.Bucket.FoldAccents))
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// NewLogger builds the service logger: development output unless app.env is production.
func (c *AppConfig) NewLogger() (*zap.Logger, error) {
	var zapCfg zap.Config
	if c.App.Env == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if c.Log.Level != "" {
		level, err := zapcore.ParseLevel(c.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zapCfg.Level.SetLevel(level)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
