package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geo-bucket/internal/bucket"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 10*time.Second, cfg.App.RequestTimeout)
	assert.Equal(t, 1000, cfg.Bucket.RadiusMeters)
	assert.InDelta(t, 0.8, cfg.Bucket.SimilarityThreshold, 1e-9)
	assert.InDelta(t, 1.5, cfg.Bucket.FuzzyRadiusFactor, 1e-9)
	assert.EqualValues(t, 6, cfg.Bucket.CellPrecision)
	assert.False(t, cfg.Bucket.FoldAccents)
	assert.Empty(t, cfg.Bucket.ExtraSuffixes)
	assert.InDelta(t, 0.3, cfg.Bucket.FrequencyThreshold, 1e-9)
	assert.InDelta(t, 0.6, cfg.Search.SimilarityThreshold, 1e-9)
	assert.InDelta(t, 5000, cfg.Search.NearbyRadiusMeters, 1e-9)
	assert.InDelta(t, 0.2, cfg.Search.PriceVariance, 1e-9)
	assert.Equal(t, 50, cfg.Stats.DefaultLimit)
	assert.Equal(t, 30*time.Second, cfg.Stats.CacheTTL)
	assert.Equal(t, 64, cfg.Stats.CacheSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL)
	assert.Empty(t, cfg.Mongo.URL)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, bucket.DefaultConfig(), cfg.Engine())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
bucket:
  similarity_threshold: 0.3
  radius_meters: 750
mongo:
  url: mongodb://db:27017
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.InDelta(t, 0.3, cfg.Bucket.SimilarityThreshold, 1e-9)
	assert.Equal(t, 750, cfg.Bucket.RadiusMeters)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URL)
	assert.Equal(t, "geo_bucket", cfg.Mongo.Database)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BUCKET_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.InDelta(t, 0.9, cfg.Bucket.SimilarityThreshold, 1e-9)
	assert.Equal(t, "redis://cache:6379", cfg.Redis.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"radius", func(c *AppConfig) { c.Bucket.RadiusMeters = 0 }},
		{"threshold above one", func(c *AppConfig) { c.Bucket.SimilarityThreshold = 1.2 }},
		{"threshold zero", func(c *AppConfig) { c.Bucket.SimilarityThreshold = 0 }},
		{"name threshold", func(c *AppConfig) { c.Bucket.NameMatchThreshold = -1 }},
		{"cell precision", func(c *AppConfig) { c.Bucket.CellPrecision = 13 }},
		{"search threshold", func(c *AppConfig) { c.Search.SimilarityThreshold = 0 }},
		{"frequency threshold", func(c *AppConfig) { c.Bucket.FrequencyThreshold = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewNormalizer(t *testing.T) {
	dir := t.TempDir()
	yaml := `
bucket:
  extra_suffixes: [GRA]
  extra_stop_words: [lagos]
  frequency_threshold: 0.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"GRA"}, cfg.Bucket.ExtraSuffixes)

	n := cfg.NewNormalizer()
	assert.Equal(t, "ikeja", n.Normalize("Ikeja, GRA", nil))
	assert.Equal(t, "yaba", n.Normalize("Yaba Lagos", nil))
	assert.InDelta(t, 0.5, n.Vocabulary().FrequencyThreshold(), 1e-9)
	assert.Equal(t, "ìkòyí", n.Normalize("Ìkòyí", nil))

	cfg.Bucket.FoldAccents = true
	assert.Equal(t, "ikoyi", cfg.NewNormalizer().Normalize("Ìkòyí", nil))

	plain := Default().NewNormalizer()
	assert.Equal(t, "ikeja, gra", plain.Normalize("Ikeja, GRA", nil))
	assert.InDelta(t, 0.3, plain.Vocabulary().FrequencyThreshold(), 1e-9)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.Log.Level = "loud"
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}
