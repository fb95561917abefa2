package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/bucket"
	"github.com/geo-bucket/internal/metrics"
	"github.com/geo-bucket/internal/stats"
	"github.com/geo-bucket/internal/store"
)

// fakeIndex records indexing calls and answers searches with fixed ids.
type fakeIndex struct {
	mu          sync.Mutex
	configured  bool
	indexed     []string
	searchIDs   []string
	searchErr   error
	indexErr    error
	lastQueries []string
}

func (f *fakeIndex) Configure(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configured = true
	return nil
}

func (f *fakeIndex) IndexBuckets(_ context.Context, buckets []models.GeoBucket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexErr != nil {
		return f.indexErr
	}
	for i := range buckets {
		f.indexed = append(f.indexed, buckets[i].ID)
	}
	return nil
}

func (f *fakeIndex) IndexBucket(ctx context.Context, b *models.GeoBucket) error {
	return f.IndexBuckets(ctx, []models.GeoBucket{*b})
}

func (f *fakeIndex) SearchBuckets(_ context.Context, q string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQueries = append(f.lastQueries, q)
	return f.searchIDs, f.searchErr
}

var errIndexDown = errors.New("index unavailable")

type testEnv struct {
	store    *store.MemoryStore
	resolver *bucket.Resolver
	buckets  *BucketService
	props    *PropertyService
	admin    *AdminService
	metrics  *metrics.Metrics
}

// newTestEnv wires the services over a memory store. index may be nil.
func newTestEnv(t *testing.T, index BucketIndexer, m *metrics.Metrics) *testEnv {
	t.Helper()
	s := store.NewMemoryStore()
	logger := zap.NewNop()
	cfg := bucket.DefaultConfig()

	resolver := bucket.NewResolver(s, cfg, logger, bucket.WithKeyLock(NewLocalKeyLock(64)), bucket.WithMetrics(m))
	finder := bucket.NewFinder(s, cfg, logger)
	aggregator := stats.NewAggregator(s, logger, m)

	opts := []PropertyServiceOption{WithServiceMetrics(m)}
	if index != nil {
		opts = append(opts, WithBucketIndex(index))
	}
	return &testEnv{
		store:    s,
		resolver: resolver,
		buckets:  NewBucketService(s, finder, aggregator, nil, logger),
		props:    NewPropertyService(s, resolver, DefaultPropertySearchConfig(), logger, opts...),
		admin:    NewAdminService(s, resolver, nil, index, logger),
		metrics:  m,
	}
}

// seeded returns an environment loaded with the sample data set.
func seeded(t *testing.T, index BucketIndexer, m *metrics.Metrics) *testEnv {
	t.Helper()
	env := newTestEnv(t, index, m)
	res, err := env.admin.Seed(context.Background())
	require.NoError(t, err)
	require.False(t, res.Skipped)
	return env
}

func (env *testEnv) bucketNamed(t *testing.T, name string) models.GeoBucket {
	t.Helper()
	all, _, err := env.store.Buckets(context.Background(), store.BucketFilter{})
	require.NoError(t, err)
	for _, b := range all {
		if b.Name == name {
			return b
		}
	}
	t.Fatalf("bucket %q not seeded", name)
	return models.GeoBucket{}
}

func (env *testEnv) propertyTitled(t *testing.T, title string) models.Property {
	t.Helper()
	all, _, err := env.store.Properties(context.Background(), store.PropertyFilter{})
	require.NoError(t, err)
	for _, p := range all {
		if p.Title == title {
			return p
		}
	}
	t.Fatalf("property %q not seeded", title)
	return models.Property{}
}

func ptr(v float64) *float64 { return &v }
