package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/helpers/utils"
	"github.com/geo-bucket/internal/bucket"
	"github.com/geo-bucket/internal/metrics"
	"github.com/geo-bucket/internal/normalizer"
	"github.com/geo-bucket/internal/stats"
	"github.com/geo-bucket/internal/store"
)

// BucketSummary is a bucket with its property count.
type BucketSummary struct {
	models.GeoBucket
	EWKT          string `json:"center_ewkt"`
	PropertyCount int    `json:"property_count"`
}

// BucketDetail is a bucket with every property it owns.
type BucketDetail struct {
	BucketSummary
	Properties []models.Property `json:"properties"`
}

// BucketProperties is one page of a bucket's properties.
type BucketProperties struct {
	BucketID   string            `json:"bucket_id"`
	BucketName string            `json:"bucket_name"`
	Results    []models.Property `json:"results"`
	Total      int64             `json:"total"`
}

// SimilarBuckets lists the buckets likely describing the same place as Bucket.
type SimilarBuckets struct {
	Bucket  models.GeoBucket `json:"bucket"`
	Similar []bucket.Match   `json:"similar_buckets"`
	Count   int              `json:"count"`
}

// NormalizeResult is the normalizer debug view.
type NormalizeResult struct {
	Input      string `json:"input"`
	Cleaned    string `json:"cleaned"`
	Normalized string `json:"normalized"`
	WithCorpus bool   `json:"with_corpus"`
	CorpusSize int    `json:"corpus_size"`
}

// BucketService serves the geo-bucket read surface.
type BucketService struct {
	store      store.Store
	finder     *bucket.Finder
	aggregator *stats.Aggregator
	normalizer *normalizer.Normalizer
	cache      ReportCache
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// BucketServiceOption configures a BucketService.
type BucketServiceOption func(*BucketService)

// WithReportCache serves statistics reports from cache, counting lookups in m.
func WithReportCache(cache ReportCache, m *metrics.Metrics) BucketServiceOption {
	return func(bs *BucketService) {
		bs.cache = cache
		bs.metrics = m
	}
}

// NewBucketService creates a BucketService.
func NewBucketService(s store.Store, finder *bucket.Finder, aggregator *stats.Aggregator, n *normalizer.Normalizer, logger *zap.Logger, opts ...BucketServiceOption) *BucketService {
	if n == nil {
		n = normalizer.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	bs := &BucketService{
		store:      s,
		finder:     finder,
		aggregator: aggregator,
		normalizer: n,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(bs)
	}
	return bs
}

// ListBuckets returns one page of buckets, newest first, with property counts.
func (bs *BucketService) ListBuckets(ctx context.Context, page utils.Page) ([]BucketSummary, int64, error) {
	buckets, total, err := bs.store.Buckets(ctx, store.BucketFilter{
		Offset: page.Offset(),
		Limit:  page.Size,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list buckets: %w", err)
	}
	if len(buckets) == 0 {
		return []BucketSummary{}, total, nil
	}

	ids := make([]string, len(buckets))
	for i := range buckets {
		ids[i] = buckets[i].ID
	}
	aggs, err := bs.store.Aggregates(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("count bucket properties: %w", err)
	}

	out := make([]BucketSummary, len(buckets))
	for i := range buckets {
		out[i] = summarize(buckets[i], aggs[buckets[i].ID].PropertyCount)
	}
	return out, total, nil
}

// GetBucket returns the bucket with all of its properties.
func (bs *BucketService) GetBucket(ctx context.Context, id string) (*BucketDetail, error) {
	b, err := bs.store.Bucket(ctx, id)
	if err != nil {
		return nil, err
	}
	props, total, err := bs.store.Properties(ctx, store.PropertyFilter{BucketIDs: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("load bucket properties: %w", err)
	}
	return &BucketDetail{
		BucketSummary: summarize(*b, int(total)),
		Properties:    nonNil(props),
	}, nil
}

// BucketProperties returns one page of a bucket's properties, newest first.
func (bs *BucketService) BucketProperties(ctx context.Context, id string, page utils.Page) (*BucketProperties, error) {
	b, err := bs.store.Bucket(ctx, id)
	if err != nil {
		return nil, err
	}
	props, total, err := bs.store.Properties(ctx, store.PropertyFilter{
		BucketIDs: []string{id},
		Offset:    page.Offset(),
		Limit:     page.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("load bucket properties: %w", err)
	}
	return &BucketProperties{
		BucketID:   b.ID,
		BucketName: b.Name,
		Results:    nonNil(props),
		Total:      total,
	}, nil
}

// SimilarBuckets runs the similar-bucket finder for id.
func (bs *BucketService) SimilarBuckets(ctx context.Context, id string) (*SimilarBuckets, error) {
	b, err := bs.store.Bucket(ctx, id)
	if err != nil {
		return nil, err
	}
	matches, err := bs.finder.FindSimilar(ctx, b)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []bucket.Match{}
	}
	return &SimilarBuckets{Bucket: *b, Similar: matches, Count: len(matches)}, nil
}

// Stats computes the statistics report and trims its bucket table. With a
// report cache the full report is cached per time period and trimmed per call.
func (bs *BucketService) Stats(ctx context.Context, timePeriod string, includeBuckets bool, limit int) (*stats.Report, error) {
	report, err := bs.report(ctx, timePeriod)
	if err != nil {
		return nil, err
	}
	trimmed := *report
	trimmed.LimitBuckets(includeBuckets, limit)
	return &trimmed, nil
}

func (bs *BucketService) report(ctx context.Context, timePeriod string) (*stats.Report, error) {
	if bs.cache == nil {
		return bs.aggregator.Compute(ctx, timePeriod)
	}
	if _, err := stats.ParseTimePeriod(timePeriod); err != nil {
		return nil, err
	}

	gen, err := bs.cache.Generation(ctx)
	if err != nil {
		bs.logger.Warn("stats cache unavailable", zap.Error(err))
		return bs.aggregator.Compute(ctx, timePeriod)
	}
	cached, ok, err := bs.cache.Get(ctx, gen, timePeriod)
	if err != nil {
		bs.logger.Warn("stats cache lookup failed", zap.Error(err))
	}
	bs.metrics.ObserveStatsCache(ok)
	if ok {
		return cached, nil
	}

	report, err := bs.aggregator.Compute(ctx, timePeriod)
	if err != nil {
		return nil, err
	}
	if err := bs.cache.Set(ctx, gen, timePeriod, report); err != nil {
		bs.logger.Warn("failed to cache stats report", zap.Error(err))
	}
	return report, nil
}

// Normalize shows how raw is normalized, optionally against a corpus built
// from every stored bucket name.
func (bs *BucketService) Normalize(ctx context.Context, raw string, withCorpus bool) (*NormalizeResult, error) {
	var corpus *normalizer.Corpus
	if withCorpus {
		buckets, _, err := bs.store.Buckets(ctx, store.BucketFilter{})
		if err != nil {
			return nil, fmt.Errorf("load corpus: %w", err)
		}
		names := make([]string, len(buckets))
		for i := range buckets {
			names[i] = buckets[i].Name
		}
		corpus = bs.normalizer.NewCorpus(names)
	}
	return &NormalizeResult{
		Input:      raw,
		Cleaned:    bs.normalizer.Clean(raw),
		Normalized: bs.normalizer.Normalize(raw, corpus),
		WithCorpus: withCorpus,
		CorpusSize: corpus.Size(),
	}, nil
}

func summarize(b models.GeoBucket, count int) BucketSummary {
	return BucketSummary{
		GeoBucket:     b,
		EWKT:          b.CenterPoint().EWKT(),
		PropertyCount: count,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
