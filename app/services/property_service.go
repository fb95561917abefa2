package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/app/requests"
	"github.com/geo-bucket/helpers/utils"
	"github.com/geo-bucket/internal/bucket"
	"github.com/geo-bucket/internal/geo"
	"github.com/geo-bucket/internal/metrics"
	"github.com/geo-bucket/internal/normalizer"
	"github.com/geo-bucket/internal/similarity"
	"github.com/geo-bucket/internal/store"
)

// ErrInvalidInput marks caller mistakes; controllers map it to 400.
var ErrInvalidInput = errors.New("invalid input")

// Search types reported by SearchByLocation.
const (
	SearchTypeBucketSimilarity = "bucket_similarity"
	SearchTypeTextFallback     = "text_fallback"
)

// searchBucketLimit caps buckets considered by substring filters.
const searchBucketLimit = 50

// BucketIndexer is the bucket text index used to pre-filter property search.
type BucketIndexer interface {
	Configure(ctx context.Context) error
	IndexBuckets(ctx context.Context, buckets []models.GeoBucket) error
	IndexBucket(ctx context.Context, b *models.GeoBucket) error
	SearchBuckets(ctx context.Context, query string) ([]string, error)
}

// PropertySearchConfig holds the property search tunables.
type PropertySearchConfig struct {
	SimilarityThreshold float64
	NearbyRadiusMeters  float64
	PriceVariance       float64
}

// DefaultPropertySearchConfig returns the documented defaults.
func DefaultPropertySearchConfig() PropertySearchConfig {
	return PropertySearchConfig{
		SimilarityThreshold: 0.6,
		NearbyRadiusMeters:  5000,
		PriceVariance:       0.2,
	}
}

// CreatedProperty is a stored property together with how its bucket was resolved.
type CreatedProperty struct {
	Property models.Property
	Bucket   models.GeoBucket
	Outcome  bucket.Outcome
	Score    float64
}

// PropertyQuery filters the property list.
type PropertyQuery struct {
	Search      string
	CreatedFrom time.Time
	CreatedTo   time.Time
	Page        utils.Page
}

// Center is a lat/lng pair as rendered in responses.
type Center struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NearbyProperties is one page of properties around a point, nearest first.
type NearbyProperties struct {
	Center       Center                        `json:"center"`
	RadiusMeters float64                       `json:"radius_meters"`
	Results      []models.PropertyWithDistance `json:"results"`
	Total        int64                         `json:"total"`
}

// PriceRange is an inclusive price window.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SimilarProperties lists same-bucket properties in a price window.
type SimilarProperties struct {
	PropertyID string            `json:"property_id"`
	BucketID   string            `json:"bucket_id"`
	PriceRange PriceRange        `json:"price_range"`
	Results    []models.Property `json:"results"`
	Total      int64             `json:"total"`
}

// PropertySearchResult is the outcome of a free-text location search.
type PropertySearchResult struct {
	Query                string            `json:"query"`
	NormalizedQuery      string            `json:"normalized_query"`
	SearchType           string            `json:"search_type"`
	MatchingBucketsCount int               `json:"matching_buckets_count"`
	Results              []models.Property `json:"results"`
	Total                int64             `json:"total"`
}

// PropertyService creates and queries listings.
type PropertyService struct {
	store      store.Store
	resolver   *bucket.Resolver
	normalizer *normalizer.Normalizer
	index      BucketIndexer
	cache      ReportCache
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cfg        PropertySearchConfig
}

// PropertyServiceOption configures a PropertyService.
type PropertyServiceOption func(*PropertyService)

// WithBucketIndex pre-filters location search through idx and indexes new buckets.
func WithBucketIndex(idx BucketIndexer) PropertyServiceOption {
	return func(ps *PropertyService) { ps.index = idx }
}

// WithStatsInvalidation drops cached statistics whenever a property is created.
func WithStatsInvalidation(cache ReportCache) PropertyServiceOption {
	return func(ps *PropertyService) { ps.cache = cache }
}

// WithServiceMetrics records index failures in m.
func WithServiceMetrics(m *metrics.Metrics) PropertyServiceOption {
	return func(ps *PropertyService) { ps.metrics = m }
}

// WithPropertyNormalizer replaces the default normalizer used by location search.
func WithPropertyNormalizer(n *normalizer.Normalizer) PropertyServiceOption {
	return func(ps *PropertyService) { ps.normalizer = n }
}

// NewPropertyService creates a PropertyService. Zero config fields take their defaults.
func NewPropertyService(s store.Store, resolver *bucket.Resolver, cfg PropertySearchConfig, logger *zap.Logger, opts ...PropertyServiceOption) *PropertyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := DefaultPropertySearchConfig()
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = d.SimilarityThreshold
	}
	if cfg.NearbyRadiusMeters <= 0 {
		cfg.NearbyRadiusMeters = d.NearbyRadiusMeters
	}
	if cfg.PriceVariance < 0 {
		cfg.PriceVariance = d.PriceVariance
	}
	ps := &PropertyService{
		store:      s,
		resolver:   resolver,
		normalizer: normalizer.New(),
		logger:     logger,
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(ps)
	}
	return ps
}

// Config returns the effective search configuration.
func (ps *PropertyService) Config() PropertySearchConfig {
	return ps.cfg
}

// CreateProperty resolves the listing's bucket and stores it.
func (ps *PropertyService) CreateProperty(ctx context.Context, req requests.CreatePropertyRequest) (*CreatedProperty, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	lat, lng := *req.Lat, *req.Lng

	res, err := ps.resolver.ResolveOrCreate(ctx, req.LocationName, lat, lng)
	if err != nil {
		return nil, fmt.Errorf("resolve bucket: %w", err)
	}
	if res.Outcome == bucket.OutcomeCreated {
		ps.indexBucket(ctx, res.Bucket)
	}

	p := &models.Property{
		Title:        strings.TrimSpace(req.Title),
		LocationName: strings.TrimSpace(req.LocationName),
		Location:     models.NewGeoJSONPoint(geo.NewPoint(lng, lat)),
		Price:        req.Price,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		GeoBucketID:  res.Bucket.ID,
	}
	if err := ps.store.InsertProperty(ctx, p); err != nil {
		return nil, fmt.Errorf("insert property: %w", err)
	}
	invalidateReports(ctx, ps.cache, ps.logger)

	ps.logger.Info("property created",
		zap.String("property_id", p.ID),
		zap.String("bucket_id", res.Bucket.ID),
		zap.String("outcome", string(res.Outcome)))

	return &CreatedProperty{
		Property: *p,
		Bucket:   *res.Bucket,
		Outcome:  res.Outcome,
		Score:    res.Score,
	}, nil
}

// indexBucket mirrors a new bucket into the text index. Failures only degrade search.
func (ps *PropertyService) indexBucket(ctx context.Context, b *models.GeoBucket) {
	if ps.index == nil {
		return
	}
	if err := ps.index.IndexBucket(ctx, b); err != nil {
		ps.metrics.IncSearchIndexFailure()
		ps.logger.Warn("failed to index bucket", zap.String("bucket_id", b.ID), zap.Error(err))
	}
}

// GetProperty returns one property.
func (ps *PropertyService) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	return ps.store.Property(ctx, id)
}

// ListProperties returns one page of properties, newest first.
// A search value selects properties whose bucket name contains it; when no
// bucket matches it falls back to the listing's own location name.
func (ps *PropertyService) ListProperties(ctx context.Context, q PropertyQuery) ([]models.Property, int64, error) {
	if !q.CreatedFrom.IsZero() && !q.CreatedTo.IsZero() && q.CreatedTo.Before(q.CreatedFrom) {
		return nil, 0, fmt.Errorf("%w: created_to is before created_from", ErrInvalidInput)
	}
	f := store.PropertyFilter{
		CreatedFrom: q.CreatedFrom,
		CreatedTo:   q.CreatedTo,
		Offset:      q.Page.Offset(),
		Limit:       q.Page.Size,
	}

	if value := strings.ToLower(strings.TrimSpace(q.Search)); value != "" {
		ids, err := ps.bucketIDsContaining(ctx, value)
		if err != nil {
			return nil, 0, err
		}
		if len(ids) > 0 {
			f.BucketIDs = ids
		} else {
			f.LocationContains = value
		}
	}

	props, total, err := ps.store.Properties(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list properties: %w", err)
	}
	return nonNil(props), total, nil
}

// Nearby returns properties within radius meters of (lat, lng), nearest first.
// A non-positive radius uses the configured default.
func (ps *PropertyService) Nearby(ctx context.Context, lat, lng, radius float64, page utils.Page) (*NearbyProperties, error) {
	center := geo.NewPoint(lng, lat)
	if !center.Valid() {
		return nil, fmt.Errorf("%w: lat must be in [-90, 90] and lng in [-180, 180]", ErrInvalidInput)
	}
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		radius = ps.cfg.NearbyRadiusMeters
	}

	results, total, err := ps.store.PropertiesNear(ctx, center, radius, page.Offset(), page.Size)
	if err != nil {
		return nil, fmt.Errorf("nearby properties: %w", err)
	}
	return &NearbyProperties{
		Center:       Center{Lat: lat, Lng: lng},
		RadiusMeters: radius,
		Results:      nonNil(results),
		Total:        total,
	}, nil
}

// SimilarProperties returns other properties in the same bucket whose price is
// within ±variance of the property's price, cheapest first.
func (ps *PropertyService) SimilarProperties(ctx context.Context, id string, variance float64, page utils.Page) (*SimilarProperties, error) {
	if variance < 0 || math.IsNaN(variance) || math.IsInf(variance, 0) {
		return nil, fmt.Errorf("%w: price_variance must be a non-negative number", ErrInvalidInput)
	}
	p, err := ps.store.Property(ctx, id)
	if err != nil {
		return nil, err
	}

	window := PriceRange{Min: p.Price * (1 - variance), Max: p.Price * (1 + variance)}
	results, total, err := ps.store.Properties(ctx, store.PropertyFilter{
		BucketIDs:   []string{p.GeoBucketID},
		ExcludeID:   p.ID,
		MinPrice:    &window.Min,
		MaxPrice:    &window.Max,
		SortByPrice: true,
		Offset:      page.Offset(),
		Limit:       page.Size,
	})
	if err != nil {
		return nil, fmt.Errorf("similar properties: %w", err)
	}
	return &SimilarProperties{
		PropertyID: p.ID,
		BucketID:   p.GeoBucketID,
		PriceRange: window,
		Results:    nonNil(results),
		Total:      total,
	}, nil
}

// SearchByLocation finds properties for a free-text location.
//
// Buckets whose normalized or raw name scores at least SimilarityThreshold
// against the query select the properties. When none does, the first token of
// the normalized query is matched as a substring against bucket names and,
// failing that, against property location names.
func (ps *PropertyService) SearchByLocation(ctx context.Context, location string, page utils.Page) (*PropertySearchResult, error) {
	raw := strings.TrimSpace(location)
	if raw == "" {
		return nil, fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	normalized := ps.normalizer.Normalize(raw, nil)

	matching, err := ps.matchingBuckets(ctx, raw, normalized)
	if err != nil {
		return nil, err
	}

	result := &PropertySearchResult{
		Query:           raw,
		NormalizedQuery: normalized,
		SearchType:      SearchTypeBucketSimilarity,
	}
	f := store.PropertyFilter{Offset: page.Offset(), Limit: page.Size}

	if len(matching) > 0 {
		f.BucketIDs = matching
	} else {
		result.SearchType = SearchTypeTextFallback
		token := firstToken(normalized, raw)
		ids, err := ps.bucketIDsContaining(ctx, token)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			f.BucketIDs = ids
		} else {
			f.LocationContains = token
		}
		matching = ids
	}
	result.MatchingBucketsCount = len(matching)

	props, total, err := ps.store.Properties(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search properties: %w", err)
	}
	result.Results = nonNil(props)
	result.Total = total
	return result, nil
}

// matchingBuckets returns ids of buckets scoring at least the similarity
// threshold. Index hits are tried first; a full scan runs when the index is
// absent, failing, or yields no match.
func (ps *PropertyService) matchingBuckets(ctx context.Context, raw, normalized string) ([]string, error) {
	lowered := strings.ToLower(raw)

	if ps.index != nil {
		ids, err := ps.index.SearchBuckets(ctx, normalized)
		switch {
		case err != nil:
			ps.metrics.IncSearchIndexFailure()
			ps.logger.Warn("bucket index search failed, scanning store", zap.Error(err))
		case len(ids) > 0:
			candidates, _, err := ps.store.Buckets(ctx, store.BucketFilter{IDs: ids})
			if err != nil {
				return nil, fmt.Errorf("load indexed buckets: %w", err)
			}
			if matched := ps.filterSimilar(candidates, normalized, lowered); len(matched) > 0 {
				return matched, nil
			}
		}
	}

	all, _, err := ps.store.Buckets(ctx, store.BucketFilter{})
	if err != nil {
		return nil, fmt.Errorf("scan buckets: %w", err)
	}
	return ps.filterSimilar(all, normalized, lowered), nil
}

func (ps *PropertyService) filterSimilar(buckets []models.GeoBucket, normalized, lowered string) []string {
	var ids []string
	for i := range buckets {
		b := &buckets[i]
		if similarity.Ratio(b.NormalizedName, normalized) >= ps.cfg.SimilarityThreshold ||
			similarity.Ratio(strings.ToLower(b.Name), lowered) >= ps.cfg.SimilarityThreshold {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func (ps *PropertyService) bucketIDsContaining(ctx context.Context, value string) ([]string, error) {
	buckets, err := ps.store.SearchBucketNames(ctx, value, searchBucketLimit)
	if err != nil {
		return nil, fmt.Errorf("search bucket names: %w", err)
	}
	ids := make([]string, len(buckets))
	for i := range buckets {
		ids[i] = buckets[i].ID
	}
	return ids, nil
}

func firstToken(normalized, raw string) string {
	for _, s := range []string{normalized, strings.ToLower(raw)} {
		fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) > 0 {
			return fields[0]
		}
	}
	return strings.ToLower(raw)
}
