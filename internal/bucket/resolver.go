package bucket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/geo"
	"github.com/geo-bucket/internal/metrics"
	"github.com/geo-bucket/internal/normalizer"
	"github.com/geo-bucket/internal/similarity"
	"github.com/geo-bucket/internal/store"
)

// Outcome tells how a resolution was satisfied.
type Outcome string

const (
	OutcomeExact    Outcome = metrics.OutcomeExact
	OutcomeFuzzy    Outcome = metrics.OutcomeFuzzy
	OutcomeCreated  Outcome = metrics.OutcomeCreated
	OutcomeConflict Outcome = metrics.OutcomeConflict
)

// Resolution is the result of ResolveOrCreate.
type Resolution struct {
	Bucket  *models.GeoBucket `json:"bucket"`
	Outcome Outcome           `json:"outcome"`
	// Score is the name similarity that selected the bucket (1 for exact, created and conflict).
	Score float64 `json:"score"`
}

// KeyLock serialises resolutions for one (normalized name, cell) key.
type KeyLock interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Resolver maps (location name, point) to a geo-bucket, creating one when no
// existing bucket matches.
type Resolver struct {
	store      store.BucketStore
	normalizer *normalizer.Normalizer
	locks      KeyLock
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cfg        Config
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithKeyLock serialises resolutions per key. Without it the resolver relies
// on the store's uniqueness constraint alone.
func WithKeyLock(l KeyLock) ResolverOption {
	return func(r *Resolver) { r.locks = l }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalizer.Normalizer) ResolverOption {
	return func(r *Resolver) { r.normalizer = n }
}

// NewResolver creates a Resolver. Zero config fields take their defaults.
func NewResolver(s store.BucketStore, cfg Config, logger *zap.Logger, opts ...ResolverOption) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		store:      s,
		normalizer: normalizer.New(),
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// ResolveOrCreate returns the bucket for locationName at (lat, lng).
//
// Steps run in order under the key lock:
//  1. exact pass: same normalized name within RadiusMeters, newest first
//  2. fuzzy pass: any name within the fuzzy radius, first ratio >= SimilarityThreshold
//  3. create; a unique-key conflict returns the bucket that won the race
//
// The error return is reserved for storage failures.
func (r *Resolver) ResolveOrCreate(ctx context.Context, locationName string, lat, lng float64) (Resolution, error) {
	start := time.Now()

	normalized := r.normalizer.Normalize(locationName, nil)
	point := geo.NewPoint(lng, lat)
	cell := point.Cell(r.cfg.CellPrecision)

	if r.locks != nil {
		release, err := r.locks.Acquire(ctx, LockKey(normalized, cell))
		if err != nil {
			return Resolution{}, fmt.Errorf("acquire bucket lock: %w", err)
		}
		defer release()
	}

	res, err := r.resolve(ctx, locationName, normalized, point, cell)
	if err != nil {
		return Resolution{}, err
	}

	r.metrics.ObserveResolution(string(res.Outcome), time.Since(start).Seconds())
	r.logger.Debug("Bucket resolved",
		zap.String("location", locationName),
		zap.String("normalized", normalized),
		zap.String("cell", cell),
		zap.String("outcome", string(res.Outcome)),
		zap.String("bucket_id", res.Bucket.ID),
		zap.Float64("score", res.Score))
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, name, normalized string, point geo.Point, cell string) (Resolution, error) {
	// 1. Exact pass
	exact, err := r.store.BucketsWithin(ctx, store.BucketQuery{
		Center:         point,
		RadiusMeters:   float64(r.cfg.RadiusMeters),
		NormalizedName: normalized,
		MatchName:      true,
		Order:          store.OrderNewestFirst,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("exact pass: %w", err)
	}
	if len(exact) > 0 {
		return Resolution{Bucket: &exact[0], Outcome: OutcomeExact, Score: 1}, nil
	}

	// 2. Fuzzy pass
	nearby, err := r.store.BucketsWithin(ctx, store.BucketQuery{
		Center:       point,
		RadiusMeters: r.cfg.FuzzyRadiusMeters(),
		Order:        store.OrderNewestFirst,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("fuzzy pass: %w", err)
	}
	for i := range nearby {
		score := similarity.Ratio(nearby[i].NormalizedName, normalized)
		r.logger.Debug("Fuzzy candidate",
			zap.String("candidate", nearby[i].NormalizedName),
			zap.String("normalized", normalized),
			zap.Float64("score", score))
		if score >= r.cfg.SimilarityThreshold {
			return Resolution{Bucket: &nearby[i], Outcome: OutcomeFuzzy, Score: score}, nil
		}
	}

	// 3. Create
	b := models.NewGeoBucket(name, normalized, point, r.cfg.RadiusMeters, r.cfg.CellPrecision)
	b.Cell = cell
	err = r.store.InsertBucket(ctx, b)
	if err == nil {
		return Resolution{Bucket: b, Outcome: OutcomeCreated, Score: 1}, nil
	}
	if !errors.Is(err, store.ErrDuplicateBucket) {
		return Resolution{}, fmt.Errorf("create bucket: %w", err)
	}

	winner, err := r.store.BucketByKey(ctx, normalized, cell)
	if err != nil {
		return Resolution{}, fmt.Errorf("fetch conflicting bucket: %w", err)
	}
	r.logger.Info("Bucket creation conflict resolved to existing bucket",
		zap.String("normalized", normalized),
		zap.String("cell", cell),
		zap.String("bucket_id", winner.ID))
	return Resolution{Bucket: winner, Outcome: OutcomeConflict, Score: 1}, nil
}

// LockKey is the key lock and uniqueness key for a normalized name in a cell.
func LockKey(normalizedName, cell string) string {
	return "geobucket:" + cell + ":" + normalizedName
}
