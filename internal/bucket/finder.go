package bucket

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/geo"
	"github.com/geo-bucket/internal/similarity"
	"github.com/geo-bucket/internal/store"
)

// Reason tells why a bucket was reported as similar.
type Reason string

const (
	ReasonNameSimilarity Reason = "name_similarity"
	ReasonProximity      Reason = "proximity"
)

// Match is one similar bucket. Name matches carry Score, proximity matches carry DistanceMeters.
type Match struct {
	Bucket         models.GeoBucket      `json:"bucket"`
	Reason         Reason                `json:"reason"`
	Score          *float64              `json:"similarity_score,omitempty"`
	DistanceMeters *float64              `json:"distance_meters,omitempty"`
	ScoreBreakdown *similarity.Breakdown `json:"score_breakdown,omitempty"`
}

func (m Match) score() float64 {
	if m.Score == nil {
		return 0
	}
	return *m.Score
}

func (m Match) distance() float64 {
	if m.DistanceMeters == nil {
		return math.Inf(1)
	}
	return *m.DistanceMeters
}

// Finder lists buckets that likely describe the same place as a given bucket.
type Finder struct {
	store  store.BucketStore
	logger *zap.Logger
	cfg    Config
}

// NewFinder creates a Finder. Zero config fields take their defaults.
func NewFinder(s store.BucketStore, cfg Config, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{store: s, logger: logger, cfg: cfg.withDefaults()}
}

// FindSimilar runs a name pass then a proximity pass over the candidate set,
// keeps the first record per bucket and ranks by score desc, distance asc.
// The query bucket is never returned.
func (f *Finder) FindSimilar(ctx context.Context, b *models.GeoBucket) ([]Match, error) {
	candidates, err := f.candidates(ctx, b)
	if err != nil {
		return nil, err
	}

	center := b.CenterPoint()
	proximity := float64(b.RadiusMeters) * f.cfg.ProximityFactor

	var matches []Match
	// 1. Name pass
	for i := range candidates {
		other := &candidates[i]
		if other.ID == b.ID {
			continue
		}
		score := similarity.Ratio(b.NormalizedName, other.NormalizedName)
		if score >= f.cfg.NameMatchThreshold {
			breakdown := similarity.Scores(b.NormalizedName, other.NormalizedName)
			matches = append(matches, Match{
				Bucket:         *other,
				Reason:         ReasonNameSimilarity,
				Score:          &score,
				ScoreBreakdown: &breakdown,
			})
		}
	}

	// 2. Proximity pass
	for i := range candidates {
		other := &candidates[i]
		if other.ID == b.ID {
			continue
		}
		d := geo.Distance(center, other.CenterPoint())
		if d <= proximity {
			matches = append(matches, Match{
				Bucket:         *other,
				Reason:         ReasonProximity,
				DistanceMeters: &d,
			})
		}
	}

	// 3. Dedupe, first record wins
	seen := make(map[string]struct{}, len(matches))
	unique := matches[:0]
	for _, m := range matches {
		if _, dup := seen[m.Bucket.ID]; dup {
			continue
		}
		seen[m.Bucket.ID] = struct{}{}
		unique = append(unique, m)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		si, sj := unique[i].score(), unique[j].score()
		if si != sj {
			return si > sj
		}
		return unique[i].distance() < unique[j].distance()
	})

	f.logger.Debug("Similar buckets found",
		zap.String("bucket_id", b.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(unique)))
	return unique, nil
}

// candidates applies the spatial pre-filter, never narrower than the proximity radius.
func (f *Finder) candidates(ctx context.Context, b *models.GeoBucket) ([]models.GeoBucket, error) {
	if f.cfg.SimilarScanRadiusMeters == 0 {
		all, _, err := f.store.Buckets(ctx, store.BucketFilter{})
		if err != nil {
			return nil, fmt.Errorf("list candidate buckets: %w", err)
		}
		return all, nil
	}

	radius := math.Max(f.cfg.SimilarScanRadiusMeters, float64(b.RadiusMeters)*f.cfg.ProximityFactor)
	nearby, err := f.store.BucketsWithin(ctx, store.BucketQuery{
		Center:       b.CenterPoint(),
		RadiusMeters: radius,
		Order:        store.OrderNewestFirst,
	})
	if err != nil {
		return nil, fmt.Errorf("query candidate buckets: %w", err)
	}
	return nearby, nil
}
