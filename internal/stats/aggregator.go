// Package stats computes the geo-bucket statistics report.
package stats

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/geo"
	"github.com/geo-bucket/internal/metrics"
	"github.com/geo-bucket/internal/store"
)

// DetailLimit caps the per-bucket table.
const DetailLimit = 50

// ErrInvalidTimePeriod is returned for a time period not of the form "<N>d".
var ErrInvalidTimePeriod = errors.New("time_period must look like 7d, 30d or 90d")

type threshold struct {
	min   int
	label string
}

var efficiencyThresholds = []threshold{
	{1, "Used Buckets"},
	{5, "Well-Used Buckets"},
	{10, "Highly Active Buckets"},
}

// maxPeriodDays is the longest window a time.Duration can hold.
const maxPeriodDays = int(math.MaxInt64 / int64(24*time.Hour))

// ParseTimePeriod parses "<N>d" with N > 0. The empty string means no filter.
func ParseTimePeriod(period string) (time.Duration, error) {
	if period == "" {
		return 0, nil
	}
	digits, ok := strings.CutSuffix(strings.TrimSpace(period), "d")
	if !ok {
		return 0, fmt.Errorf("%q: %w", period, ErrInvalidTimePeriod)
	}
	days, err := strconv.Atoi(digits)
	if err != nil || days <= 0 || days > maxPeriodDays {
		return 0, fmt.Errorf("%q: %w", period, ErrInvalidTimePeriod)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// Aggregator computes statistics from the bucket store. It takes no locks and
// tolerates concurrent writes; the report is not a snapshot.
type Aggregator struct {
	store   store.BucketStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(s store.BucketStore, logger *zap.Logger, m *metrics.Metrics) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		store:   s,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type bucketRow struct {
	bucket models.GeoBucket
	agg    models.BucketAggregate
}

// Compute builds the report for buckets created within timePeriod ("" for all).
func (a *Aggregator) Compute(ctx context.Context, timePeriod string) (*Report, error) {
	start := time.Now()
	window, err := ParseTimePeriod(timePeriod)
	if err != nil {
		return nil, err
	}

	now := a.now()
	filter := store.BucketFilter{}
	if window > 0 {
		filter.CreatedSince = now.Add(-window)
	}

	// 1. Load buckets and aggregates concurrently
	var (
		buckets    []models.GeoBucket
		aggregates map[string]models.BucketAggregate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buckets, _, err = a.store.Buckets(gctx, filter)
		if err != nil {
			return fmt.Errorf("load buckets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		aggregates, err = a.store.Aggregates(gctx, nil)
		if err != nil {
			return fmt.Errorf("load bucket aggregates: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 2. Order by property count, ties keep newest-first store order
	rows := make([]bucketRow, len(buckets))
	for i, b := range buckets {
		rows[i] = bucketRow{bucket: b, agg: aggregates[b.ID]}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].agg.PropertyCount > rows[j].agg.PropertyCount
	})

	report := buildReport(rows)
	if timePeriod != "" {
		report.TimePeriod = &timePeriod
	}
	report.Timestamp = now

	a.metrics.ObserveStats(time.Since(start).Seconds())
	a.logger.Debug("Statistics computed",
		zap.String("time_period", timePeriod),
		zap.Int("buckets", report.Summary.TotalBuckets),
		zap.Int("properties", report.Summary.TotalProperties))
	return report, nil
}

func buildReport(rows []bucketRow) *Report {
	r := &Report{
		EfficiencyMetrics: make([]EfficiencyMetric, 0, len(efficiencyThresholds)),
		Buckets:           []BucketDetail{},
	}

	totalBuckets := len(rows)
	var (
		totalProperties int
		totalValue      float64
		nonEmpty        int
		radiusSum       float64
		coverage        float64
	)
	dist := &r.Summary.PropertyDistribution
	for _, row := range rows {
		n := row.agg.PropertyCount
		totalProperties += n
		totalValue += row.agg.TotalValue

		switch {
		case n == 0:
			dist.EmptyBuckets++
		case n == 1:
			dist.SingleProperty++
		case n <= 5:
			dist.FewProperties++
		default:
			dist.ManyProperties++
		}

		if n > 0 {
			nonEmpty++
			radiusSum += float64(row.bucket.RadiusMeters)
			coverage += geo.AreaKm2(float64(row.bucket.RadiusMeters))
		}
	}

	r.Summary.TotalBuckets = totalBuckets
	r.Summary.TotalProperties = totalProperties
	r.Summary.TotalValue = round(totalValue, 2)
	r.Summary.AvgPropertiesPerBucket = round(ratio(float64(totalProperties), float64(totalBuckets)), 2)
	r.Summary.AvgValuePerBucket = round(ratio(totalValue, float64(totalBuckets)), 2)

	for _, th := range efficiencyThresholds {
		count := 0
		for _, row := range rows {
			if row.agg.PropertyCount >= th.min {
				count++
			}
		}
		r.EfficiencyMetrics = append(r.EfficiencyMetrics, EfficiencyMetric{
			Label:      th.label,
			Threshold:  th.min,
			Count:      count,
			Percentage: round(ratio(float64(count), float64(totalBuckets))*100, 1),
		})
	}

	r.CoverageMetrics = CoverageMetrics{
		AvgBucketRadiusMeters:     round(ratio(radiusSum, float64(nonEmpty)), 2),
		EstimatedCoverageAreaSqKm: round(coverage, 2),
		BucketsWithProperties:     nonEmpty,
	}

	r.ExtremeBuckets = extremes(rows)

	for i, row := range rows {
		if i == DetailLimit {
			break
		}
		r.Buckets = append(r.Buckets, detail(row))
	}
	return r
}

// extremes expects rows sorted by property count descending.
func extremes(rows []bucketRow) ExtremeBuckets {
	var out ExtremeBuckets
	if len(rows) == 0 {
		return out
	}

	first := rows[0]
	total := first.agg.TotalValue
	out.MostPopulated = &PopulatedBucket{
		ID:            first.bucket.ID,
		Name:          first.bucket.Name,
		PropertyCount: first.agg.PropertyCount,
		TotalValue:    &total,
	}

	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].agg.PropertyCount > 0 {
			out.LeastPopulated = &PopulatedBucket{
				ID:            rows[i].bucket.ID,
				Name:          rows[i].bucket.Name,
				PropertyCount: rows[i].agg.PropertyCount,
			}
			break
		}
	}

	best := 0
	for i := 1; i < len(rows); i++ {
		if rows[i].agg.TotalValue > rows[best].agg.TotalValue {
			best = i
		}
	}
	out.HighestValue = &ValuedBucket{
		ID:         rows[best].bucket.ID,
		TotalValue: rows[best].agg.TotalValue,
	}
	return out
}

func detail(row bucketRow) BucketDetail {
	c := row.bucket.CenterPoint()
	density := 0.0
	if row.bucket.RadiusMeters > 0 {
		density = float64(row.agg.PropertyCount) / geo.AreaKm2(float64(row.bucket.RadiusMeters))
	}
	return BucketDetail{
		ID:             row.bucket.ID,
		Name:           row.bucket.Name,
		NormalizedName: row.bucket.NormalizedName,
		PropertyCount:  row.agg.PropertyCount,
		PropertyStats: PropertyStats{
			AvgPrice:       row.agg.AvgPrice,
			MinPrice:       row.agg.MinPrice,
			MaxPrice:       row.agg.MaxPrice,
			TotalValue:     row.agg.TotalValue,
			TotalBedrooms:  row.agg.TotalBedrooms,
			TotalBathrooms: row.agg.TotalBathrooms,
		},
		Center:       Center{Lat: c.Lat, Lng: c.Lng},
		RadiusMeters: row.bucket.RadiusMeters,
		CreatedAt:    row.bucket.CreatedAt,
		Density:      density,
	}
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
