package stats

import "time"

// Report is the statistics payload served by the stats endpoint.
type Report struct {
	Summary           Summary            `json:"summary"`
	EfficiencyMetrics []EfficiencyMetric `json:"efficiency_metrics"`
	CoverageMetrics   CoverageMetrics    `json:"coverage_metrics"`
	ExtremeBuckets    ExtremeBuckets     `json:"extreme_buckets"`
	Buckets           []BucketDetail     `json:"buckets"`
	TimePeriod        *string            `json:"time_period"`
	Timestamp         time.Time          `json:"timestamp"`
}

// Summary holds population and value totals.
type Summary struct {
	TotalBuckets           int                  `json:"total_buckets"`
	TotalProperties        int                  `json:"total_properties"`
	TotalValue             float64              `json:"total_value"`
	AvgPropertiesPerBucket float64              `json:"avg_properties_per_bucket"`
	AvgValuePerBucket      float64              `json:"avg_value_per_bucket"`
	PropertyDistribution   PropertyDistribution `json:"property_distribution"`
}

// PropertyDistribution partitions buckets by property count.
type PropertyDistribution struct {
	EmptyBuckets   int `json:"empty_buckets"`
	SingleProperty int `json:"single_property"`
	FewProperties  int `json:"few_properties"`
	ManyProperties int `json:"many_properties"`
}

// EfficiencyMetric counts buckets holding at least Threshold properties.
type EfficiencyMetric struct {
	Label      string  `json:"label"`
	Threshold  int     `json:"threshold"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CoverageMetrics describes the footprint of non-empty buckets.
// EstimatedCoverageAreaSqKm sums disk areas, so overlapping buckets are counted twice.
type CoverageMetrics struct {
	AvgBucketRadiusMeters     float64 `json:"avg_bucket_radius_meters"`
	EstimatedCoverageAreaSqKm float64 `json:"estimated_coverage_area_sq_km"`
	BucketsWithProperties     int     `json:"buckets_with_properties"`
}

// ExtremeBuckets points at the outliers; fields are nil when no bucket qualifies.
type ExtremeBuckets struct {
	MostPopulated  *PopulatedBucket `json:"most_populated"`
	LeastPopulated *PopulatedBucket `json:"least_populated"`
	HighestValue   *ValuedBucket    `json:"highest_value"`
}

// PopulatedBucket identifies a bucket by population.
type PopulatedBucket struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	PropertyCount int      `json:"property_count"`
	TotalValue    *float64 `json:"total_value,omitempty"`
}

// ValuedBucket identifies a bucket by total value.
type ValuedBucket struct {
	ID         string  `json:"id"`
	TotalValue float64 `json:"total_value"`
}

// BucketDetail is one row of the per-bucket table.
type BucketDetail struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	NormalizedName string        `json:"normalized_name"`
	PropertyCount  int           `json:"property_count"`
	PropertyStats  PropertyStats `json:"property_stats"`
	Center         Center        `json:"center"`
	RadiusMeters   int           `json:"radius_meters"`
	CreatedAt      time.Time     `json:"created_at"`
	Density        float64       `json:"density"`
}

// PropertyStats are the price and room totals of one bucket.
type PropertyStats struct {
	AvgPrice       float64 `json:"avg_price"`
	MinPrice       float64 `json:"min_price"`
	MaxPrice       float64 `json:"max_price"`
	TotalValue     float64 `json:"total_value"`
	TotalBedrooms  int     `json:"total_bedrooms"`
	TotalBathrooms int     `json:"total_bathrooms"`
}

// Center is a bucket center in lat/lng form.
type Center struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LimitBuckets drops the bucket table when include is false, otherwise keeps at most limit rows.
func (r *Report) LimitBuckets(include bool, limit int) {
	if !include {
		r.Buckets = []BucketDetail{}
		return
	}
	if limit >= 0 && limit < len(r.Buckets) {
		r.Buckets = r.Buckets[:limit]
	}
}
