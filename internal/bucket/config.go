// Package bucket resolves free-text locations to geo-buckets and finds
// buckets that likely describe the same place.
package bucket

import (
	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/internal/geo"
)

// Engine defaults.
const (
	DefaultFuzzyRadiusFactor       = 1.5
	DefaultSimilarityThreshold     = 0.8
	DefaultNameMatchThreshold      = 0.7
	DefaultProximityFactor         = 2.0
	DefaultSimilarScanRadiusMeters = 50000
)

// Config holds the resolver and finder tunables.
type Config struct {
	// RadiusMeters is given to new buckets and bounds the exact pass.
	RadiusMeters int
	// FuzzyRadiusFactor scales RadiusMeters for the fuzzy pass.
	FuzzyRadiusFactor float64
	// SimilarityThreshold is the minimum ratio accepted by the fuzzy pass.
	SimilarityThreshold float64
	// CellPrecision is the geohash length of the uniqueness cell.
	CellPrecision uint
	// NameMatchThreshold is the minimum ratio for a name_similarity match.
	NameMatchThreshold float64
	// ProximityFactor scales a bucket's radius for proximity matches.
	ProximityFactor float64
	// SimilarScanRadiusMeters bounds the finder's candidate scan. 0 scans every bucket.
	SimilarScanRadiusMeters float64
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		RadiusMeters:            models.DefaultBucketRadiusMeters,
		FuzzyRadiusFactor:       DefaultFuzzyRadiusFactor,
		SimilarityThreshold:     DefaultSimilarityThreshold,
		CellPrecision:           geo.DefaultCellPrecision,
		NameMatchThreshold:      DefaultNameMatchThreshold,
		ProximityFactor:         DefaultProximityFactor,
		SimilarScanRadiusMeters: DefaultSimilarScanRadiusMeters,
	}
}

// withDefaults fills zero fields. A zero SimilarScanRadiusMeters is meaningful and kept.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = d.RadiusMeters
	}
	if c.FuzzyRadiusFactor <= 0 {
		c.FuzzyRadiusFactor = d.FuzzyRadiusFactor
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	if c.CellPrecision == 0 {
		c.CellPrecision = d.CellPrecision
	}
	if c.NameMatchThreshold <= 0 {
		c.NameMatchThreshold = d.NameMatchThreshold
	}
	if c.ProximityFactor <= 0 {
		c.ProximityFactor = d.ProximityFactor
	}
	if c.SimilarScanRadiusMeters < 0 {
		c.SimilarScanRadiusMeters = 0
	}
	return c
}

// FuzzyRadiusMeters returns the fuzzy pass radius.
func (c Config) FuzzyRadiusMeters() float64 {
	return float64(c.RadiusMeters) * c.FuzzyRadiusFactor
}
