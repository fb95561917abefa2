package models

import (
	"time"

	"github.com/geo-bucket/internal/geo"
)

// DefaultBucketRadiusMeters is the radius given to every new bucket.
const DefaultBucketRadiusMeters = 1000

// GeoJSONPoint is the stored form of a coordinate ([lng, lat]).
type GeoJSONPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoJSONPoint converts p to its stored form.
func NewGeoJSONPoint(p geo.Point) GeoJSONPoint {
	return GeoJSONPoint{Type: "Point", Coordinates: p.Coordinates()}
}

// Point converts back to a geo.Point. Malformed values yield the zero point.
func (g GeoJSONPoint) Point() geo.Point {
	if len(g.Coordinates) < 2 {
		return geo.Point{}
	}
	return geo.NewPoint(g.Coordinates[0], g.Coordinates[1])
}

// GeoBucket is a named spatial cluster for one real-world place.
// Center, Cell and NormalizedName never change after creation.
type GeoBucket struct {
	ID             string       `bson:"_id" json:"id"`
	Name           string       `bson:"name" json:"name"`
	NormalizedName string       `bson:"normalized_name" json:"normalized_name"`
	Center         GeoJSONPoint `bson:"center" json:"center"`
	Cell           string       `bson:"cell" json:"cell"`
	RadiusMeters   int          `bson:"radius_meters" json:"radius_meters"`
	CreatedAt      time.Time    `bson:"created_at" json:"created_at"`
}

// NewGeoBucket builds an unsaved bucket centered on p.
func NewGeoBucket(name, normalizedName string, p geo.Point, radiusMeters int, cellPrecision uint) *GeoBucket {
	if radiusMeters <= 0 {
		radiusMeters = DefaultBucketRadiusMeters
	}
	return &GeoBucket{
		Name:           name,
		NormalizedName: normalizedName,
		Center:         NewGeoJSONPoint(p),
		Cell:           p.Cell(cellPrecision),
		RadiusMeters:   radiusMeters,
	}
}

// CenterPoint returns the bucket center.
func (b *GeoBucket) CenterPoint() geo.Point {
	return b.Center.Point()
}

// BucketAggregate summarises the properties owned by one bucket.
type BucketAggregate struct {
	BucketID       string  `bson:"_id" json:"bucket_id"`
	PropertyCount  int     `bson:"property_count" json:"property_count"`
	AvgPrice       float64 `bson:"avg_price" json:"avg_price"`
	MinPrice       float64 `bson:"min_price" json:"min_price"`
	MaxPrice       float64 `bson:"max_price" json:"max_price"`
	TotalValue     float64 `bson:"total_value" json:"total_value"`
	TotalBedrooms  int     `bson:"total_bedrooms" json:"total_bedrooms"`
	TotalBathrooms int     `bson:"total_bathrooms" json:"total_bathrooms"`
}

// Add folds one property into the aggregate.
func (a *BucketAggregate) Add(p *Property) {
	if a.PropertyCount == 0 || p.Price < a.MinPrice {
		a.MinPrice = p.Price
	}
	if a.PropertyCount == 0 || p.Price > a.MaxPrice {
		a.MaxPrice = p.Price
	}
	a.PropertyCount++
	a.TotalValue += p.Price
	a.TotalBedrooms += p.Bedrooms
	a.TotalBathrooms += p.Bathrooms
	a.AvgPrice = a.TotalValue / float64(a.PropertyCount)
}
