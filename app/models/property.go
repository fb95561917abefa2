package models

import (
	"time"

	"github.com/geo-bucket/internal/geo"
)

// Property is a real-estate listing. GeoBucketID is assigned once, at creation.
type Property struct {
	ID           string       `bson:"_id" json:"id"`
	Title        string       `bson:"title" json:"title"`
	LocationName string       `bson:"location_name" json:"location_name"`
	Location     GeoJSONPoint `bson:"location" json:"location"`
	Price        float64      `bson:"price" json:"price"`
	Bedrooms     int          `bson:"bedrooms" json:"bedrooms"`
	Bathrooms    int          `bson:"bathrooms" json:"bathrooms"`
	GeoBucketID  string       `bson:"geo_bucket_id" json:"geo_bucket"`
	CreatedAt    time.Time    `bson:"created_at" json:"created_at"`
}

// LocationPoint returns the listing coordinate.
func (p *Property) LocationPoint() geo.Point {
	return p.Location.Point()
}

// PropertyWithDistance pairs a property with its distance from a query point.
type PropertyWithDistance struct {
	Property       `bson:",inline"`
	DistanceMeters float64 `bson:"distance" json:"distance_meters"`
}
