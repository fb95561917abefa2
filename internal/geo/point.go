// Package geo holds the small amount of spherical geometry the bucket engine needs.
package geo

import (
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// EarthRadiusMeters is the mean Earth radius used for every distance in the service.
const EarthRadiusMeters = 6371008.8

// SRID of all stored coordinates (WGS 84).
const SRID = 4326

// DefaultCellPrecision is the geohash length used for bucket cells (~1.2km x 0.6km).
const DefaultCellPrecision = 6

// Point is a WGS 84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint builds a point from longitude/latitude order, matching GeoJSON.
func NewPoint(lng, lat float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// Valid reports whether the point lies within WGS 84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Coordinates returns [lng, lat].
func (p Point) Coordinates() []float64 {
	return []float64{p.Lng, p.Lat}
}

// Cell returns the geohash cell of p with the given precision.
func (p Point) Cell(precision uint) string {
	if precision == 0 {
		precision = DefaultCellPrecision
	}
	return geohash.EncodeWithPrecision(p.Lat, p.Lng, precision)
}

// EWKT renders p as "SRID=4326;POINT (lng lat)".
func (p Point) EWKT() string {
	s, err := wkt.Marshal(geom.NewPointFlat(geom.XY, p.Coordinates()))
	if err != nil {
		return fmt.Sprintf("SRID=%d;POINT (%g %g)", SRID, p.Lng, p.Lat)
	}
	return fmt.Sprintf("SRID=%d;%s", SRID, s)
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// AngularRadius converts meters to radians on the service sphere.
func AngularRadius(meters float64) float64 {
	return meters / EarthRadiusMeters
}

// Bounds is a lat/lng box.
type Bounds struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// BoundsAround returns a box that contains every point within radius meters of p.
// Boxes touching a pole or the antimeridian widen to the full longitude range.
func BoundsAround(p Point, radius float64) Bounds {
	dLat := radius / EarthRadiusMeters * 180 / math.Pi
	minLat, maxLat := p.Lat-dLat, p.Lat+dLat
	if minLat <= -90 || maxLat >= 90 {
		return Bounds{MinLat: math.Max(minLat, -90), MinLng: -180, MaxLat: math.Min(maxLat, 90), MaxLng: 180}
	}

	dLng := dLat / math.Cos(toRadians(math.Max(math.Abs(minLat), math.Abs(maxLat))))
	minLng, maxLng := p.Lng-dLng, p.Lng+dLng
	if minLng < -180 || maxLng > 180 {
		minLng, maxLng = -180, 180
	}
	return Bounds{MinLat: minLat, MinLng: minLng, MaxLat: maxLat, MaxLng: maxLng}
}

// AreaKm2 returns the disk area of a radius given in meters, in square kilometers.
func AreaKm2(radiusMeters float64) float64 {
	km := radiusMeters / 1000
	return math.Pi * km * km
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
