package requests

import (
	"errors"
	"math"
	"strings"
)

// CreatePropertyRequest is the body of POST /api/properties.
type CreatePropertyRequest struct {
	Title        string   `json:"title" binding:"required,max=255"`         // Listing title
	LocationName string   `json:"location_name" binding:"required,max=255"` // Free-text place name
	Lat          *float64 `json:"lat" binding:"required,min=-90,max=90"`    // Latitude, WGS 84
	Lng          *float64 `json:"lng" binding:"required,min=-180,max=180"`  // Longitude, WGS 84
	Price        float64  `json:"price" binding:"min=0"`                    // Asking price
	Bedrooms     int      `json:"bedrooms" binding:"min=0"`                 // Bedroom count
	Bathrooms    int      `json:"bathrooms" binding:"min=0"`                // Bathroom count
}

// Validate repeats the binding rules for callers that bypass gin.
func (r CreatePropertyRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return errors.New("title is required")
	case strings.TrimSpace(r.LocationName) == "":
		return errors.New("location_name is required")
	case r.Lat == nil || r.Lng == nil:
		return errors.New("lat and lng are required")
	case math.IsNaN(*r.Lat) || *r.Lat < -90 || *r.Lat > 90:
		return errors.New("lat must be between -90 and 90")
	case math.IsNaN(*r.Lng) || *r.Lng < -180 || *r.Lng > 180:
		return errors.New("lng must be between -180 and 180")
	case r.Price < 0 || math.IsNaN(r.Price):
		return errors.New("price must not be negative")
	case r.Bedrooms < 0 || r.Bathrooms < 0:
		return errors.New("bedrooms and bathrooms must not be negative")
	}
	return nil
}

// ResolveRequest is the body of POST /v1/admin/resolve.
type ResolveRequest struct {
	LocationName string   `json:"location_name" binding:"required"`
	Lat          *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng          *float64 `json:"lng" binding:"required,min=-180,max=180"`
}
