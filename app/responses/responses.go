package responses

import (
	"time"

	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/app/services"
	"github.com/geo-bucket/helpers/utils"
)

// Error codes carried in ErrorResponse.Error.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeBucketInUse    = "BUCKET_IN_USE"
	CodeStatsError     = "STATS_ERROR"
	CodeStorageError   = "STORAGE_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
	CodeRouteNotFound  = "ROUTE_NOT_FOUND"
	CodeInternalError  = "INTERNAL_ERROR"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	Error     string      `json:"error"`             // Error code
	Message   string      `json:"message"`           // Human readable message
	Details   interface{} `json:"details,omitempty"` // Extra context
	Timestamp string      `json:"timestamp"`         // RFC 3339
	RequestID string      `json:"request_id,omitempty"`
}

// NewErrorResponse stamps an error envelope with the current time.
func NewErrorResponse(code, message string, details interface{}) ErrorResponse {
	return ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SuccessResponse wraps admin action results.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewSuccessResponse stamps a success envelope with the current time.
func NewSuccessResponse(message string, data interface{}) SuccessResponse {
	return SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Pagination describes one page of a list.
type Pagination struct {
	Count      int64 `json:"count"`       // Total matching items
	Page       int   `json:"page"`        // 1-based page number
	PageSize   int   `json:"page_size"`   // Items per page
	TotalPages int   `json:"total_pages"` // Pages available
}

// NewPagination builds the page metadata for total items.
func NewPagination(total int64, page utils.Page) Pagination {
	pages := 0
	if page.Size > 0 {
		pages = int((total + int64(page.Size) - 1) / int64(page.Size))
	}
	return Pagination{Count: total, Page: page.Number, PageSize: page.Size, TotalPages: pages}
}

// ListResponse is a paginated list.
type ListResponse struct {
	Pagination
	Results interface{} `json:"results"`
}

// BucketPropertiesResponse is a paginated list of one bucket's properties.
type BucketPropertiesResponse struct {
	Pagination
	BucketID   string            `json:"bucket_id"`
	BucketName string            `json:"bucket_name"`
	Results    []models.Property `json:"results"`
}

// NearbyResponse is a paginated radius search.
type NearbyResponse struct {
	Pagination
	Center       services.Center               `json:"center"`
	RadiusMeters float64                       `json:"radius_meters"`
	Results      []models.PropertyWithDistance `json:"results"`
}

// SimilarPropertiesResponse is a paginated same-bucket price search.
type SimilarPropertiesResponse struct {
	Pagination
	PropertyID string              `json:"property_id"`
	BucketID   string              `json:"bucket_id"`
	PriceRange services.PriceRange `json:"price_range"`
	Results    []models.Property   `json:"results"`
}

// SearchMetadata explains how a location search was answered.
type SearchMetadata struct {
	Query                string `json:"query"`
	NormalizedQuery      string `json:"normalized_query"`
	SearchType           string `json:"search_type"`
	MatchingBucketsCount int    `json:"matching_buckets_count"`
}

// PropertySearchResponse is a paginated location search.
type PropertySearchResponse struct {
	Pagination
	SearchMetadata SearchMetadata    `json:"search_metadata"`
	Results        []models.Property `json:"results"`
}

// CreatePropertyResponse is returned by POST /api/properties.
type CreatePropertyResponse struct {
	models.Property
	GeoBucketName string  `json:"geo_bucket_name"`
	Resolution    string  `json:"resolution"`
	MatchScore    float64 `json:"match_score"`
}

// HealthCheckResponse reports service health.
type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
}
