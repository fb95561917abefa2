package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/requests"
	"github.com/geo-bucket/app/responses"
	"github.com/geo-bucket/app/services"
)

// PropertyController serves /api/properties.
type PropertyController struct {
	propertyService *services.PropertyService
	logger          *zap.Logger
}

// NewPropertyController creates a PropertyController.
func NewPropertyController(propertyService *services.PropertyService, logger *zap.Logger) *PropertyController {
	return &PropertyController{
		propertyService: propertyService,
		logger:          logger,
	}
}

// CreateProperty handles POST /api/properties.
func (pc *PropertyController) CreateProperty(c *gin.Context) {
	var req requests.CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	created, err := pc.propertyService.CreateProperty(c.Request.Context(), req)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusCreated, responses.CreatePropertyResponse{
		Property:      created.Property,
		GeoBucketName: created.Bucket.Name,
		Resolution:    string(created.Outcome),
		MatchScore:    created.Score,
	})
}

// ListProperties handles GET /api/properties.
func (pc *PropertyController) ListProperties(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	from, err := queryTime(c, false, "created_from", "created_at_after")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	to, err := queryTime(c, true, "created_to", "created_at_before")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	props, total, err := pc.propertyService.ListProperties(c.Request.Context(), services.PropertyQuery{
		Search:      c.Query("search"),
		CreatedFrom: from,
		CreatedTo:   to,
		Page:        page,
	})
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.ListResponse{
		Pagination: responses.NewPagination(total, page),
		Results:    props,
	})
}

// GetProperty handles GET /api/properties/:id.
func (pc *PropertyController) GetProperty(c *gin.Context) {
	p, err := pc.propertyService.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// NearbyProperties handles GET /api/properties/nearby.
func (pc *PropertyController) NearbyProperties(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	lat, okLat, errLat := queryFloat(c, "lat")
	lng, okLng, errLng := queryFloat(c, "lng")
	radius, _, errRadius := queryFloat(c, "radius")
	if !okLat || !okLng || errLat != nil || errLng != nil || errRadius != nil {
		badRequest(c, "Invalid lat, lng, or radius parameters")
		return
	}

	res, err := pc.propertyService.Nearby(c.Request.Context(), lat, lng, radius, page)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.NearbyResponse{
		Pagination:   responses.NewPagination(res.Total, page),
		Center:       res.Center,
		RadiusMeters: res.RadiusMeters,
		Results:      res.Results,
	})
}

// SimilarProperties handles GET /api/properties/:id/similar.
func (pc *PropertyController) SimilarProperties(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	variance, ok, err := queryFloat(c, "price_variance")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if !ok {
		variance = pc.propertyService.Config().PriceVariance
	}

	res, err := pc.propertyService.SimilarProperties(c.Request.Context(), c.Param("id"), variance, page)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.SimilarPropertiesResponse{
		Pagination: responses.NewPagination(res.Total, page),
		PropertyID: res.PropertyID,
		BucketID:   res.BucketID,
		PriceRange: res.PriceRange,
		Results:    res.Results,
	})
}

// SearchProperties handles GET /api/properties/search.
func (pc *PropertyController) SearchProperties(c *gin.Context) {
	location := c.Query("location")
	if strings.TrimSpace(location) == "" {
		badRequest(c, "location parameter is required")
		return
	}
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := pc.propertyService.SearchByLocation(c.Request.Context(), location, page)
	if err != nil {
		respondError(c, pc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.PropertySearchResponse{
		Pagination: responses.NewPagination(res.Total, page),
		SearchMetadata: responses.SearchMetadata{
			Query:                res.Query,
			NormalizedQuery:      res.NormalizedQuery,
			SearchType:           res.SearchType,
			MatchingBucketsCount: res.MatchingBucketsCount,
		},
		Results: res.Results,
	})
}
