package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/requests"
	"github.com/geo-bucket/app/responses"
	"github.com/geo-bucket/app/services"
)

// AdminController serves /v1/admin.
type AdminController struct {
	adminService *services.AdminService
	logger       *zap.Logger
}

// NewAdminController creates an AdminController.
func NewAdminController(adminService *services.AdminService, logger *zap.Logger) *AdminController {
	return &AdminController{
		adminService: adminService,
		logger:       logger,
	}
}

// Seed loads the sample data set.
func (ac *AdminController) Seed(c *gin.Context) {
	result, err := ac.adminService.Seed(c.Request.Context())
	if err != nil {
		ac.logger.Error("Failed to seed sample data", zap.Error(err))
		respondError(c, ac.logger, err)
		return
	}

	message := "Sample data seeded"
	if result.Skipped {
		message = "Store already holds data, seed skipped"
	}
	c.JSON(http.StatusOK, responses.NewSuccessResponse(message, result))
}

// BuildIndexes creates store indexes and rebuilds the bucket search index.
func (ac *AdminController) BuildIndexes(c *gin.Context) {
	result, err := ac.adminService.BuildIndexes(c.Request.Context())
	if err != nil {
		ac.logger.Error("Failed to build indexes", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "INDEX_BUILD_ERROR", "failed to build indexes", err.Error())
		return
	}
	c.JSON(http.StatusOK, responses.NewSuccessResponse("Indexes built", result))
}

// DeleteBucket removes an empty geo-bucket.
func (ac *AdminController) DeleteBucket(c *gin.Context) {
	id := c.Param("id")
	if err := ac.adminService.DeleteBucket(c.Request.Context(), id); err != nil {
		respondError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.NewSuccessResponse("Geo-bucket deleted", gin.H{"id": id}))
}

// Resolve runs the bucket resolver for a location without storing a property.
func (ac *AdminController) Resolve(c *gin.Context) {
	var req requests.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := ac.adminService.Resolve(c.Request.Context(), req.LocationName, *req.Lat, *req.Lng)
	if err != nil {
		respondError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetStats reports record counts and process information.
func (ac *AdminController) GetStats(c *gin.Context) {
	st, err := ac.adminService.SystemStats(c.Request.Context())
	if err != nil {
		respondError(c, ac.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
