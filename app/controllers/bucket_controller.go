package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/responses"
	"github.com/geo-bucket/app/services"
	"github.com/geo-bucket/internal/stats"
)

// BucketController serves /api/geo-buckets.
type BucketController struct {
	bucketService *services.BucketService
	statsLimit    int
	logger        *zap.Logger
}

// NewBucketController creates a BucketController. statsLimit is the default
// number of rows in the stats bucket table.
func NewBucketController(bucketService *services.BucketService, statsLimit int, logger *zap.Logger) *BucketController {
	if statsLimit <= 0 {
		statsLimit = stats.DetailLimit
	}
	return &BucketController{
		bucketService: bucketService,
		statsLimit:    statsLimit,
		logger:        logger,
	}
}

// ListBuckets handles GET /api/geo-buckets.
func (bc *BucketController) ListBuckets(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	buckets, total, err := bc.bucketService.ListBuckets(c.Request.Context(), page)
	if err != nil {
		respondError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.ListResponse{
		Pagination: responses.NewPagination(total, page),
		Results:    buckets,
	})
}

// GetBucket handles GET /api/geo-buckets/:id.
func (bc *BucketController) GetBucket(c *gin.Context) {
	detail, err := bc.bucketService.GetBucket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// BucketProperties handles GET /api/geo-buckets/:id/properties.
func (bc *BucketController) BucketProperties(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := bc.bucketService.BucketProperties(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		respondError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, responses.BucketPropertiesResponse{
		Pagination: responses.NewPagination(res.Total, page),
		BucketID:   res.BucketID,
		BucketName: res.BucketName,
		Results:    res.Results,
	})
}

// SimilarBuckets handles GET /api/geo-buckets/:id/similar.
func (bc *BucketController) SimilarBuckets(c *gin.Context) {
	res, err := bc.bucketService.SimilarBuckets(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Stats handles GET /api/geo-buckets/stats.
func (bc *BucketController) Stats(c *gin.Context) {
	include, err := queryBool(c, "include_buckets", true)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	limit, err := queryInt(c, "limit", bc.statsLimit)
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return
	}

	report, err := bc.bucketService.Stats(c.Request.Context(), c.Query("time_period"), include, limit)
	if err != nil {
		if errors.Is(err, stats.ErrInvalidTimePeriod) {
			badRequest(c, err.Error())
			return
		}
		bc.logger.Error("Failed to compute statistics", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, responses.CodeStatsError,
			"failed to compute geo-bucket statistics", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}

// Normalize handles GET /api/geo-buckets/normalize.
func (bc *BucketController) Normalize(c *gin.Context) {
	q := c.Query("q")
	if strings.TrimSpace(q) == "" {
		badRequest(c, "q is required")
		return
	}
	withCorpus, err := queryBool(c, "with_corpus", false)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	res, err := bc.bucketService.Normalize(c.Request.Context(), q, withCorpus)
	if err != nil {
		respondError(c, bc.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
