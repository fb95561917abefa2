package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geo-bucket/app/controllers"
)

// SetupWebRoutes registers the landing and documentation pages.
func SetupWebRoutes(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Geo-Bucket Service",
			"version": controllers.Version,
			"docs":    "/docs",
		})
	})

	router.GET("/docs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"api": "Geo-Bucket API",
			"endpoints": map[string]string{
				"list_buckets":       "GET /api/geo-buckets",
				"bucket":             "GET /api/geo-buckets/:id",
				"bucket_properties":  "GET /api/geo-buckets/:id/properties",
				"similar_buckets":    "GET /api/geo-buckets/:id/similar",
				"bucket_stats":       "GET /api/geo-buckets/stats?time_period=30d&include_buckets=true&limit=50",
				"normalize":          "GET /api/geo-buckets/normalize?q=...&with_corpus=false",
				"create_property":    "POST /api/properties",
				"list_properties":    "GET /api/properties?search=...&created_from=...&created_to=...",
				"property":           "GET /api/properties/:id",
				"nearby_properties":  "GET /api/properties/nearby?lat=...&lng=...&radius=5000",
				"search_properties":  "GET /api/properties/search?location=...",
				"similar_properties": "GET /api/properties/:id/similar?price_variance=0.2",
				"metrics":            "GET /metrics",
			},
		})
	})
}
