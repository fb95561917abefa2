package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/geo-bucket/app/controllers"
)

// SetupAPIRoutes registers the public /api and the /v1/admin routes.
func SetupAPIRoutes(router *gin.Engine, ctrl Controllers, limit ...gin.HandlerFunc) {
	api := router.Group("/api", limit...)
	{
		buckets := api.Group("/geo-buckets")
		{
			buckets.GET("", ctrl.Buckets.ListBuckets)
			buckets.GET("/stats", ctrl.Buckets.Stats)
			buckets.GET("/normalize", ctrl.Buckets.Normalize)
			buckets.GET("/:id", ctrl.Buckets.GetBucket)
			buckets.GET("/:id/properties", ctrl.Buckets.BucketProperties)
			buckets.GET("/:id/similar", ctrl.Buckets.SimilarBuckets)
		}

		properties := api.Group("/properties")
		{
			properties.POST("", ctrl.Properties.CreateProperty)
			properties.GET("", ctrl.Properties.ListProperties)
			properties.GET("/nearby", ctrl.Properties.NearbyProperties)
			properties.GET("/search", ctrl.Properties.SearchProperties)
			properties.GET("/:id", ctrl.Properties.GetProperty)
			properties.GET("/:id/similar", ctrl.Properties.SimilarProperties)
		}
	}

	v1 := router.Group("/v1", limit...)
	{
		admin := v1.Group("/admin")
		{
			admin.POST("/seed", ctrl.Admin.Seed)
			admin.POST("/indexes/build", ctrl.Admin.BuildIndexes)
			admin.POST("/resolve", ctrl.Admin.Resolve)
			admin.DELETE("/geo-buckets/:id", ctrl.Admin.DeleteBucket)
			admin.GET("/stats", ctrl.Admin.GetStats)
		}
		v1.GET("/health", ctrl.Health.HealthCheck)
	}
}

// SetupHealthRoutes registers the probe endpoints.
func SetupHealthRoutes(router *gin.Engine, health *controllers.HealthController) {
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.Ready)
	router.GET("/live", health.Live)
}
