// Package routes wires controllers and middleware onto a gin engine.
//
// Layout:
//   - api.go: /api and /v1/admin routes plus health probes
//   - web.go: landing and docs pages
//   - middleware.go: request id, logging, recovery, metrics, timeout, rate limiting
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/controllers"
	"github.com/geo-bucket/app/responses"
	"github.com/geo-bucket/app/services"
	"github.com/geo-bucket/internal/metrics"
)

// Controllers groups the HTTP handlers.
type Controllers struct {
	Buckets    *controllers.BucketController
	Properties *controllers.PropertyController
	Admin      *controllers.AdminController
	Health     *controllers.HealthController
}

// Options configures the shared middleware.
type Options struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer // nil disables /metrics
	Limiter        *services.RateLimiter
	RequestTimeout time.Duration
}

// SetupMetricsRoutes exposes the Prometheus registry.
func SetupMetricsRoutes(router *gin.Engine, gatherer prometheus.Gatherer) {
	if gatherer == nil {
		return
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// SetupAllRoutes installs middleware and every route.
func SetupAllRoutes(router *gin.Engine, ctrl Controllers, opts Options) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	setupMiddleware(router, opts)

	var limit []gin.HandlerFunc
	if opts.Limiter != nil {
		limit = append(limit, RateLimit(opts.Limiter))
	}

	SetupWebRoutes(router)
	SetupHealthRoutes(router, ctrl.Health)
	SetupAPIRoutes(router, ctrl, limit...)
	SetupMetricsRoutes(router, opts.Gatherer)

	router.NoRoute(func(c *gin.Context) {
		resp := responses.NewErrorResponse(responses.CodeRouteNotFound, "Route not found", gin.H{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
		resp.RequestID = c.GetString(controllers.RequestIDKey)
		c.JSON(http.StatusNotFound, resp)
	})
}

func setupMiddleware(router *gin.Engine, opts Options) {
	router.Use(RequestID())
	router.Use(Recovery(opts.Logger))
	router.Use(Logger(opts.Logger))
	if opts.Metrics != nil {
		router.Use(Metrics(opts.Metrics))
	}
	router.Use(Timeout(opts.RequestTimeout))
}
