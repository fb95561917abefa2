package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geo-bucket/app/responses"
)

// Version is reported by the health endpoints.
const Version = "1.0.0"

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthController serves /health, /ready and /live.
type HealthController struct {
	checks    map[string]HealthCheck
	startTime time.Time
	timeout   time.Duration
}

// NewHealthController creates a HealthController probing checks on readiness.
func NewHealthController(checks map[string]HealthCheck) *HealthController {
	return &HealthController{
		checks:    checks,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

// HealthCheck reports liveness together with dependency states.
func (hc *HealthController) HealthCheck(c *gin.Context) {
	status, services := hc.probe(c.Request.Context())
	c.JSON(http.StatusOK, hc.response(status, services))
}

// Ready answers 503 while any dependency is unhealthy.
func (hc *HealthController) Ready(c *gin.Context) {
	status, services := hc.probe(c.Request.Context())
	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, hc.response(status, services))
}

// Live answers as long as the process serves requests.
func (hc *HealthController) Live(c *gin.Context) {
	c.JSON(http.StatusOK, hc.response("healthy", map[string]string{}))
}

func (hc *HealthController) probe(ctx context.Context) (string, map[string]string) {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	status := "healthy"
	services := make(map[string]string, len(hc.checks))
	for name, check := range hc.checks {
		if err := check(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			status = "degraded"
			continue
		}
		services[name] = "healthy"
	}
	return status, services
}

func (hc *HealthController) response(status string, services map[string]string) responses.HealthCheckResponse {
	return responses.HealthCheckResponse{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(hc.startTime).Round(time.Second).String(),
		Version:   Version,
		Services:  services,
	}
}
