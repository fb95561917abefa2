package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/config"
	"github.com/geo-bucket/app/controllers"
	"github.com/geo-bucket/app/models"
	"github.com/geo-bucket/app/services"
	"github.com/geo-bucket/internal/store"
	"github.com/geo-bucket/routes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T, mutate func(*config.AppConfig)) (*App, *gin.Engine) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(context.Background()) })
	return app, app.Router()
}

func seededApp(t *testing.T) (*App, *gin.Engine) {
	t.Helper()
	app, router := newTestApp(t, nil)
	w := do(t, router, http.MethodPost, "/v1/admin/seed", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return app, router
}

func do(t *testing.T, router http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func bucketID(t *testing.T, app *App, name string) string {
	t.Helper()
	all, _, err := app.Store.Buckets(context.Background(), store.BucketFilter{})
	require.NoError(t, err)
	for _, b := range all {
		if b.Name == name {
			return b.ID
		}
	}
	t.Fatalf("bucket %q not found", name)
	return ""
}

func TestNew_DefaultsToInProcessBackends(t *testing.T) {
	app, _ := newTestApp(t, nil)

	assert.IsType(t, &store.MemoryStore{}, app.Store)
	assert.NotNil(t, app.Limiter)
	assert.IsType(t, &services.MemoryReportCache{}, app.Cache)
	assert.Nil(t, app.redis)
	assert.Nil(t, app.index)
	assert.Empty(t, app.checks)
	assert.Equal(t, "straße", app.Normalizer.Normalize("Straße", nil))
}

func TestNew_CacheDisabled(t *testing.T) {
	app, _ := newTestApp(t, func(cfg *config.AppConfig) {
		cfg.Stats.CacheTTL = 0
		cfg.RateLimit.RequestsPerSecond = 0
	})
	assert.Nil(t, app.Cache)
	assert.Nil(t, app.Limiter)
}

func TestRoutes_GeoBuckets(t *testing.T) {
	app, router := seededApp(t)
	sangotedo := bucketID(t, app, "Sangotedo")

	tests := []struct {
		name       string
		target     string
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{"list first page", "/api/geo-buckets?page_size=5", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 18, body["count"])
			assert.EqualValues(t, 4, body["total_pages"])
			assert.Len(t, body["results"], 5)
		}},
		{"invalid page", "/api/geo-buckets?page=abc", http.StatusBadRequest, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "INVALID_REQUEST", body["error"])
		}},
		{"detail", "/api/geo-buckets/" + sangotedo, http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "Sangotedo", body["name"])
			assert.EqualValues(t, 3, body["property_count"])
			assert.Len(t, body["properties"], 3)
		}},
		{"unknown bucket", "/api/geo-buckets/nope", http.StatusNotFound, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "NOT_FOUND", body["error"])
		}},
		{"bucket properties", "/api/geo-buckets/" + sangotedo + "/properties?page_size=2", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "Sangotedo", body["bucket_name"])
			assert.EqualValues(t, 3, body["count"])
			assert.Len(t, body["results"], 2)
		}},
		{"similar buckets", "/api/geo-buckets/" + sangotedo + "/similar", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.NotEmpty(t, body["similar_buckets"])
		}},
		{"stats", "/api/geo-buckets/stats", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			summary := body["summary"].(map[string]interface{})
			assert.EqualValues(t, 18, summary["total_buckets"])
			assert.EqualValues(t, 13, summary["total_properties"])
			assert.Len(t, body["buckets"], 18)
			assert.Nil(t, body["time_period"])
		}},
		{"stats limited", "/api/geo-buckets/stats?limit=3&time_period=90d", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Len(t, body["buckets"], 3)
			assert.Equal(t, "90d", body["time_period"])
		}},
		{"stats without buckets", "/api/geo-buckets/stats?include_buckets=false", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, []interface{}{}, body["buckets"])
		}},
		{"stats bad period", "/api/geo-buckets/stats?time_period=month", http.StatusBadRequest, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "INVALID_REQUEST", body["error"])
		}},
		{"stats bad limit", "/api/geo-buckets/stats?limit=-1", http.StatusBadRequest, nil},
		{"normalize", "/api/geo-buckets/normalize?q=Sangotedo,%20Estate", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "sangotedo", body["normalized"])
		}},
		{"normalize without query", "/api/geo-buckets/normalize", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, decode(t, w))
			}
		})
	}
}

func TestRoutes_CreateProperty(t *testing.T) {
	app, router := seededApp(t)

	w := do(t, router, http.MethodPost, "/api/properties", map[string]interface{}{
		"title":         "Garden Terrace",
		"location_name": "Sangotedo",
		"lat":           6.4699,
		"lng":           3.6286,
		"price":         42000000,
		"bedrooms":      3,
		"bathrooms":     3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "exact", body["resolution"])
	assert.Equal(t, "Sangotedo", body["geo_bucket_name"])
	assert.Equal(t, bucketID(t, app, "Sangotedo"), body["geo_bucket"])
	assert.NotEmpty(t, body["id"])

	var p models.Property
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, []float64{3.6286, 6.4699}, p.Location.Coordinates)
}

func TestRoutes_CreateProperty_Invalid(t *testing.T) {
	_, router := newTestApp(t, nil)

	tests := []struct {
		name string
		body interface{}
	}{
		{"latitude out of range", map[string]interface{}{"title": "x", "location_name": "Yaba", "lat": 120, "lng": 3.38}},
		{"missing longitude", map[string]interface{}{"title": "x", "location_name": "Yaba", "lat": 6.5}},
		{"missing title", map[string]interface{}{"location_name": "Yaba", "lat": 6.5, "lng": 3.38}},
		{"not json", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/properties", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "INVALID_REQUEST", decode(t, w)["error"])
		})
	}
}

func TestRoutes_Properties(t *testing.T) {
	_, router := seededApp(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{"list", "/api/properties", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 13, body["count"])
		}},
		{"list search", "/api/properties?search=Sangotedo", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 5, body["count"])
		}},
		{"list bad date", "/api/properties?created_from=yesterday", http.StatusBadRequest, nil},
		{"nearby", "/api/properties/nearby?lat=6.4698&lng=3.6285&radius=5000", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			assert.EqualValues(t, 5, body["count"])
			assert.EqualValues(t, 5000, body["radius_meters"])
			center := body["center"].(map[string]interface{})
			assert.EqualValues(t, 6.4698, center["lat"])
		}},
		{"nearby missing lat", "/api/properties/nearby?lng=3.6285", http.StatusBadRequest, func(t *testing.T, body map[string]interface{}) {
			assert.Equal(t, "Invalid lat, lng, or radius parameters", body["message"])
		}},
		{"nearby bad radius", "/api/properties/nearby?lat=6.4&lng=3.6&radius=far", http.StatusBadRequest, nil},
		{"nearby out of range", "/api/properties/nearby?lat=95&lng=3.6", http.StatusBadRequest, nil},
		{"search", "/api/properties/search?location=Sangotedo", http.StatusOK, func(t *testing.T, body map[string]interface{}) {
			meta := body["search_metadata"].(map[string]interface{})
			assert.Equal(t, "bucket_similarity", meta["search_type"])
			assert.Equal(t, "sangotedo", meta["normalized_query"])
			assert.EqualValues(t, 3, meta["matching_buckets_count"])
			assert.EqualValues(t, 5, body["count"])
		}},
		{"search without location", "/api/properties/search", http.StatusBadRequest, nil},
		{"unknown property", "/api/properties/nope", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.target, nil)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, decode(t, w))
			}
		})
	}
}

func TestRoutes_SimilarProperties(t *testing.T) {
	app, router := seededApp(t)
	props, _, err := app.Store.Properties(context.Background(), store.PropertyFilter{})
	require.NoError(t, err)
	var villa string
	for _, p := range props {
		if p.Title == "Luxury Villa Sangotedo" {
			villa = p.ID
		}
	}
	require.NotEmpty(t, villa)

	w := do(t, router, http.MethodGet, "/api/properties/"+villa+"/similar", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])

	w = do(t, router, http.MethodGet, "/api/properties/"+villa+"/similar?price_variance=0.6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = do(t, router, http.MethodGet, "/api/properties/"+villa+"/similar?price_variance=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoutes_Admin(t *testing.T) {
	app, router := seededApp(t)

	w := do(t, router, http.MethodPost, "/v1/admin/seed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["skipped"])

	w = do(t, router, http.MethodDelete, "/v1/admin/geo-buckets/"+bucketID(t, app, "Sangotedo"), nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BUCKET_IN_USE", decode(t, w)["error"])

	w = do(t, router, http.MethodDelete, "/v1/admin/geo-buckets/"+bucketID(t, app, "Ogba"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/v1/admin/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	db := decode(t, w)["database_stats"].(map[string]interface{})
	assert.EqualValues(t, 17, db["geo_buckets"])
	assert.EqualValues(t, 13, db["properties"])

	w = do(t, router, http.MethodPost, "/v1/admin/resolve", map[string]interface{}{
		"location_name": "Ikeja G.R.A", "lat": 6.6019, "lng": 3.3516,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.NotEqual(t, "created", res["outcome"])
	assert.Equal(t, bucketID(t, app, "Ikeja GRA"), res["bucket"].(map[string]interface{})["id"])

	w = do(t, router, http.MethodPost, "/v1/admin/indexes/build", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRoutes_Operational(t *testing.T) {
	_, router := newTestApp(t, nil)

	for _, path := range []string{"/health", "/ready", "/live", "/v1/health"} {
		w := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "healthy", decode(t, w)["status"], path)
	}

	do(t, router, http.MethodGet, "/api/geo-buckets", nil)
	w := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `geobucket_http_requests_total{method="GET",route="/api/geo-buckets",status="200"} 1`)

	w = do(t, router, http.MethodGet, "/does/not/exist", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", decode(t, w)["error"])
}

func TestRoutes_RequestID(t *testing.T) {
	_, router := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/geo-buckets/missing", nil)
	req.Header.Set(routes.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(routes.RequestIDHeader))
	assert.Equal(t, "req-123", decode(t, w)["request_id"])

	w = do(t, router, http.MethodGet, "/live", nil)
	assert.NotEmpty(t, w.Header().Get(routes.RequestIDHeader))
}

func TestRoutes_RateLimit(t *testing.T) {
	_, router := newTestApp(t, func(cfg *config.AppConfig) {
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 2
	})

	for i := 0; i < 2; i++ {
		w := do(t, router, http.MethodGet, "/api/geo-buckets", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, router, http.MethodGet, "/api/geo-buckets", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode(t, w)["error"])

	// Probes are not rate limited.
	w = do(t, router, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_ReadyReportsFailingDependency(t *testing.T) {
	router := gin.New()
	routes.SetupHealthRoutes(router, controllers.NewHealthController(map[string]controllers.HealthCheck{
		"mongodb": func(context.Context) error { return errors.New("connection refused") },
	}))

	w := do(t, router, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	services := body["services"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(services["mongodb"].(string), "unhealthy"))

	w = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
