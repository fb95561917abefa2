package controllers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geo-bucket/app/responses"
	"github.com/geo-bucket/app/services"
	"github.com/geo-bucket/helpers/utils"
	"github.com/geo-bucket/internal/stats"
	"github.com/geo-bucket/internal/store"
)

const dateLayout = "2006-01-02"

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// abortWithError writes the error envelope and stops the handler chain.
func abortWithError(c *gin.Context, status int, code, message string, details interface{}) {
	resp := responses.NewErrorResponse(code, message, details)
	resp.RequestID = c.GetString(RequestIDKey)
	c.AbortWithStatusJSON(status, resp)
}

// badRequest reports a client input error.
func badRequest(c *gin.Context, message string) {
	abortWithError(c, http.StatusBadRequest, responses.CodeInvalidRequest, message, nil)
}

// respondError maps service and store errors to HTTP responses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, stats.ErrInvalidTimePeriod):
		badRequest(c, err.Error())
	case errors.Is(err, store.ErrNotFound):
		abortWithError(c, http.StatusNotFound, responses.CodeNotFound, "resource not found", nil)
	case errors.Is(err, store.ErrBucketInUse):
		abortWithError(c, http.StatusConflict, responses.CodeBucketInUse, "geo-bucket still owns properties", nil)
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, responses.CodeStorageError, "internal storage error", nil)
	}
}

// parsePage reads page and page_size.
func parsePage(c *gin.Context) (utils.Page, error) {
	number, err := queryInt(c, "page", 1)
	if err != nil {
		return utils.Page{}, err
	}
	size, err := queryInt(c, "page_size", utils.DefaultPageSize)
	if err != nil {
		return utils.Page{}, err
	}
	return utils.NewPage(number, size), nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func queryFloat(c *gin.Context, key string) (float64, bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
	return v, true, nil
}

func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", key)
	}
	return v, nil
}

// queryTime reads an RFC 3339 timestamp or a date. A date bound is widened to
// the whole day when endOfDay is set.
func queryTime(c *gin.Context, endOfDay bool, keys ...string) (time.Time, error) {
	for _, key := range keys {
		raw, ok := c.GetQuery(key)
		if !ok || raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), nil
		}
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", key)
		}
		if endOfDay {
			d = d.Add(24*time.Hour - time.Nanosecond)
		}
		return d, nil
	}
	return time.Time{}, nil
}
