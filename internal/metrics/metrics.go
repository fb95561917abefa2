// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes recorded by the resolver.
const (
	OutcomeExact    = "exact"
	OutcomeFuzzy    = "fuzzy"
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Resolutions      *prometheus.CounterVec
	ResolveDuration  prometheus.Histogram
	StatsDuration    prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	RateLimited      prometheus.Counter
	LockFallbacks    prometheus.Counter
	SearchIndexFails prometheus.Counter
	StatsCache       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geobucket",
			Name:      "resolutions_total",
			Help:      "Bucket resolutions by outcome.",
		}, []string{"outcome"}),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geobucket",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent resolving a location to a bucket.",
			Buckets:   prometheus.DefBuckets,
		}),
		StatsDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geobucket",
			Name:      "stats_duration_seconds",
			Help:      "Time spent computing the statistics report.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geobucket",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "geobucket",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geobucket",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		LockFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geobucket",
			Name:      "lock_fallbacks_total",
			Help:      "Key lock acquisitions that fell back to the in-process lock.",
		}),
		SearchIndexFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geobucket",
			Name:      "search_index_failures_total",
			Help:      "Bucket documents that could not be pushed to the search index.",
		}),
		StatsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geobucket",
			Name:      "stats_cache_lookups_total",
			Help:      "Statistics report cache lookups by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Resolutions,
			m.ResolveDuration,
			m.StatsDuration,
			m.HTTPRequests,
			m.HTTPDuration,
			m.RateLimited,
			m.LockFallbacks,
			m.SearchIndexFails,
			m.StatsCache,
		)
	}
	return m
}

// ObserveResolution records one resolver outcome and its latency.
func (m *Metrics) ObserveResolution(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolveDuration.Observe(seconds)
}

// ObserveStats records the latency of one statistics computation.
func (m *Metrics) ObserveStats(seconds float64) {
	if m == nil {
		return
	}
	m.StatsDuration.Observe(seconds)
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(seconds)
}

// IncRateLimited counts a rejected request.
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

// IncLockFallback counts a fallback to the local key lock.
func (m *Metrics) IncLockFallback() {
	if m == nil {
		return
	}
	m.LockFallbacks.Inc()
}

// IncSearchIndexFailure counts a failed search index push.
func (m *Metrics) IncSearchIndexFailure() {
	if m == nil {
		return
	}
	m.SearchIndexFails.Inc()
}

// ObserveStatsCache counts a report cache hit or miss.
func (m *Metrics) ObserveStatsCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StatsCache.WithLabelValues(result).Inc()
}
