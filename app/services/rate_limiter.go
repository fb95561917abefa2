package services

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/geo-bucket/internal/metrics"
)

// RateLimiter keeps one token bucket per client. The least recently seen
// clients are forgotten once the table is full; a forgotten client starts
// again with a full bucket.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	metrics  *metrics.Metrics
}

// NewRateLimiter allows rps requests per second with the given burst for up to clients distinct clients.
func NewRateLimiter(rps float64, burst, clients int, m *metrics.Metrics) (*RateLimiter, error) {
	if rps <= 0 {
		return nil, fmt.Errorf("requests per second must be positive, got %v", rps)
	}
	if burst < 1 {
		burst = 1
	}
	if clients <= 0 {
		clients = 10000
	}
	cache, err := lru.New[string, *rate.Limiter](clients)
	if err != nil {
		return nil, fmt.Errorf("create limiter table: %w", err)
	}
	return &RateLimiter{
		limiters: cache,
		limit:    rate.Limit(rps),
		burst:    burst,
		metrics:  m,
	}, nil
}

// Allow reports whether client may make a request now.
func (rl *RateLimiter) Allow(client string) bool {
	if rl.limiter(client).Allow() {
		return true
	}
	rl.metrics.IncRateLimited()
	return false
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	return rl.limiters.Len()
}

func (rl *RateLimiter) limiter(client string) *rate.Limiter {
	if l, ok := rl.limiters.Get(client); ok {
		return l
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters.Get(client); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.limiters.Add(client, l)
	return l
}
