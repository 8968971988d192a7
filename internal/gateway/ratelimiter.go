package gateway

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-client requests-per-minute budget on inbound
// RPC calls. A limiter is created lazily per client ID on first use and
// reused for the life of that connection.
type RateLimiter struct {
	rpm   int
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter builds a RateLimiter. rpm <= 0 disables limiting entirely
// (Allow always returns true and Enabled reports false).
func NewRateLimiter(rpm, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rpm:      rpm,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Enabled reports whether this limiter actually restricts traffic.
func (r *RateLimiter) Enabled() bool { return r.rpm > 0 }

// Allow reports whether clientID may make another call right now, consuming
// one token from its bucket if so.
func (r *RateLimiter) Allow(clientID string) bool {
	if !r.Enabled() {
		return true
	}

	r.mu.Lock()
	lim, ok := r.limiters[clientID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(r.rpm)/60.0), r.burst)
		r.limiters[clientID] = lim
	}
	r.mu.Unlock()

	return lim.Allow()
}

// Forget drops a client's bucket, e.g. once its connection closes.
func (r *RateLimiter) Forget(clientID string) {
	r.mu.Lock()
	delete(r.limiters, clientID)
	r.mu.Unlock()
}
