package fanout

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter grants each client id its own token bucket sized so a burst up
// to limit is allowed and the bucket refills to limit again over one
// period. Buckets are created lazily and kept for the process lifetime.
type RateLimiter struct {
	limit  int
	period time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		period:   period,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (r *RateLimiter) limiterFor(clientID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[clientID]
	if !ok {
		refill := rate.Limit(float64(r.limit) / r.period.Seconds())
		l = rate.NewLimiter(refill, r.limit)
		r.limiters[clientID] = l
	}
	return l
}

// Allow reports whether clientID may proceed, consuming one token if so.
func (r *RateLimiter) Allow(clientID string) bool {
	return r.limiterFor(clientID).Allow()
}

// Middleware rejects requests over the limit with RESOURCE_EXHAUSTED.
// clientID extracts the rate-limit key from the request (typically the API
// key or remote address). When limiter is nil, rate limiting is disabled.
func (r *RateLimiter) Middleware(clientID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if r == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !r.Allow(clientID(req)) {
				respondError(w, "RESOURCE_EXHAUSTED", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func clientIDFromRequest(r *http.Request) string {
	if key := r.Header.Get("x-api-key"); key != "" {
		return key
	}
	return r.RemoteAddr
}
