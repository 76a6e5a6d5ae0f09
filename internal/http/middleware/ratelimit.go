package middleware

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per remote address using a token bucket
// per client. A bucket is created on a client's first request and kept for
// the limiter's lifetime; idle buckets are not evicted. Grounded on the
// teacher's per-proxy rate accounting in internal/proxy, adapted here to
// per-client HTTP throttling instead of per-outbound-proxy throttling.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter builds a limiter allowing rps requests per second per
// client address, with burst headroom.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *RateLimiter) forClient(addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[addr] = lim
	}
	return lim
}

// Middleware rejects a request with 429 once its client's bucket is empty.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil {
			next.ServeHTTP(w, r)
			return
		}
		if !l.forClient(r.RemoteAddr).Allow() {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
