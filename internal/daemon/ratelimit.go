package daemon

import (
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"familyboard/internal/board"
	"familyboard/internal/metrics"
)

// maxTrackedLimiters bounds the limiter map; it is reset when exceeded.
const maxTrackedLimiters = 10000

// rateLimiter throttles mutations per authenticated user. A non-positive
// rate disables it.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	metrics  *metrics.Metrics
}

func newRateLimiter(perSecond float64, burst int, m *metrics.Metrics) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		metrics:  m,
	}
}

func (rl *rateLimiter) enabled() bool {
	return rl != nil && rl.rate > 0
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxTrackedLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// allow reports whether key may perform another mutation now.
func (rl *rateLimiter) allow(key string) bool {
	if !rl.enabled() {
		return true
	}
	return rl.limiter(key).Allow()
}

// Handler must run behind authenticate: it keys limiters on the principal.
func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	if !rl.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		key := p.FamilyID + "/" + p.UserID
		if p.UserID == "" {
			key = r.RemoteAddr
		}
		if !rl.allow(key) {
			rl.metrics.RecordRateLimited()
			err := fmt.Errorf("%w: more than %v mutations per second", board.ErrRateLimited, float64(rl.rate))
			w.Header().Set("Retry-After", "1")
			writeStandaloneError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
