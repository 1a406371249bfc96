package middleware

import (
	"net/http"
	"sync"

	"github.com/biscalabs/biscagate/internal/config"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterRegistry hands out one token bucket per caller address.
type limiterRegistry struct {
	mu       sync.Mutex
	limiters map[common.Address]*rate.Limiter
	qps      rate.Limit
	burst    int
}

func newLimiterRegistry(qps float64, burst int) *limiterRegistry {
	if qps <= 0 {
		qps = 20
	}
	if burst <= 0 {
		burst = int(qps) * 2
	}
	return &limiterRegistry{
		limiters: make(map[common.Address]*rate.Limiter),
		qps:      rate.Limit(qps),
		burst:    burst,
	}
}

func (r *limiterRegistry) get(addr common.Address) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	lim, ok := r.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(r.qps, r.burst)
		r.limiters[addr] = lim
	}
	return lim
}

// RateLimitMiddleware throttles per caller address. Must run after
// AuthMiddleware; anonymous requests pass through untouched.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	reg := newLimiterRegistry(cfg.RateLimit.QPS, cfg.RateLimit.Burst)
	return func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			c.Next()
			return
		}
		if !reg.get(caller).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
