package sssogin

import (
	"net/http"
	"time"

	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// idleLimiterTTL bounds how long a quiet client's bucket is remembered.
const idleLimiterTTL = 10 * time.Minute

// RateLimiter is a per client IP token bucket.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *ttlcache.Cache[string, *rate.Limiter]
	metrics *metrics.Metrics
}

// NewRateLimiter allows perMinute requests per minute per IP with an equal burst.
// Call Stop to release the eviction goroutine.
func NewRateLimiter(perMinute int, m *metrics.Metrics) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}

	buckets := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](idleLimiterTTL),
	)
	go buckets.Start()

	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		buckets: buckets,
		metrics: m,
	}
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	item, _ := l.buckets.GetOrSet(key, rate.NewLimiter(l.limit, l.burst))

	return item.Value().Allow()
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			l.metrics.RateLimitHit()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, serrors.NewSlowDown())

			return
		}

		c.Next()
	}
}

// Stop ends background eviction.
func (l *RateLimiter) Stop() {
	l.buckets.Stop()
}
