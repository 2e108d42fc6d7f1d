// Package middleware provides the gin middleware of the labops API.
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/metrics"
)

// maxBuckets caps the number of tracked keys.
const maxBuckets = 100_000

// bucketIdle is how long an untouched bucket survives the sweep.
const bucketIdle = 10 * time.Minute

// KeyFunc picks the rate-limit key of a request.
type KeyFunc func(c *gin.Context) string

// ByClientIP keys on the client address. Proxy headers are not trusted
// (SetTrustedProxies(nil)), so the value cannot be spoofed.
func ByClientIP(c *gin.Context) string { return c.ClientIP() }

// ByUserOrIP keys authenticated requests on the user and the rest on the
// client address.
func ByUserOrIP(c *gin.Context) string {
	if uid := c.GetString(UserIDKey); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP()
}

// RateLimiter is a keyed token bucket limiter.
type RateLimiter struct {
	name  string
	rate  float64
	burst float64
	key   KeyFunc

	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter creates a limiter named name (the metrics label) allowing
// ratePerSec requests per key with bursts of burst. A nil key uses
// ByClientIP. Stale buckets are swept until ctx is cancelled.
func NewRateLimiter(ctx context.Context, name string, ratePerSec, burst int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ByClientIP
	}

	rl := &RateLimiter{
		name:    name,
		rate:    float64(ratePerSec),
		burst:   float64(burst),
		key:     key,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	go rl.sweep(ctx)

	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(bucketIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for k, b := range rl.buckets {
				if now.Sub(b.seen) > bucketIdle {
					delete(rl.buckets, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// take spends one token of key. When none is left it returns how long until
// the next token.
func (rl *RateLimiter) take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxBuckets {
			return false, time.Second
		}
		b = &bucket{tokens: rl.burst, seen: now}
		rl.buckets[key] = b
	}

	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
	b.seen = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.rate * float64(time.Second))
		return false, wait
	}

	b.tokens--

	return true, 0
}

// Handler returns the gin middleware. Rejected requests get 429 with a
// Retry-After header.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.take(rl.key(c))
		if !ok {
			metrics.RateLimitedTotal.WithLabelValues(rl.name).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")

			return
		}

		c.Next()
	}
}
