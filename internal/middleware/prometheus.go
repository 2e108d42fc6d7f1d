package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/metrics"
)

// streamingPrefixes are long-lived push routes; their duration is connection
// lifetime, not latency, so they are counted but not timed.
var streamingPrefixes = []string{"/api/sse/", "/api/ws/"}

// PrometheusMiddleware records HTTP request duration and count.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath() // route pattern, not actual path (avoids cardinality explosion)
		if path == "" {
			path = "unknown"
		}

		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		for _, p := range streamingPrefixes {
			if strings.HasPrefix(path, p) {
				return
			}
		}
		metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
