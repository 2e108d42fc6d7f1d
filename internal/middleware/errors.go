package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/httputil"
	"github.com/labsuite/labops/internal/metrics"
)

// respondError counts the rejection by code and writes the error envelope.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
