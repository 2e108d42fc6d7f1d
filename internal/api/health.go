// Package api provides the HTTP handlers and router for labops.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/db"
)

// Pinger is the slice of the database pool the health checks need.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// SchemaChecker reports the applied migration version.
type SchemaChecker interface {
	Pinger
	AppliedSchemaVersion(ctx context.Context) (int64, error)
}

// ClientCounter reports live push subscriptions.
type ClientCounter interface {
	ClientCount() int
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db        SchemaChecker
	hub       ClientCounter
	log       *logrus.Logger
	version   string
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler. database is nil when running on
// in-memory storage.
func NewHealthHandler(database SchemaChecker, hub ClientCounter, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{
		db:        database,
		hub:       hub,
		log:       log,
		version:   version,
		startTime: time.Now(),
	}
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
}

// healthResponse is the JSON payload returned by the health/liveness endpoint.
type healthResponse struct {
	Success       bool    `json:"success"`
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	SchemaVersion int     `json:"schema_version"`
	Database      string  `json:"database"`
	PushClients   int     `json:"push_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Success:       true,
		Status:        "ok",
		Version:       h.version,
		SchemaVersion: db.SchemaVersion(),
		Database:      "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	} else {
		resp.Database = "memory"
	}

	if h.hub != nil {
		resp.PushClients = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/ready: the database answers and carries every
// embedded migration.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{
		"database": "ok",
		"schema":   "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	if h.db == nil {
		checks["database"] = "memory"
		checks["schema"] = "memory"
		c.JSON(statusCode, readinessResponse{Success: true, Status: status, Checks: checks})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.HealthCheck(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		checks["database"] = "error"
		checks["schema"] = "unknown"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if err := h.checkSchema(ctx); err != nil {
		h.log.WithError(err).Error("readiness: schema check failed")
		checks["schema"] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, readinessResponse{
		Success: statusCode == http.StatusOK,
		Status:  status,
		Checks:  checks,
	})
}

// checkSchema compares the applied migration version with the embedded set.
func (h *HealthHandler) checkSchema(ctx context.Context) error {
	applied, err := h.db.AppliedSchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}

	if want := int64(db.SchemaVersion()); applied < want {
		return fmt.Errorf("schema at version %d, want %d", applied, want)
	}

	return nil
}
