package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/httputil"
	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/service"
)

// BatchHandler serves /api/batches.
type BatchHandler struct {
	responder
	svc   BatchRepository
	audit AuditRepository
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(svc BatchRepository, audit AuditRepository, r responder) *BatchHandler {
	return &BatchHandler{responder: r, svc: svc, audit: audit}
}

// List handles GET /api/batches.
func (h *BatchHandler) List(c *gin.Context) {
	batches, err := h.svc.List(c.Request.Context(), middleware.SessionFrom(c), scopeQuery(c), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, batches)
}

// Get handles GET /api/batches/:id.
func (h *BatchHandler) Get(c *gin.Context) {
	b, err := h.svc.Get(c.Request.Context(), middleware.SessionFrom(c), scopeQuery(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, b)
}

// Create handles POST /api/batches.
func (h *BatchHandler) Create(c *gin.Context) {
	var req models.CreateBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	b, err := h.svc.Create(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusCreated, b)
}

// UpdateStatus handles PATCH /api/batches/:id/status.
func (h *BatchHandler) UpdateStatus(c *gin.Context) {
	var req models.StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	b, err := h.svc.UpdateStatus(c.Request.Context(), middleware.SessionFrom(c), scopeQuery(c), c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, b)
}

// UpdateTestStatus handles PATCH /api/batches/:id/tests/:testId/status.
func (h *BatchHandler) UpdateTestStatus(c *gin.Context) {
	var req models.StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	b, err := h.svc.UpdateTestStatus(
		c.Request.Context(), middleware.SessionFrom(c), scopeQuery(c), c.Param("id"), c.Param("testId"), req,
	)
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, b)
}

// Delete handles DELETE /api/batches/:id.
func (h *BatchHandler) Delete(c *gin.Context) {
	b, err := h.svc.Delete(c.Request.Context(), middleware.SessionFrom(c), scopeQuery(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, b)
}

// Audit handles GET /api/batches/audit.
func (h *BatchHandler) Audit(c *gin.Context) {
	q, err := auditQuery(c, service.EntityBatch, "batchNumber")
	if err != nil {
		h.fail(c, err)
		return
	}

	recs, err := h.audit.Query(c.Request.Context(), middleware.SessionFrom(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, recs)
}
