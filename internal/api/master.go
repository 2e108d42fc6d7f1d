package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/httputil"
	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/models"
)

// MasterHandler serves the CRUD and audit endpoints of every master-data
// kind. Each method returns a handler bound to one kind.
type MasterHandler struct {
	responder
	svc   MasterRepository
	audit AuditRepository
}

// NewMasterHandler creates a MasterHandler.
func NewMasterHandler(svc MasterRepository, audit AuditRepository, r responder) *MasterHandler {
	return &MasterHandler{responder: r, svc: svc, audit: audit}
}

// readBody decodes a JSON object body.
func (h *MasterHandler) readBody(c *gin.Context) (map[string]any, bool) {
	var body map[string]any
	if !h.bindJSON(c, &body) {
		return nil, false
	}
	if body == nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "request body must be a JSON object")
		return nil, false
	}

	return body, true
}

// List handles GET /api/admin/<path>.
func (h *MasterHandler) List(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, err := h.svc.List(c.Request.Context(), middleware.SessionFrom(c), kind, scopeQuery(c))
		if err != nil {
			h.fail(c, err)
			return
		}

		httputil.RespondOK(c, http.StatusOK, recs)
	}
}

// Create handles POST /api/admin/<path>.
func (h *MasterHandler) Create(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := h.readBody(c)
		if !ok {
			return
		}

		rec, err := h.svc.Create(c.Request.Context(), middleware.SessionFrom(c), kind, models.ScopeFromBody(body), body)
		if err != nil {
			h.fail(c, err)
			return
		}

		httputil.RespondOK(c, http.StatusCreated, rec)
	}
}

// Update handles PUT /api/admin/<path>. The record id travels in the body.
func (h *MasterHandler) Update(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := h.readBody(c)
		if !ok {
			return
		}

		rec, err := h.svc.Update(
			c.Request.Context(), middleware.SessionFrom(c), kind,
			models.ScopeFromBody(body), models.StringValue(body, "id"), body,
		)
		if err != nil {
			h.fail(c, err)
			return
		}

		httputil.RespondOK(c, http.StatusOK, rec)
	}
}

// Delete handles DELETE /api/admin/<path>?id=.
func (h *MasterHandler) Delete(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := h.svc.Delete(c.Request.Context(), middleware.SessionFrom(c), kind, scopeQuery(c), c.Query("id"))
		if err != nil {
			h.fail(c, err)
			return
		}

		httputil.RespondOK(c, http.StatusOK, rec)
	}
}

// Audit handles GET /api/admin/<path>/audit. The kind's key field doubles
// as the key filter parameter.
func (h *MasterHandler) Audit(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := auditQuery(c, kind.Name, kind.KeyField)
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
}

// Kinds handles GET /api/admin/kinds.
func (h *MasterHandler) Kinds(c *gin.Context) {
	httputil.RespondOK(c, http.StatusOK, models.Kinds())
}
