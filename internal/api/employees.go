package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/httputil"
	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/service"
)

// EmployeeHandler serves /api/admin/employees.
type EmployeeHandler struct {
	responder
	svc   EmployeeRepository
	audit AuditRepository
	users UserCacheInvalidator
}

// NewEmployeeHandler creates an EmployeeHandler. users may be nil.
func NewEmployeeHandler(svc EmployeeRepository, audit AuditRepository, users UserCacheInvalidator, r responder) *EmployeeHandler {
	return &EmployeeHandler{responder: r, svc: svc, audit: audit, users: users}
}

func (h *EmployeeHandler) invalidate(userID string) {
	if h.users != nil && userID != "" {
		h.users.Invalidate(userID)
	}
}

// List handles GET /api/admin/employees?companyId=.
func (h *EmployeeHandler) List(c *gin.Context) {
	emps, err := h.svc.List(c.Request.Context(), middleware.SessionFrom(c), c.Query("companyId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, emps)
}

// Create handles POST /api/admin/employees.
func (h *EmployeeHandler) Create(c *gin.Context) {
	var req models.CreateEmployeeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	emp, err := h.svc.Create(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusCreated, emp)
}

// Update handles PUT /api/admin/employees.
func (h *EmployeeHandler) Update(c *gin.Context) {
	var req models.UpdateEmployeeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	emp, err := h.svc.Update(c.Request.Context(), middleware.SessionFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.invalidate(emp.UserID)
	httputil.RespondOK(c, http.StatusOK, emp)
}

// Delete handles DELETE /api/admin/employees?id=&companyId=.
func (h *EmployeeHandler) Delete(c *gin.Context) {
	emp, err := h.svc.Delete(c.Request.Context(), middleware.SessionFrom(c), c.Query("companyId"), c.Query("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	h.invalidate(emp.UserID)
	httputil.RespondOK(c, http.StatusOK, emp)
}

// Audit handles GET /api/admin/employees/audit?companyId=.
func (h *EmployeeHandler) Audit(c *gin.Context) {
	q, err := auditQuery(c, service.EntityEmployee, "employeeCode")
	if err != nil {
		h.fail(c, err)
		return
	}
	if id := c.Query("employeeId"); id != "" {
		q.EntityID = id
	}

	recs, err := h.audit.QueryEmployees(c.Request.Context(), middleware.SessionFrom(c), q)
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, recs)
}
