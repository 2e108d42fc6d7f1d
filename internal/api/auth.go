package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/httputil"
	"github.com/labsuite/labops/internal/middleware"
)

// AuthHandler serves login and session introspection.
type AuthHandler struct {
	responder
	svc AuthRepository
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc AuthRepository, r responder) *AuthHandler {
	return &AuthHandler{responder: r, svc: svc}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,max=128"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.svc.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	httputil.RespondOK(c, http.StatusOK, res)
}

// Session handles GET /api/auth/session.
func (h *AuthHandler) Session(c *gin.Context) {
	httputil.RespondOK(c, http.StatusOK, gin.H{
		"session":   middleware.SessionFrom(c),
		"expiresAt": middleware.SessionExpiry(c),
	})
}
