package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/models"
)

// Gin context keys set by AuthMiddleware.
const (
	SessionKey       = "session"
	SessionExpiryKey = "session_expires_at"
	UserIDKey        = "user_id"
)

// authTimingFloor is the minimum response time for rejected requests so
// token failures cannot be told apart by latency.
const authTimingFloor = 50 * time.Millisecond

// SessionParser verifies a session token.
type SessionParser interface {
	Parse(token string) (*models.Session, time.Time, error)
}

// ActiveUserChecker reports whether a user may still use issued sessions.
type ActiveUserChecker interface {
	IsActiveUser(ctx context.Context, userID string) (bool, error)
}

// enforceTimingFloor sleeps if needed so the response takes at least authTimingFloor.
func enforceTimingFloor(start time.Time) {
	if elapsed := time.Since(start); elapsed < authTimingFloor {
		time.Sleep(authTimingFloor - elapsed)
	}
}

// AuthMiddleware authenticates requests with a session token and stores the
// session in the gin context. Sessions of deactivated or deleted users are
// rejected.
func AuthMiddleware(parser SessionParser, users ActiveUserChecker, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if c.Writer.Status() == http.StatusUnauthorized {
				enforceTimingFloor(start)
			}
		}()

		token := ExtractToken(c)
		if token == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization header")
			return
		}

		sess, expiresAt, err := parser.Parse(token)
		if err != nil {
			logAuthFailure(log, c, "invalid session token")
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
			return
		}

		active, err := users.IsActiveUser(c.Request.Context(), sess.UserID)
		if err != nil {
			log.WithError(err).WithField("user_id", sess.UserID).Error("checking user status")
			respondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if !active {
			logAuthFailure(log, c, "inactive user")
			respondError(c, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
			return
		}

		c.Set(SessionKey, sess)
		c.Set(SessionExpiryKey, expiresAt)
		c.Set(UserIDKey, sess.UserID)
		c.Next()
	}
}

// RequireRole rejects sessions that hold none of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil {
			respondError(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		if !slices.Contains(roles, sess.Role) {
			respondError(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}

		c.Next()
	}
}

// SessionFrom returns the authenticated session, or nil.
func SessionFrom(c *gin.Context) *models.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}

	sess, _ := v.(*models.Session)

	return sess
}

// SessionExpiry returns when the authenticated session expires.
func SessionExpiry(c *gin.Context) time.Time {
	v, _ := c.Get(SessionExpiryKey)
	t, _ := v.(time.Time)

	return t
}

// ExtractToken returns the bearer token from the Authorization header. GET
// requests may pass it as the access_token query parameter instead, since
// browsers cannot set headers on EventSource and WebSocket requests.
func ExtractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	if header == "" && c.Request.Method == http.MethodGet {
		return c.Query("access_token")
	}

	return ""
}

// logAuthFailure logs a failed authentication attempt.
func logAuthFailure(log *logrus.Logger, c *gin.Context, reason string) {
	log.WithFields(logrus.Fields{
		"client_ip":  c.ClientIP(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"request_id": c.GetString(RequestIDKey),
	}).Warn("authentication failed: " + reason)
}
