package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/models"
)

type mockParser struct {
	sessions map[string]*models.Session
}

func (m *mockParser) Parse(token string) (*models.Session, time.Time, error) {
	if sess, ok := m.sessions[token]; ok {
		return sess, time.Now().Add(time.Hour), nil
	}
	return nil, time.Time{}, errors.New("invalid token")
}

type mockUsers struct {
	active map[string]bool
	calls  atomic.Int32
	err    error
}

func (m *mockUsers) IsActiveUser(_ context.Context, userID string) (bool, error) {
	m.calls.Add(1)
	return m.active[userID], m.err
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newAuthFixtures() (*mockParser, *mockUsers) {
	parser := &mockParser{sessions: map[string]*models.Session{
		"good":    {UserID: "u1", Role: models.RoleAdmin},
		"analyst": {UserID: "u2", Role: models.RoleAnalyst},
		"gone":    {UserID: "u3", Role: models.RoleAdmin},
	}}
	users := &mockUsers{active: map[string]bool{"u1": true, "u2": true}}
	return parser, users
}

func TestAuthMiddleware(t *testing.T) {
	parser, users := newAuthFixtures()

	tests := []struct {
		name       string
		authHeader string
		query      string
		wantCode   int
	}{
		{"valid token", "Bearer good", "", http.StatusOK},
		{"missing header", "", "", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", "", http.StatusUnauthorized},
		{"no bearer prefix", "good", "", http.StatusUnauthorized},
		{"inactive user", "Bearer gone", "", http.StatusUnauthorized},
		{"query token", "", "?access_token=good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(middleware.AuthMiddleware(parser, users, quietLog()))
			r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/test"+tt.query, http.NoBody)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("got %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestAuthMiddleware_QueryTokenOnlyForGET(t *testing.T) {
	parser, users := newAuthFixtures()

	r := gin.New()
	r.Use(middleware.AuthMiddleware(parser, users, quietLog()))
	r.POST("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test?access_token=good", http.NoBody))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_SetsSession(t *testing.T) {
	parser, users := newAuthFixtures()

	var got *models.Session
	var expiry time.Time
	r := gin.New()
	r.Use(middleware.AuthMiddleware(parser, users, quietLog()))
	r.GET("/test", func(c *gin.Context) {
		got = middleware.SessionFrom(c)
		expiry = middleware.SessionExpiry(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)

	if got == nil || got.UserID != "u1" {
		t.Fatalf("expected session for u1, got %+v", got)
	}
	if expiry.IsZero() {
		t.Error("expected session expiry to be set")
	}
}

func TestAuthMiddleware_StoreErrorIs500(t *testing.T) {
	parser, users := newAuthFixtures()
	users.err = errors.New("db down")

	r := gin.New()
	r.Use(middleware.AuthMiddleware(parser, users, quietLog()))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	parser, users := newAuthFixtures()

	r := gin.New()
	r.Use(middleware.AuthMiddleware(parser, users, quietLog()))
	r.GET("/admin", middleware.RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	for token, want := range map[string]int{"good": http.StatusOK, "analyst": http.StatusForbidden} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)

		if w.Code != want {
			t.Errorf("%s: got %d, want %d", token, w.Code, want)
		}
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"abc123", ""},
		{"", ""},
		{"Bearer ", ""},
		{"bearer abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			got := middleware.ExtractToken(c)
			if got != tt.want {
				t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestCachedUserChecker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	users := &mockUsers{active: map[string]bool{"u1": true}}
	cached := middleware.NewCachedUserChecker(ctx, users)

	for range 3 {
		active, err := cached.IsActiveUser(ctx, "u1")
		if err != nil || !active {
			t.Fatalf("IsActiveUser = %v, %v", active, err)
		}
	}
	if n := users.calls.Load(); n != 1 {
		t.Errorf("inner calls = %d, want 1", n)
	}

	users.active["u1"] = false
	cached.Invalidate("u1")

	active, _ := cached.IsActiveUser(ctx, "u1")
	if active {
		t.Error("expected fresh lookup after invalidate")
	}
	if n := users.calls.Load(); n != 2 {
		t.Errorf("inner calls = %d, want 2", n)
	}
}
