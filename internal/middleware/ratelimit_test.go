package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labsuite/labops/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func limitedRouter(t *testing.T, rate, burst int, key middleware.KeyFunc, pre ...gin.HandlerFunc) (*gin.Engine, *fakeClock) {
	t.Helper()

	rl := middleware.NewRateLimiter(t.Context(), "test", rate, burst, key)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	middleware.SetClock(rl, clock.Now)

	r := gin.New()
	r.Use(pre...)
	r.Use(rl.Handler())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r, clock
}

func hit(r http.Handler, addr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BurstThenBlock(t *testing.T) {
	r, _ := limitedRouter(t, 1, 2, nil)

	for i := range 2 {
		if w := hit(r, "1.2.3.4:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := hit(r, "1.2.3.4:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
}

func TestRateLimiter_IndependentKeys(t *testing.T) {
	r, _ := limitedRouter(t, 1, 1, nil)

	hit(r, "1.1.1.1:1000")

	if w := hit(r, "2.2.2.2:1000"); w.Code != http.StatusOK {
		t.Fatalf("different IP should not be rate limited, got %d", w.Code)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	r, clock := limitedRouter(t, 2, 1, nil)

	hit(r, "5.5.5.5:1000")
	if w := hit(r, "5.5.5.5:1000"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 before refill, got %d", w.Code)
	}

	clock.Advance(500 * time.Millisecond)

	if w := hit(r, "5.5.5.5:1000"); w.Code != http.StatusOK {
		t.Fatalf("expected a token after half a second at 2/s, got %d", w.Code)
	}
}

func TestRateLimiter_ByUserOrIP(t *testing.T) {
	// Two users behind one address get separate buckets.
	asUser := func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set(middleware.UserIDKey, uid)
		}
	}
	r, _ := limitedRouter(t, 1, 1, middleware.ByUserOrIP, asUser)

	send := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = "9.9.9.9:1000"
		req.Header.Set("X-Test-User", user)
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("u1"); code != http.StatusOK {
		t.Fatalf("u1 first: %d", code)
	}
	if code := send("u1"); code != http.StatusTooManyRequests {
		t.Fatalf("u1 second: expected 429, got %d", code)
	}
	if code := send("u2"); code != http.StatusOK {
		t.Fatalf("u2 should have its own bucket, got %d", code)
	}
	if code := send(""); code != http.StatusOK {
		t.Fatalf("anonymous should be keyed by IP, got %d", code)
	}
}
