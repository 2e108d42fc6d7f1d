package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/api"
	"github.com/labsuite/labops/internal/crypto"
	"github.com/labsuite/labops/internal/middleware"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/push"
	"github.com/labsuite/labops/internal/security"
	"github.com/labsuite/labops/internal/service"
	"github.com/labsuite/labops/internal/session"
	"github.com/labsuite/labops/internal/store/memory"
)

const (
	company   = "c1"
	location1 = "l1"
	location2 = "l2"

	adminEmail    = "admin@lab.test"
	adminPassword = "correct horse battery"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// syncAudit writes audit records inline so tests can read them back at once.
type syncAudit struct {
	store *memory.AuditStore
}

func (a syncAudit) Enqueue(rec *models.AuditRecord) {
	_ = a.store.InsertAudit(context.Background(), rec)
}

// testEnv is a full router over in-memory storage.
type testEnv struct {
	router    http.Handler
	audit     *memory.AuditStore
	employees *memory.EmployeeStore
	sessions  *session.Manager
	hub       *push.Hub
	adminID   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := t.Context()
	log := testLogger()

	auditStore := memory.NewAuditStore()
	masters := memory.NewMasterStore()
	employees := memory.NewEmployeeStore(auditStore)
	batches := memory.NewBatchStore()

	hasher := crypto.NewHasher(crypto.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	hash, err := hasher.Hash(adminPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	adminID := employees.AddUser(
		models.User{Email: adminEmail, Name: "Admin", Role: models.RoleAdmin, PasswordHash: hash, Active: true},
		[]models.CompanyGrant{{
			CompanyID: company,
			Locations: []models.LocationGrant{{LocationID: location1}, {LocationID: location2}},
		}},
	)

	hub := push.NewHub(log, push.Options{})
	go hub.Run(ctx)

	sessions := session.NewManager(strings.Repeat("k", 32), time.Hour)
	sink := syncAudit{store: auditStore}

	deps := &api.RouterDeps{
		Log:       log,
		Hub:       hub,
		Masters:   service.NewMasterService(masters, sink, hub, log),
		Audit:     service.NewAuditService(auditStore),
		Auth:      service.NewAuthService(employees, hasher, sessions, security.NewBruteForceGuard(ctx, log), log),
		Employees: service.NewEmployeeService(employees, hasher, sink, log),
		Batches:   service.NewBatchService(batches, masters, sink, hub, log),
		Sessions:  sessions,
		Users:     middleware.NewCachedUserChecker(ctx, employees),
		Version:   "test-v1",
	}

	return &testEnv{
		router:    api.NewRouter(ctx, deps),
		audit:     auditStore,
		employees: employees,
		sessions:  sessions,
		hub:       hub,
		adminID:   adminID,
	}
}

// token signs a session for userID with the given role and locations of company.
func (e *testEnv) token(t *testing.T, userID, role string, locations ...string) string {
	t.Helper()

	grant := models.CompanyGrant{CompanyID: company}
	for _, l := range locations {
		grant.Locations = append(grant.Locations, models.LocationGrant{LocationID: l})
	}

	tok, _, err := e.sessions.Issue(&models.Session{
		UserID: userID, Email: userID + "@lab.test", Role: role, Companies: []models.CompanyGrant{grant},
	})
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}

	return tok
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	return e.token(t, e.adminID, models.RoleAdmin, location1, location2)
}

// do performs a request with an optional bearer token.
func (e *testEnv) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	return w
}

// envelope is the decoded response body.
type envelope struct {
	Success          bool            `json:"success"`
	Data             json.RawMessage `json:"data"`
	Error            string          `json:"error"`
	Code             string          `json:"code"`
	RequestID        string          `json:"request_id"`
	ValidationErrors []string        `json:"validationErrors"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}

	return env
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	env := decode(t, w)
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("invalid data %s: %v", env.Data, err)
	}

	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()

	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}
