package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithToken("test-token"))
	return srv, c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func respondOK(w http.ResponseWriter, status int, data any) {
	jsonResponse(w, status, map[string]any{"success": true, "data": data})
}

var scopeL1 = Scope{CompanyID: "c1", LocationID: "l1"}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/health": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"success": true, "status": "ok", "version": "1.2.0", "schema_version": 2})
		},
	})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "1.2.0" || resp.SchemaVersion != 2 {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestLoginStoresToken(t *testing.T) {
	var gotAuth string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/auth/login": func(w http.ResponseWriter, r *http.Request) {
			var req loginRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			if req.Email != "a@lab.test" || req.Password != "pw" {
				jsonResponse(w, 401, map[string]any{"success": false, "code": "unauthorized", "error": "invalid email or password"})
				return
			}
			respondOK(w, 200, LoginResult{Token: "fresh", Session: &Session{UserID: "u1", Role: "admin"}})
		},
		"GET /api/auth/session": func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			respondOK(w, 200, SessionInfo{Session: &Session{UserID: "u1"}})
		},
	})

	ctx := context.Background()
	res, err := c.Auth.Login(ctx, "a@lab.test", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Session.Role != "admin" {
		t.Errorf("unexpected session: %+v", res.Session)
	}

	if _, err := c.Auth.Session(ctx); err != nil {
		t.Fatalf("Session: %v", err)
	}
	if gotAuth != "Bearer fresh" {
		t.Errorf("auth header: got %q, want %q", gotAuth, "Bearer fresh")
	}

	if _, err := c.Auth.Login(ctx, "a@lab.test", "wrong"); statusOf(err) != 401 {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestRecordsCRUD(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/admin/api": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("locationId") != "l1" {
				jsonResponse(w, 400, map[string]any{"success": false, "code": "validation_error", "error": "validation failed"})
				return
			}
			respondOK(w, 200, []Record{{"id": "r1", "api": "Paracetamol"}})
		},
		"POST /api/admin/api": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			if body["companyId"] != "c1" || body["locationId"] != "l1" {
				t.Errorf("scope missing from body: %v", body)
			}
			body["id"] = "r2"
			respondOK(w, 201, body)
		},
		"PUT /api/admin/api": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
			respondOK(w, 200, body)
		},
		"DELETE /api/admin/api": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("companyId") != "" {
				t.Errorf("expected no scope params, got %s", r.URL.RawQuery)
			}
			respondOK(w, 200, Record{"id": r.URL.Query().Get("id")})
		},
	})

	ctx := context.Background()

	recs, err := c.Records.List(ctx, "api", scopeL1)
	if err != nil || len(recs) != 1 || recs[0].String("api") != "Paracetamol" {
		t.Fatalf("List: err=%v recs=%v", err, recs)
	}

	rec, err := c.Records.Create(ctx, "api", scopeL1, map[string]any{"api": "Ibuprofen"})
	if err != nil || rec.ID() != "r2" {
		t.Fatalf("Create: err=%v rec=%v", err, rec)
	}

	rec, err = c.Records.Update(ctx, "api", scopeL1, "r2", map[string]any{"api": "Ibuprofen 400"})
	if err != nil || rec.ID() != "r2" || rec.String("api") != "Ibuprofen 400" {
		t.Fatalf("Update: err=%v rec=%v", err, rec)
	}

	rec, err = c.Records.Delete(ctx, "api", Scope{}, "r2")
	if err != nil || rec.ID() != "r2" {
		t.Fatalf("Delete: err=%v rec=%v", err, rec)
	}
}

func TestRecordAudit(t *testing.T) {
	var query string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/admin/mobile-phase/audit": func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			respondOK(w, 200, []AuditEntry{{ID: 7, Action: "CREATE", EntityType: "mobilePhase"}})
		},
	})

	entries, err := c.Records.Audit(context.Background(), "mobile-phase", "mobilePhaseCode", scopeL1, &AuditOptions{
		Key: "MP-01", Action: "create", StartDate: "2026-01-01", Limit: 20,
	})
	if err != nil || len(entries) != 1 || entries[0].ID != 7 {
		t.Fatalf("Audit: err=%v entries=%v", err, entries)
	}

	want := "action=create&companyId=c1&limit=20&locationId=l1&mobilePhaseCode=MP-01&startDate=2026-01-01"
	if query != want {
		t.Errorf("query: got %q, want %q", query, want)
	}
}

func TestBatches(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/batches": func(w http.ResponseWriter, r *http.Request) {
			var req CreateBatchRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			respondOK(w, 201, Batch{ID: "b1", BatchNumber: req.BatchNumber, Status: "pending", Tests: []BatchTest{{ID: "t1", Status: "pending"}}})
		},
		"PATCH /api/batches/b1/tests/t1/status": func(w http.ResponseWriter, r *http.Request) {
			var req StatusRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			respondOK(w, 200, Batch{ID: "b1", Status: "in_progress", Tests: []BatchTest{{ID: "t1", Status: req.Status}}})
		},
		"PATCH /api/batches/b1/status": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 409, map[string]any{"success": false, "code": "conflict", "error": "batch has unfinished tests"})
		},
	})

	ctx := context.Background()

	b, err := c.Batches.Create(ctx, &CreateBatchRequest{
		BatchNumber: "B-1", ProductName: "P", CompanyID: "c1", LocationID: "l1",
		Tests: []BatchTestRequest{{TestTypeID: "tt"}},
	})
	if err != nil || b.ID != "b1" {
		t.Fatalf("Create: err=%v batch=%+v", err, b)
	}

	b, err = c.Batches.SetTestStatus(ctx, scopeL1, "b1", "t1", &StatusRequest{Status: "running"})
	if err != nil || b.Status != "in_progress" || b.Tests[0].Status != "running" {
		t.Fatalf("SetTestStatus: err=%v batch=%+v", err, b)
	}

	_, err = c.Batches.SetStatus(ctx, scopeL1, "b1", &StatusRequest{Status: "completed"})
	if !IsConflict(err) {
		t.Errorf("expected conflict, got %v", err)
	}
}

func TestAPIError(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/admin/employees": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 403, map[string]any{"success": false, "code": "forbidden", "error": "unauthorized location", "request_id": "rid-1"})
		},
		"POST /api/admin/employees": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 400, map[string]any{
				"success": false, "code": "validation_error", "error": "validation failed",
				"validationErrors": []string{"email must be a valid email address"},
			})
		},
	})

	ctx := context.Background()

	_, err := c.Employees.List(ctx, "c1")
	if !IsForbidden(err) {
		t.Fatalf("expected forbidden, got: %v", err)
	}
	if want := "labops: 403 forbidden: unauthorized location (request_id=rid-1)"; err.Error() != want {
		t.Errorf("error string: got %q, want %q", err.Error(), want)
	}

	_, err = c.Employees.Create(ctx, &CreateEmployeeRequest{Email: "nope"})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got: %v", err)
	}
	var apiErr *APIError
	if e, ok := err.(*APIError); ok {
		apiErr = e
	}
	if apiErr == nil || len(apiErr.ValidationErrors) != 1 {
		t.Errorf("expected one validation problem, got %+v", apiErr)
	}
}

func TestNonJSONError(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/batches": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad gateway", http.StatusBadGateway)
		},
	})

	_, err := c.Batches.List(context.Background(), scopeL1, "")
	if statusOf(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	if err.(*APIError).Code != "unknown" {
		t.Errorf("expected unknown code, got %+v", err)
	}
}
