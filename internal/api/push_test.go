package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/labsuite/labops/internal/push"
)

// nextFrame reads SSE lines until the next data payload.
func nextFrame(t *testing.T, r *bufio.Reader) map[string]any {
	t.Helper()

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}

		payload, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data:")
		if !ok {
			continue
		}

		var frame map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &frame); err != nil {
			t.Fatalf("invalid frame %q: %v", payload, err)
		}

		return frame
	}
}

func TestSSE_StreamsScopedChanges(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.adminToken(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := srv.URL + "/api/sse/master-data?" + scopeL1 + "&access_token=" + tok
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("unexpected content type %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	if f := nextFrame(t, r); f["type"] != push.FrameConnected || f["companyId"] != company || f["locationId"] != location1 {
		t.Fatalf("expected connected frame, got %v", f)
	} else if id, _ := f["connectionId"].(string); !strings.HasPrefix(id, env.adminID+":"+company+":"+location1+":") {
		t.Errorf("unexpected connectionId %q", id)
	}

	// A change in another location must not reach this subscriber.
	expectStatus(t, env.do(http.MethodPost, "/api/admin/api", tok, apiBody("Other site", location2)), http.StatusCreated)
	expectStatus(t, env.do(http.MethodPost, "/api/admin/api", tok, apiBody("Metformin", location1)), http.StatusCreated)

	f := nextFrame(t, r)
	if f["type"] != push.FrameUpdate || f["dataType"] != "api" || f["action"] != "create" {
		t.Fatalf("unexpected update frame: %v", f)
	}
	record, _ := f["record"].(map[string]any)
	if record["api"] != "Metformin" {
		t.Errorf("expected the location-1 record, got %v", record)
	}
}

func TestSSE_RejectsForeignScope(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.token(t, env.adminID, "analyst", location1)

	w := env.do(http.MethodGet, "/api/sse/master-data?companyId=c1&locationId=l2", tok, "")
	expectStatus(t, w, http.StatusForbidden)

	w = env.do(http.MethodGet, "/api/sse/master-data?companyId=c1", tok, "")
	expectStatus(t, w, http.StatusBadRequest)
}

func TestWebSocket_ReceivesConnectedFrame(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tok := env.adminToken(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("ws%s/api/ws/master-data?%s", strings.TrimPrefix(srv.URL, "http"), scopeL1)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + tok}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow() //nolint:errcheck // test teardown.

	_, msg, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var frame map[string]any
	if err := json.Unmarshal(msg, &frame); err != nil {
		t.Fatal(err)
	}
	if frame["type"] != push.FrameConnected {
		t.Errorf("expected connected frame, got %v", frame)
	}

	expectStatus(t, env.do(http.MethodPost, "/api/admin/api", tok, apiBody("Lisinopril", location1)), http.StatusCreated)

	_, msg, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("read update: %v", err)
	}
	if !strings.Contains(string(msg), `"Lisinopril"`) {
		t.Errorf("expected update for the new record, got %s", msg)
	}
}
