package push

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/models"
)

var (
	scopeA = models.Scope{CompanyID: "c1", LocationID: "l1"}
	scopeB = models.Scope{CompanyID: "c2", LocationID: "l2"}
)

func startHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	h := NewHub(log, opts)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	return h
}

func register(t *testing.T, h *Hub, user string, sc models.Scope) *Client {
	t.Helper()

	c := NewClient(user, sc, TransportSSE)
	if err := h.Register(context.Background(), c); err != nil {
		t.Fatalf("register: %v", err)
	}

	return c
}

func receive(t *testing.T, c *Client) UpdateFrame {
	t.Helper()

	select {
	case msg, ok := <-c.Messages():
		if !ok {
			t.Fatal("client closed")
		}
		var f UpdateFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame received")
	}

	return UpdateFrame{}
}

func TestClientIDEncodesSubscription(t *testing.T) {
	c := NewClient("0190c8a2-7b3e-7c41-9d2a-5f1e8b6a4c01", scopeA, TransportWebSocket)

	parts := strings.Split(c.ID, ":")
	if len(parts) != 4 || parts[0] != "0190c8a2-7b3e-7c41-9d2a-5f1e8b6a4c01" || parts[1] != "c1" || parts[2] != "l1" {
		t.Errorf("client id = %q", c.ID)
	}
}

func TestConnectedFrameCarriesConnectionID(t *testing.T) {
	c := NewClient("u1", scopeA, TransportSSE)

	msg, err := connectedFrame(c)
	if err != nil {
		t.Fatal(err)
	}

	var f map[string]any
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatal(err)
	}
	if f["type"] != FrameConnected || f["connectionId"] != c.ID || f["companyId"] != "c1" || f["locationId"] != "l1" {
		t.Errorf("connected frame = %s", msg)
	}
	if _, ok := f["timestamp"]; !ok {
		t.Errorf("connected frame lacks timestamp: %s", msg)
	}
}

func TestHub_PublishIsScopeIsolated(t *testing.T) {
	h := startHub(t, Options{})

	a := register(t, h, "u1", scopeA)
	b := register(t, h, "u2", scopeB)

	h.Publish(models.ChangeEvent{
		DataType: "api", Action: "create", Scope: scopeA,
		Record: map[string]any{"api": "HPLC-GRADE WATER"}, Timestamp: time.Now(),
	})

	f := receive(t, a)
	if f.Type != FrameUpdate || f.DataType != "api" || f.Action != "create" {
		t.Errorf("unexpected frame %+v", f)
	}
	if f.CompanyID != "c1" || f.LocationID != "l1" {
		t.Errorf("frame scope = %s/%s", f.CompanyID, f.LocationID)
	}

	select {
	case msg := <-b.Messages():
		t.Fatalf("client in another scope received %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SameCompanyOtherLocationIsIsolated(t *testing.T) {
	h := startHub(t, Options{})

	other := register(t, h, "u1", models.Scope{CompanyID: "c1", LocationID: "l2"})
	h.Publish(models.ChangeEvent{DataType: "make", Action: "delete", Scope: scopeA})

	select {
	case msg := <-other.Messages():
		t.Fatalf("unexpected delivery %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_SeparatorInIDsDoesNotMergeScopes(t *testing.T) {
	h := startHub(t, Options{MaxPerScope: 1})

	sub := register(t, h, "u1", models.Scope{CompanyID: "acme", LocationID: "lab/1"})
	register(t, h, "u2", models.Scope{CompanyID: "acme/lab", LocationID: "1"})

	h.Publish(models.ChangeEvent{
		DataType: "api", Action: "create", Scope: models.Scope{CompanyID: "acme/lab", LocationID: "1"},
		Record: map[string]any{"api": "RESTRICTED"},
	})

	select {
	case msg := <-sub.Messages():
		t.Fatalf("subscriber of acme|lab/1 received %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ConnectionCaps(t *testing.T) {
	h := startHub(t, Options{MaxClients: 3, MaxPerScope: 2})

	register(t, h, "u1", scopeA)
	register(t, h, "u2", scopeA)

	if err := h.Register(context.Background(), NewClient("u3", scopeA, TransportSSE)); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("per-scope cap: got %v", err)
	}

	register(t, h, "u4", scopeB)

	if err := h.Register(context.Background(), NewClient("u5", models.Scope{CompanyID: "c3", LocationID: "l3"}, TransportSSE)); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("global cap: got %v", err)
	}

	if n := h.ClientCount(); n != 3 {
		t.Errorf("client count = %d, want 3", n)
	}
}

func TestHub_SlowClientIsPruned(t *testing.T) {
	h := startHub(t, Options{})

	slow := register(t, h, "u1", scopeA)
	for range clientSendBuffer + 1 {
		h.Publish(models.ChangeEvent{DataType: "api", Action: "update", Scope: scopeA})
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not pruned")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The buffered frames are still readable, then the channel is closed.
	n := 0
	for range slow.Messages() {
		n++
	}
	if n != clientSendBuffer {
		t.Errorf("buffered frames = %d, want %d", n, clientSendBuffer)
	}
}

func TestHub_UnregisterRemovesClient(t *testing.T) {
	h := startHub(t, Options{})

	c := register(t, h, "u1", scopeA)
	h.Unregister(c)

	select {
	case _, ok := <-c.Messages():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client not closed after unregister")
	}
}

func TestHub_ShutdownNotifiesClients(t *testing.T) {
	h := startHub(t, Options{})

	c := register(t, h, "u1", scopeA)
	h.Shutdown()

	msg, ok := <-c.Messages()
	if !ok || !strings.Contains(string(msg), `"shutdown"`) {
		t.Fatalf("expected shutdown frame, got %q (open=%v)", msg, ok)
	}

	if _, ok := <-c.Messages(); ok {
		t.Fatal("client should be closed after shutdown")
	}

	if err := h.Register(context.Background(), NewClient("u2", scopeA, TransportSSE)); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("register after shutdown: %v", err)
	}
}

func TestServeSSE_StreamsFrames(t *testing.T) {
	h := startHub(t, Options{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.ServeSSE(w, r, NewClient("u1", scopeA, TransportSSE), time.Time{}); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data:"); ok {
				lines <- data
			}
		}
		close(lines)
	}()

	next := func() map[string]any {
		t.Helper()
		select {
		case l := <-lines:
			var m map[string]any
			if err := json.Unmarshal([]byte(l), &m); err != nil {
				t.Fatalf("decode %q: %v", l, err)
			}
			return m
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
		return nil
	}

	if f := next(); f["type"] != FrameConnected || f["connectionId"] == "" || f["connectionId"] == nil {
		t.Fatalf("first frame = %v", f)
	}

	h.Publish(models.ChangeEvent{DataType: "column", Action: "create", Scope: scopeA, Record: map[string]any{"columnCode": "C18"}})

	f := next()
	if f["type"] != FrameUpdate || f["dataType"] != "column" {
		t.Fatalf("update frame = %v", f)
	}
}
