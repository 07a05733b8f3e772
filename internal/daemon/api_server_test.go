package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"splicer/internal/logging"
	"splicer/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (*apiServer, *Daemon) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithModes())
	store := testsupport.MustOpenEventLog(t, cfg)
	d, err := New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Stop)
	return &apiServer{daemon: d, token: token, logger: logging.NewNop()}, d
}

func TestAPIServerStatus(t *testing.T) {
	srv, d := newTestAPI(t, "")

	w := httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp apiStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Running || resp.Window != "idle" || resp.ClockState != "null" {
		t.Fatalf("unexpected stopped status: %+v", resp)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w = httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Running || resp.RunID == "" {
		t.Fatalf("unexpected running status: %+v", resp)
	}
}

func TestAPIServerTriggerErrors(t *testing.T) {
	srv, _ := newTestAPI(t, "")

	cases := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{name: "wrong method", method: http.MethodGet, want: http.StatusMethodNotAllowed},
		{name: "bad body", method: http.MethodPost, body: "{", want: http.StatusBadRequest},
		{name: "not running", method: http.MethodPost, body: `{"lead_ms":0,"duration_ms":1000}`, want: http.StatusServiceUnavailable},
		{name: "negative duration", method: http.MethodPost, body: `{"duration_ms":-1}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, "/api/trigger", strings.NewReader(tc.body))
			srv.handler().ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPIServerEventsEmpty(t *testing.T) {
	srv, _ := newTestAPI(t, "")
	w := httptest.NewRecorder()
	srv.handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events?limit=5&all=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"events":[]}` {
		t.Fatalf("unexpected body: %s", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestAPI(t, "secret")

	cases := []struct {
		header string
		want   int
	}{
		{header: "", want: http.StatusUnauthorized},
		{header: "Bearer wrong", want: http.StatusUnauthorized},
		{header: "Basic secret", want: http.StatusUnauthorized},
		{header: "Bearer secret", want: http.StatusOK},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		srv.handler().ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("Authorization %q: expected %d, got %d", tc.header, tc.want, w.Code)
		}
	}
}

func TestAPIServerRestartReleasesWatcher(t *testing.T) {
	srv, _ := newTestAPI(t, "")
	srv.bind = "127.0.0.1:0"

	for i := range 3 {
		if err := srv.start(context.Background()); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		srv.mu.Lock()
		done := srv.done
		srv.mu.Unlock()
		srv.stop()
		select {
		case <-done:
		default:
			t.Fatalf("cycle %d: stop left the context watcher running", i)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for {
		srv.mu.Lock()
		stopped := srv.server == nil
		srv.mu.Unlock()
		if stopped {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server still running after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
	srv.stop()
}
