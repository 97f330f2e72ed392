package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/ratatosk/internal/config"
	"github.com/friendsincode/ratatosk/internal/routing"
)

func newTestServer(t *testing.T, routes string) *Server {
	t.Helper()

	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte(routes), 0o644); err != nil {
		t.Fatalf("write routes file: %v", err)
	}

	cfg := &config.Config{
		Environment:         "test",
		HTTPBind:            "127.0.0.1",
		HTTPPort:            0,
		RoutesPath:          path,
		WatchRoutes:         false,
		TimeSource:          config.TimeSourceWall,
		BackendDialTimeout:  100 * time.Millisecond,
		BackendReadTimeout:  100 * time.Millisecond,
		BackendWriteTimeout: 100 * time.Millisecond,
		BackendPoolSize:     2,
		ShutdownTimeout:     time.Second,
	}

	srv, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func doRequest(srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.HTTPServer().Handler.ServeHTTP(rec, req)
	return rec
}

const nullRoutes = "route:\n  type: \"null\"\n"

func TestHealthzReportsOK(t *testing.T) {
	srv := newTestServer(t, nullRoutes)

	rec := doRequest(srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz body = %q", rec.Body.String())
	}
}

func TestCacheGetMissIs404(t *testing.T) {
	srv := newTestServer(t, nullRoutes)

	rec := doRequest(srv, http.MethodGet, "/cache/squirrel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCachePutNotStoredIs409(t *testing.T) {
	srv := newTestServer(t, nullRoutes)

	rec := doRequest(srv, http.MethodPut, "/cache/squirrel", "acorns")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCacheDeleteMissIs404(t *testing.T) {
	srv := newTestServer(t, nullRoutes)

	rec := doRequest(srv, http.MethodDelete, "/cache/squirrel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

// valueHandle answers every operation with a fixed hit.
type valueHandle struct {
	value string
	flags uint32
}

func (h valueHandle) Name() string { return "stub" }

func (h valueHandle) Route(_ context.Context, _ *routing.Request) (*routing.Reply, error) {
	return &routing.Reply{Result: routing.ResultFound, Value: []byte(h.value), Flags: h.flags, Origin: "stub"}, nil
}

func (h valueHandle) CouldRouteTo(*routing.Request) []routing.Handle { return nil }

func TestCacheGetHitReturnsValueAndFlags(t *testing.T) {
	srv := newTestServer(t, nullRoutes)
	srv.Table().Store(valueHandle{value: "acorns", flags: 42})

	rec := doRequest(srv, http.MethodGet, "/cache/squirrel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "acorns" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Cache-Flags") != "42" {
		t.Fatalf("flags header = %q", rec.Header().Get("X-Cache-Flags"))
	}
}

func TestCachePutValidation(t *testing.T) {
	srv := newTestServer(t, nullRoutes)

	cases := []struct {
		name   string
		target string
	}{
		{"unknown op", "/cache/squirrel?op=nonsense"},
		{"non-storage op", "/cache/squirrel?op=get"},
		{"bad ttl", "/cache/squirrel?ttl=soon"},
		{"negative ttl", "/cache/squirrel?ttl=-1"},
		{"bad flags", "/cache/squirrel?flags=many"},
	}
	for _, tc := range cases {
		rec := doRequest(srv, http.MethodPut, tc.target, "v")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.name, rec.Code)
		}
	}
}

func TestCounterBadDeltaIs400(t *testing.T) {
	srv := newTestServer(t, nullRoutes)

	rec := doRequest(srv, http.MethodPost, "/cache/hits/incr?delta=lots", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIntrospectReportsMigrationDestinations(t *testing.T) {
	// A migration that started at epoch zero with an interval far in the
	// future: reads still go to the old side, deletes go to both.
	srv := newTestServer(t, `
route:
  type: migrate
  start_time: 0
  interval: 4000000000
  from: {type: "null"}
  to: {type: error}
`)

	var out struct {
		Root         string   `json:"root"`
		Op           string   `json:"op"`
		Key          string   `json:"key"`
		Destinations []string `json:"destinations"`
	}

	rec := doRequest(srv, http.MethodGet, "/routes/introspect?key=squirrel&op=get", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Root != "migrate" || out.Op != "get" || len(out.Destinations) != 1 || out.Destinations[0] != "null" {
		t.Fatalf("get introspection = %+v", out)
	}

	rec = doRequest(srv, http.MethodGet, "/routes/introspect?key=squirrel&op=delete", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Destinations) != 2 || out.Destinations[0] != "null" || out.Destinations[1] != "error" {
		t.Fatalf("delete introspection = %+v", out)
	}
}

func TestIntrospectValidation(t *testing.T) {
	srv := newTestServer(t, nullRoutes)

	if rec := doRequest(srv, http.MethodGet, "/routes/introspect", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: status = %d", rec.Code)
	}
	if rec := doRequest(srv, http.MethodGet, "/routes/introspect?key=k&op=nonsense", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad op: status = %d", rec.Code)
	}
}

func TestServerRejectsBrokenRouteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte("route:\n  type: no-such-strategy\n"), 0o644); err != nil {
		t.Fatalf("write routes file: %v", err)
	}

	cfg := &config.Config{
		Environment: "test",
		RoutesPath:  path,
		TimeSource:  config.TimeSourceWall,
	}
	if _, err := New(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected a config error")
	}
}
