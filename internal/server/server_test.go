package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/star/across/internal/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestRoutes(t *testing.T) {
	var ready atomic.Bool
	metrics.IncCacheHits()
	srv := New(":0", testLogger(), ready.Load)

	tests := []struct {
		name     string
		method   string
		path     string
		ready    bool
		wantCode int
		wantBody string
	}{
		{"healthz", "GET", "/healthz", false, http.StatusOK, "ok"},
		{"readyz before load", "GET", "/readyz", false, http.StatusServiceUnavailable, "not ready"},
		{"readyz after load", "GET", "/readyz", true, http.StatusOK, "ready"},
		{"metrics", "GET", "/metrics", true, http.StatusOK, "across_ephemeris_cache_hits_total"},
		{"unknown path", "GET", "/api/v1/windows", true, http.StatusNotFound, ""},
		{"wrong method", "POST", "/healthz", true, http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ready.Store(tt.ready)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q", tt.wantBody)
			}
		})
	}
}

func TestServerTimeouts(t *testing.T) {
	hs := New(":8081", testLogger(), nil).HTTPServer()
	if hs.Addr != ":8081" {
		t.Errorf("Addr = %q", hs.Addr)
	}
	if hs.ReadHeaderTimeout == 0 || hs.WriteTimeout == 0 {
		t.Error("timeouts not set")
	}
}
