package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"rrdexport/internal/config"
)

// TestPprofRouter_ServesIndex verifies the profiling index is mounted under /debug/pprof.
// Params: t test context.
// Returns: none.
func TestPprofRouter_ServesIndex(t *testing.T) {
	recorder := httptest.NewRecorder()
	pprofRouter().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	pprofRouter().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 outside /debug/pprof, got %d", recorder.Code)
	}
}

// TestStartPprofServer_Disabled verifies a disabled listener returns a no-op stop.
// Params: t test context.
// Returns: none.
func TestStartPprofServer_Disabled(t *testing.T) {
	stop, err := startPprofServer(context.Background(), config.PprofConfig{}, nil)
	if err != nil {
		t.Fatalf("startPprofServer: %v", err)
	}
	stop()
}
