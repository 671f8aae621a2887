package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/metrics"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/testhelpers"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()
	return &application{ //nolint:exhaustruct // middleware only needs logging and metrics.
		logger:  testhelpers.NewLogger(testhelpers.NewWriter(t)),
		metrics: metrics.NewTestManager(),
	}
}

func Test_application_timeout(t *testing.T) {
	tests := []struct {
		name     string
		sleep    time.Duration
		timesOut bool
	}{
		{
			name:     "completes within timeout",
			sleep:    500 * time.Millisecond,
			timesOut: false,
		},
		{
			name:     "times out",
			sleep:    3 * time.Second,
			timesOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				app := newTestApplication(t)
				handler := app.timeout(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					select {
					case <-time.After(tt.sleep):
						app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
					case <-r.Context().Done():
					}
				}))

				req := httptest.NewRequest(http.MethodGet, "/api/healthy", nil)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				if tt.timesOut {
					if w.Code != http.StatusServiceUnavailable {
						t.Errorf("Expected status 503 on timeout, got %d", w.Code)
					}
					if !strings.Contains(w.Body.String(), "timed out") {
						t.Errorf("Expected timeout message in response body, got: %s", w.Body.String())
					}
				} else if w.Code != http.StatusOK {
					t.Errorf("Expected status 200, got %d", w.Code)
				}
			})
		})
	}
}

func Test_application_recoverPanic(t *testing.T) {
	app := newTestApplication(t)
	handler := app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Expected JSON error response, got Content-Type %q", got)
	}
	if got := testutil.ToFloat64(app.metrics.CounterHandlePanic); got != 1 {
		t.Errorf("Expected 1 recorded panic, got %v", got)
	}
}

func Test_application_logAndTraceRequest(t *testing.T) {
	app := newTestApplication(t)
	handler := app.logAndTraceRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.notFound(w, r)
	}))

	for range 2 {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	}

	if got := testutil.ToFloat64(app.metrics.CounterRequests.WithLabelValues(http.MethodGet, "404")); got != 2 {
		t.Errorf("Expected 2 requests counted with status 404, got %v", got)
	}
}

func Test_secureHeaders(t *testing.T) {
	handler := secureHeaders(noCache(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	wantHeaders := map[string]string{
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'; base-uri 'none';",
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "deny",
		"Cache-Control":           "no-cache, no-store, must-revalidate",
	}
	for header, want := range wantHeaders {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
