package main

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/trace"
	"strconv"
	"time"

	"github.com/GabrielLGL/WEGOGYM-sub001/internal/errors"
	"github.com/GabrielLGL/WEGOGYM-sub001/internal/logging"
)

// responseRecorder remembers the status code and size of a response for logging and metrics.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w, status: http.StatusOK, bytes: 0, wrote: false}
}

func (rr *responseRecorder) WriteHeader(status int) {
	if !rr.wrote {
		rr.status = status
		rr.wrote = true
	}
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.wrote = true
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

// Unwrap lets http.ResponseController reach the Flusher and deadline setters of the underlying writer.
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// apiHeaders are set on every response. The API serves no documents, so nothing may be loaded or framed.
//
//nolint:gochecknoglobals // read-only table.
var apiHeaders = map[string]string{
	"Content-Security-Policy":    "default-src 'none'; frame-ancestors 'none'; base-uri 'none';",
	"Referrer-Policy":            "no-referrer",
	"X-Content-Type-Options":     "nosniff",
	"X-Frame-Options":            "deny",
	"Cross-Origin-Opener-Policy": "same-origin",
	"Strict-Transport-Security":  "max-age=63072000; includeSubDomains; preload",
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range apiHeaders {
			w.Header().Set(name, value)
		}
		next.ServeHTTP(w, r)
	})
}

// noCache keeps clients and proxies from serving stale session state.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		next.ServeHTTP(w, r)
	})
}

// logAndTraceRequest logs each request with a trace ID stored in the context and wraps it in a runtime/trace task
// named after the matched route, so that captured flight recordings can be correlated with the logs.
func (app *application) logAndTraceRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		traceID := rand.Text()
		ctx := logging.WithAttrs(r.Context(),
			slog.String("trace_id", traceID),
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.String("route", r.Pattern),
		)
		ctx, task := trace.NewTask(ctx, "HTTP "+r.Pattern)
		defer task.End()
		if trace.IsEnabled() {
			trace.Log(ctx, "trace_id", traceID)
		}
		r = r.WithContext(ctx)
		app.logger.LogAttrs(ctx, slog.LevelDebug, "received request")

		rr := newResponseRecorder(w)
		next.ServeHTTP(rr, r)

		duration := time.Since(start)
		app.metrics.CounterRequests.WithLabelValues(r.Method, strconv.Itoa(rr.status)).Inc()
		app.metrics.HistRequestDuration.Observe(duration.Seconds())
		if trace.IsEnabled() {
			trace.Logf(ctx, "response", "status=%d bytes=%d", rr.status, rr.bytes)
		}

		level := slog.LevelInfo
		if rr.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		app.logger.LogAttrs(ctx, level, "request completed", slog.Int("status_code", rr.status),
			slog.Int("bytes", rr.bytes), slog.Duration("duration", duration))
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if excp := recover(); excp != nil {
				app.metrics.CounterHandlePanic.Inc()
				app.serverError(w, r, errors.DecoratePanic(excp))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// crossOriginProtection rejects cross-origin state-changing requests from browsers.
func (app *application) crossOriginProtection(next http.Handler) http.Handler {
	protection := http.NewCrossOriginProtection()
	return protection.Handler(next)
}

// timeout times out the request and cancels the context using http.TimeoutHandler. Timed out requests capture an
// execution trace when the flight recorder is enabled.
func (app *application) timeout(next http.Handler) http.Handler {
	timeout := defaultTimeout - (200 * time.Millisecond) //nolint:mnd // writing the response takes time.
	handler := http.TimeoutHandler(next, timeout, `{"error":"timed out"}`)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rr := newResponseRecorder(w)
		handler.ServeHTTP(rr, r)
		if rr.status == http.StatusServiceUnavailable && app.flightRecorder != nil {
			app.flightRecorder.Capture(r.Context(), "timeout")
		}
	})
}
