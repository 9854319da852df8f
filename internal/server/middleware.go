package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// statusRecorder captures the response status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	// status is the written status code, defaulting to 200.
	status int
}

// WriteHeader records the status code before delegating.
func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack hands the connection over to a websocket upgrade through the
// recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

// instrument wraps a handler with request logging and Prometheus metrics.
// handlerName partitions the metrics by logical endpoint rather than raw
// URL path.
func (s *Server) instrument(handlerName string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, handlerName, fmt.Sprintf("%d", rec.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, handlerName).Observe(elapsed.Seconds())

		s.log.Debug("server: request",
			slog.String("method", r.Method),
			slog.String("handler", handlerName),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", elapsed),
		)
	})
}

// requireAPIKey enforces Bearer token authentication when an API key is
// configured. Without a configured key the middleware is a pass-through
// (development mode).
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid or missing API key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
