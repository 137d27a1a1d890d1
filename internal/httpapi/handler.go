package httpapi

import (
	"net/http"
	"time"

	"github.com/convkit/convertor/internal/logging"
)

// NewHandler wraps a Server's mux with the observability middleware.
func NewHandler(s *Server) http.Handler {
	return withObservability(NewMux(s))
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		pattern := r.Pattern
		if pattern == "" {
			// Keep it low-cardinality; never include RawQuery because it
			// carries tokens.
			pattern = r.Method + " " + r.URL.Path
		}

		metricsIncRequest(pattern, status)

		// Minimal access log. Never log the query string.
		if r.URL.Path != "/healthz" && r.URL.Path != "/metrics" {
			logging.With(
				"method", r.Method,
				"path", r.URL.Path,
				"pattern", pattern,
				"status", status,
				"dur", time.Since(start).Round(time.Millisecond).String(),
				"bytes", sw.bytes,
			).Info("http request")
		}
	})
}
