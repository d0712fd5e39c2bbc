package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/pixelflow/logger"
)

// RequestLogger logs method, path, status, response size and duration of
// every request except probes. Run event streams are logged when they end.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbeEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := logger.MergeWithDuration(logger.Fields(
				"method", r.Method,
				logger.FieldPath, r.URL.Path,
				logger.FieldStatus, rec.status,
				"bytes", rec.written,
			), time.Since(start))
			if id := rec.Header().Get(HeaderRequestID); id != "" {
				fields[logger.FieldRequestID] = id
			}

			switch {
			case rec.status >= 500:
				log.Error("request completed", fields)
			case rec.status >= 400:
				log.Warn("request completed", fields)
			default:
				log.Debug("request completed", fields)
			}
		})
	}
}

func isProbeEndpoint(path string) bool {
	switch strings.TrimSuffix(path, "/") {
	case "/health", "/alive", "/ready", "/metrics", "/version":
		return true
	}
	return false
}

// recorder captures the status and size of a response. It keeps Flush and
// Unwrap reachable so event streams still flush through it.
type recorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (rw *recorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status, rw.wroteHeader = code, true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *recorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
