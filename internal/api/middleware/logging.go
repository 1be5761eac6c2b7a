// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/collabhub/collabhub/internal/logger"
)

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// GetRequestID returns the short request ID assigned by RequestLogger.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// RequestLogger returns a middleware that logs HTTP requests.
// Without verbose only 4xx and 5xx responses are logged.
func RequestLogger(verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.New().String()[:8]

			w.Header().Set("X-Request-ID", requestID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, requestID))

			wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			switch {
			case wrapped.status >= 500:
				logger.Errorf("[%s] %s %s %d %d %v", requestID, r.Method, r.URL.Path, wrapped.status, wrapped.size, duration)
			case wrapped.status >= 400:
				logger.Warnf("[%s] %s %s %d %d %v", requestID, r.Method, r.URL.Path, wrapped.status, wrapped.size, duration)
			case verbose:
				logger.Infof("[%s] %s %s %d %d %v", requestID, r.Method, r.URL.Path, wrapped.status, wrapped.size, duration)
			}
		})
	}
}
