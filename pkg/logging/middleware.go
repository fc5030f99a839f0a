package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey struct{}

// RequestIDHeader carries the request id in and out of the API.
const RequestIDHeader = "X-Request-ID"

// WithContext returns the request-scoped logger stored by Middleware, or
// the global logger.
func WithContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*zap.Logger); ok {
		return logger
	}
	return L()
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// Middleware gives every request an id, stores a logger carrying it in the
// request context, and logs completion. It must wrap the ServeMux so that
// the matched route and project id are known when the request finishes.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		logger := WithContext(r.Context()).With(zap.String("request_id", requestID))
		r = r.WithContext(context.WithValue(r.Context(), contextKey{}, logger))
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("route", r.Pattern),
			zap.String("url", r.URL.Path),
			zap.Int("status", rw.status),
			Size(rw.size),
			zap.Duration("duration", time.Since(start)),
		}
		if id := r.PathValue("id"); id != "" {
			fields = append(fields, Project(id))
		}
		if p := r.PathValue("path"); p != "" {
			fields = append(fields, Path(p))
		}
		if rw.status >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	})
}
