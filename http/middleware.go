package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	subjectContextKey   contextKey = "subject"
	requestIDContextKey contextKey = "request_id"
)

// SubjectFromContext returns the authenticated subject ID set by BearerAuth.
func SubjectFromContext(ctx context.Context) (uuid.UUID, bool) {
	subject, ok := ctx.Value(subjectContextKey).(uuid.UUID)
	return subject, ok
}

// RequestIDFromContext returns the correlation id set by RequestLogger.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// RequestLogger attaches a correlation id to the request context and logs
// each request after it completes.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)

			start := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID,
				"duration", time.Since(start),
			)
		})
	}
}

// BearerAuth enforces bearer-token authentication. The precise verification
// failure is logged with the request's correlation id; the caller always
// receives the same generic unauthorized response.
func BearerAuth(tokens TokenService, logger *slog.Logger, now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}

			subject, err := tokens.Verify(raw, now())
			if err != nil {
				logger.Warn("token verification failed",
					"request_id", RequestIDFromContext(r.Context()),
					"error", err,
				)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
