package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"streakTracker/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	UserIDKey    contextKey = "user_id"
	UserIDHeader            = "X-User-ID"
)

// UserID trusts the X-User-ID header set by the auth proxy in front of the
// API. Requests without it get 401, malformed ids 400.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			logger.Warn("HTTP: missing user header",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("path", r.URL.Path))

			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":      "unauthorized",
				"request_id": GetRequestID(r.Context()),
			})
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			logger.Warn("HTTP: malformed user header",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("value", raw))

			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "invalid " + UserIDHeader,
				"request_id": GetRequestID(r.Context()),
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), id)))
	})
}

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// CronAuth requires "Authorization: Bearer <secret>". An empty secret locks
// the route entirely.
func CronAuth(secret string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if secret == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
				logger.Warn("HTTP: cron request rejected",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("client_ip", r.RemoteAddr))

				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
