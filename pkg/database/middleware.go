package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/middleware"
)

// WithScope acquires one pooled connection per request and stores it in the
// request context, where repositories find it with GetScope. It runs after
// the auth middleware so the actor is already attached. The connection goes
// back to the pool when the handler returns.
func WithScope(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.Acquire(r.Context())
			if err != nil {
				logger.Error("Failed to acquire database connection",
					zap.String("path", r.URL.Path),
					zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
					zap.Error(err))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "database_unavailable",
					"message": "Database connection error",
				})
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}
