package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/models"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the JWT and attaches claims, token and the acting user
// to the request context for downstream handlers and repositories.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("Rejected request without valid token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			reject(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
			return
		}

		// ValidateRequest already checked the subject.
		userID, _ := claims.UserID()

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = context.WithValue(ctx, TokenKey, token)
		ctx = models.WithActor(ctx, models.ActorContext{UserID: userID, Role: claims.Role})
		next(w, r.WithContext(ctx))
	}
}

// RequireRole rejects authenticated requests whose role does not match.
// It must run after RequireAuth.
func (m *Middleware) RequireRole(role string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				reject(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			if err := m.authService.RequireRole(claims, role); err != nil {
				m.logger.Warn("Role check failed",
					zap.String("subject", claims.Subject),
					zap.String("role", claims.Role),
					zap.String("required_role", role),
					zap.String("path", r.URL.Path))
				reject(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}

			next(w, r)
		}
	}
}

// reject writes the JSON error body shared by all auth failures.
func reject(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
