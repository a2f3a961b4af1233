package handlers

import (
	"net/http"

	"github.com/medialert/medialert-engine/pkg/auth"
	"github.com/medialert/medialert-engine/pkg/models"
)

// ScopeMiddleware attaches a database scope to the request context.
// It runs after authentication.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// adminOnly wraps handlers with auth, the admin role check and the DB scope.
func adminOnly(authMiddleware *auth.Middleware, scope ScopeMiddleware) func(http.HandlerFunc) http.HandlerFunc {
	requireAdmin := authMiddleware.RequireRole(models.RoleAdmin)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(requireAdmin(scope(next)))
	}
}

// authenticated wraps handlers with auth and the DB scope, for any role.
func authenticated(authMiddleware *auth.Middleware, scope ScopeMiddleware) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(scope(next))
	}
}
