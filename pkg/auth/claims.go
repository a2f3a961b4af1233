// Package auth provides JWT-based authentication for medialert-engine.
// Tokens are HS256-signed with a shared secret; the subject is the numeric user id.
package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims accepted by the API.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the user's role and display name.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`            // 'admin' or 'client'
	Name  string `json:"name,omitempty"`  // Display name
	Email string `json:"email,omitempty"` // User email address
}

// UserID parses the subject claim as a user id.
func (c *Claims) UserID() (int64, error) {
	if c.Subject == "" {
		return 0, fmt.Errorf("missing subject in JWT claims")
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q in JWT claims", c.Subject)
	}
	return id, nil
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
