package auth

import (
	"context"
	"fmt"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns 0 if not authenticated or the subject is not a valid id.
func GetUserIDFromContext(ctx context.Context) int64 {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return 0
	}
	id, err := claims.UserID()
	if err != nil {
		return 0
	}
	return id
}

// RequireUserIDFromContext extracts the user ID from context and returns an error if not found.
func RequireUserIDFromContext(ctx context.Context) (int64, error) {
	id := GetUserIDFromContext(ctx)
	if id == 0 {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return id, nil
}
