// Package models contains domain types for medialert-engine.
package models

import (
	"context"
)

// ActorContext carries the identity of the user a mutation is attributed to.
// It replaces a per-connection session variable: repositories and the audit
// recorder read it from the request context instead.
type ActorContext struct {
	// UserID is the id of the authenticated user (JWT subject).
	UserID int64

	// Role is the role claimed by the token (admin or client).
	Role string
}

// actorKey is the context key for storing actor information.
type actorKey struct{}

// WithActor returns a new context with the acting user attached.
func WithActor(ctx context.Context, a ActorContext) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// GetActor retrieves the acting user from the context.
// Returns the actor and true if present, otherwise a zero value and false.
func GetActor(ctx context.Context) (ActorContext, bool) {
	a, ok := ctx.Value(actorKey{}).(ActorContext)
	return a, ok
}

// ActorIDFromContext returns the acting user id, or nil when the request is
// anonymous (for example a failed login or a background job).
func ActorIDFromContext(ctx context.Context) *int64 {
	a, ok := GetActor(ctx)
	if !ok || a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}
