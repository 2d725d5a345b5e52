// Package security provides caller identity propagation and feature flags.
package security

import "context"

type userIDKey struct{}

// WithUserID adds user ID to context.
// Used by middleware to propagate the identified caller through the request chain.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID retrieves user ID from context.
// Returns empty string for anonymous callers.
//
// Usage in domain layer:
//
//	actorID := security.GetUserID(ctx)
//	m.SetCreatedBy(actorID)
func GetUserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey{}).(string); ok {
		return uid
	}
	return ""
}
