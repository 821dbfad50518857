package middleware

import (
	"context"
)

type contextKey int

const identityContextKey contextKey = iota

// Identity is the authenticated caller injected into the request context.
type Identity struct {
	UserID string
	Email  string
	// Restricted is true for tokens issued while a forced password reset is
	// pending; such callers may only finish the reset flow.
	Restricted bool
}

// ContextWithIdentity returns a new context carrying the given identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the identity from the context, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey).(*Identity)
	return id
}
