package api

import (
	"context"
)

// ownerContextKey is the context key for the authenticated owner.
type ownerContextKey struct{}

// WithOwner returns a new context with the owner attached.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFromContext extracts the owner set by AuthMiddleware.
// Returns false if not present or empty.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerContextKey{}).(string)
	if !ok || owner == "" {
		return "", false
	}
	return owner, true
}

// MustOwnerFromContext extracts the owner or panics.
// Use only behind AuthMiddleware.
func MustOwnerFromContext(ctx context.Context) string {
	owner, ok := OwnerFromContext(ctx)
	if !ok {
		panic("owner not in context: middleware misconfiguration")
	}
	return owner
}
