package auth

import (
	"context"

	"github.com/campfire-chat/campfire/store"
)

type contextKey int

const (
	userContextKey contextKey = iota
)

// SetUserInContext stores the authenticated user in the context.
func SetUserInContext(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, or nil when the request is
// unauthenticated.
func UserFromContext(ctx context.Context) *store.User {
	user, ok := ctx.Value(userContextKey).(*store.User)
	if !ok {
		return nil
	}
	return user
}
