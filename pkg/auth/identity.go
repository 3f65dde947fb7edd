package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrNotAuthenticated is returned when a request carries no user identity.
var ErrNotAuthenticated = errors.New("user not authenticated")

// Identity is the caller as seen by the services. Anonymous users have a
// locally generated id and no credentials.
type Identity struct {
	UserID    string
	Email     string
	Anonymous bool
}

// Source resolves the current user for a request.
type Source interface {
	CurrentIdentity(ctx context.Context) (Identity, error)
}

type identityKey struct{}

// WithIdentity 将身份写入 context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext 从 context 读取身份
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || strings.TrimSpace(id.UserID) == "" {
		return Identity{}, false
	}
	return id, true
}

// ContextSource reads the identity placed on the context by the auth middleware.
type ContextSource struct{}

func (ContextSource) CurrentIdentity(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, ErrNotAuthenticated
	}
	return id, nil
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Identity, error)

func (f SourceFunc) CurrentIdentity(ctx context.Context) (Identity, error) { return f(ctx) }
