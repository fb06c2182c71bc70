package auth

import (
	"context"

	"github.com/hongminglow/medimate-be/internal/models"
)

// Identity is what a verified access token proves about the caller.
type Identity struct {
	UserID string
	Role   models.Role
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity set by the authentication middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Cookie names carrying the session tokens.
const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)
