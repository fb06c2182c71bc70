package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/hongminglow/medimate-be/internal/auth"
	"github.com/hongminglow/medimate-be/internal/http/respond"
	"github.com/hongminglow/medimate-be/internal/models"
)

// AccessVerifier is satisfied by *auth.TokenManager.
type AccessVerifier interface {
	VerifyAccess(raw string) (*auth.AccessClaims, error)
}

// Authenticate requires a valid access token from the Authorization header
// or the access cookie, and attaches the caller's identity to the context.
func Authenticate(tokens AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := accessToken(r)
			if raw == "" {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			claims, err := tokens.VerifyAccess(raw)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := auth.WithIdentity(r.Context(), auth.Identity{UserID: claims.UserID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles rejects callers whose role is not listed. Mount after Authenticate.
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !slices.Contains(roles, id.Role) {
				respond.Error(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessToken(r *http.Request) string {
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if c, err := r.Cookie(auth.AccessCookieName); err == nil {
		return c.Value
	}
	return ""
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
