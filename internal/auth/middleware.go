package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofrs/uuid"

	"cafehub/internal/user"
)

type contextKey struct{}

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID uuid.UUID
	Role   user.Role
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying the given identity. Used by
// middleware and by handler tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

type unauthorizedFunc func(w http.ResponseWriter, message string)

// Middleware validates the Bearer token and attaches the caller identity.
// The onUnauthorized callback lets the HTTP layer keep its own response
// envelope.
func (m *Manager) Middleware(onUnauthorized unauthorizedFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				onUnauthorized(w, "missing authorization header")
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				onUnauthorized(w, "authorization header must be a bearer token")
				return
			}

			claims, err := m.ParseAccess(token)
			if err != nil {
				onUnauthorized(w, "invalid or expired token")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				onUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: userID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not in the allow
// list. Must run after Middleware.
func RequireRole(onForbidden unauthorizedFunc, roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok || !allowed[id.Role] {
				onForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
