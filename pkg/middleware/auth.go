package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/httputil"
)

// TokenResolver resolves a presented API token to its user
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*auth.User, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	tokens   TokenResolver
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenResolver, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication.
// Expects "Authorization: Bearer <token>".
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		user, err := m.tokens.ResolveToken(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := auth.WithCaller(r.Context(), &auth.Caller{
			UserID:  user.ID,
			IsAdmin: user.IsAdmin,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
