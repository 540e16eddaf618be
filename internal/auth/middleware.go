package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ziadkadry99/classrag/internal/access"
)

type contextKey struct{}

// PrincipalFrom returns the authenticated principal stored in the
// request context by Middleware, if any.
func PrincipalFrom(ctx context.Context) (access.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(access.Principal)
	return p, ok
}

// Middleware returns a chi-compatible middleware that resolves the
// Bearer token into a principal. Requests without a valid token are
// rejected with 401; there is no anonymous access tier.
func Middleware(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "authorization header is required", http.StatusUnauthorized)
				return
			}

			principal, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns a middleware that rejects principals whose role is
// not in the allowed set. It must run after Middleware.
func RequireRole(roles ...access.Role) func(http.Handler) http.Handler {
	allowed := make(map[access.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok || !allowed[principal.Role] {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
