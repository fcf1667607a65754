package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/loyaltix/server/internal/auth"
	"github.com/loyaltix/server/internal/model"
)

type contextKey string

const (
	userKey   contextKey = "user"
	claimsKey contextKey = "claims"
)

// Authenticator verifies bearer access tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (model.User, *auth.Claims, error)
}

// Auth extracts the bearer token, verifies it and stores the user and claims
// on the request context.
func Auth(svc Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "Authorization required")
				return
			}

			user, claims, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRealm rejects tokens issued for a different realm. Mobile and web
// tokens are not interchangeable.
func RequireRealm(realm model.Realm) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.Realm != realm {
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromContext returns the authenticated user set by Auth.
func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(userKey).(model.User)
	return user, ok
}

// ClaimsFromContext returns the verified token claims set by Auth.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
