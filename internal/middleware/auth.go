// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/balalab/portal/internal/models"
	"github.com/balalab/portal/internal/token"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// TokenParser verifies a bearer token string and returns its claims.
type TokenParser interface {
	Parse(tokenString string) (*token.Claims, error)
}

// Auth enforces bearer-token authentication.
//
// The token normally arrives in the Authorization header. Preview requests
// are issued from a browsing context that cannot set headers, so for paths
// ending in /preview the token is also accepted as a ?token= query
// parameter. On success the verified claims are stored in the request
// context for downstream handlers.
func Auth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" && strings.HasSuffix(r.URL.Path, "/preview") {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				http.Error(w, "authorization required", http.StatusUnauthorized)
				return
			}

			claims, err := parser.Parse(raw)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated user is not an admin.
// It must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaimsFromContext(r.Context())
		if claims == nil || claims.Role != models.RoleAdmin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaimsFromContext extracts the verified token claims from the request
// context. Returns nil if the request was not authenticated.
func GetClaimsFromContext(ctx context.Context) *token.Claims {
	val := ctx.Value(claimsKey)
	if c, ok := val.(*token.Claims); ok {
		return c
	}
	return nil
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
