package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mwhitfield/aegis/internal/models"
	pkghttp "github.com/mwhitfield/aegis/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing token claims in context
	UserContextKey contextKey = "user"
)

// AccessValidator validates a presented access token. Implemented by the
// token service, which checks the blacklist before signature and type.
type AccessValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*models.TokenClaims, error)
}

// Middleware validates bearer access tokens and injects claims into context.
// Validation failures never fall through: an unverifiable token is denied.
func Middleware(validator AccessValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := BearerToken(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "missing or malformed authorization header")
				return
			}

			claims, err := validator.ValidateAccessToken(r.Context(), tokenString)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrTokenExpired):
					pkghttp.WriteError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired")
				case errors.Is(err, models.ErrServiceUnavailable):
					pkghttp.WriteServiceUnavailable(w, "unable to verify token status")
				default:
					pkghttp.WriteUnauthorized(w, "invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole enforces a role claim. Must be used after Middleware.
// Roles are owned by the external directory and carried as a custom claim;
// this service only reads them.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			if claims.Role != role {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext returns the token claims stored by Middleware, or nil.
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, _ := r.Context().Value(UserContextKey).(*models.TokenClaims)
	return claims
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}
