package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/MattHolloway/gatekeep/internal/models"
	pkghttp "github.com/MattHolloway/gatekeep/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"
)

// RequireAuth validates the session token and injects its claims into context.
// The token is read from the access_token cookie; an Authorization: Bearer
// header is accepted as a fallback for non-browser clients.
func RequireAuth(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := GetSessionCookie(r)
			if err != nil || tokenString == "" {
				tokenString = bearerToken(r)
			}
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			claims, err := tm.VerifySessionToken(tokenString)
			if err != nil {
				if err == models.ErrExpired {
					pkghttp.WriteUnauthorized(w, "Session has expired")
					return
				}
				pkghttp.WriteUnauthorized(w, "Invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
