package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/saasforge/backend/internal/contextkeys"
	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/handler"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.Identity, error)
}

// Auth creates a bearer-token authentication middleware.
func Auth(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "no token provided"})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
				return
			}

			id, err := verifier.VerifyToken(parts[1])
			if err != nil {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
				return
			}

			// Store user info in context using typed keys
			ctx := context.WithValue(r.Context(), contextkeys.UserID, id.UserID)
			ctx = context.WithValue(ctx, contextkeys.UserEmail, id.Email)
			ctx = context.WithValue(ctx, contextkeys.UserRole, id.Role)
			ctx = context.WithValue(ctx, contextkeys.Identity, id)
			ctx = context.WithValue(ctx, contextkeys.AccessToken, parts[1])
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
