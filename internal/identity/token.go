// Package identity talks to the hosted identity provider (Supabase Auth):
// it verifies the access tokens it issues and calls its admin API.
package identity

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/saasforge/backend/internal/domain"
)

// audience is the aud claim of tokens issued to signed-in users.
const audience = "authenticated"

type accessClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// TokenVerifier validates HS256 access tokens signed with the project's JWT secret.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a TokenVerifier.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify validates the token and returns the caller it asserts.
func (v *TokenVerifier) Verify(tokenStr string) (*domain.Identity, error) {
	var claims accessClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid token subject")
	}

	return &domain.Identity{
		UserID:   sub.String(),
		Email:    strings.ToLower(claims.Email),
		Role:     metadataString(claims.AppMetadata, "role"),
		FullName: metadataString(claims.UserMetadata, "full_name"),
		Avatar:   metadataString(claims.UserMetadata, "avatar_url"),
	}, nil
}

func metadataString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
