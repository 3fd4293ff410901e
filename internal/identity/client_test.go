package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saasforge/backend/internal/domain"
)

func TestClient_GetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/admin/users/" + testSub:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":            testSub,
				"email":         "Ada@Example.com",
				"user_metadata": map[string]any{"full_name": "Ada"},
				"created_at":    "2024-01-01T00:00:00Z",
				"updated_at":    "2024-01-02T00:00:00Z",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"msg":"User not found"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "service-key")

	u, err := c.GetUser(context.Background(), testSub)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ada@example.com", u.Email)
	require.NotNil(t, u.FullName)
	assert.Equal(t, "Ada", *u.FullName)
	assert.Nil(t, u.AvatarURL)

	missing, err := c.GetUser(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_VerifyEmailAndSignOut(t *testing.T) {
	var verifyBody map[string]string
	var signOutAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/verify":
			_ = json.NewDecoder(r.Body).Decode(&verifyBody)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
			signOutAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service-key")
	require.NoError(t, c.VerifyEmail(context.Background(), "hash-123", "signup"))
	assert.Equal(t, map[string]string{"type": "signup", "token_hash": "hash-123"}, verifyBody)

	require.NoError(t, c.SignOut(context.Background(), "user-access-token"))
	assert.Equal(t, "Bearer user-access-token", signOutAuth)
}

func TestClient_VerifyEmailRejected(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		rejected bool
	}{
		{"expired token", http.StatusForbidden, true},
		{"unknown token", http.StatusNotFound, true},
		{"provider outage", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"msg":"Token has expired or is invalid"}`))
			}))
			defer srv.Close()

			err := NewClient(srv.URL, "service-key").VerifyEmail(context.Background(), testSub, "signup")
			require.Error(t, err)
			assert.Equal(t, tt.rejected, errors.Is(err, domain.ErrConfirmationRejected))
		})
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"msg":"not allowed"}`))
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "service-key").DeleteUser(context.Background(), testSub)
	var idErr *Error
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, http.StatusForbidden, idErr.Status)
}
