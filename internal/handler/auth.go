package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/saasforge/backend/internal/contextkeys"
	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/service"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	appURL string
}

// NewAuthHandler creates a new AuthHandler. appURL is the frontend origin
// that confirmation links redirect back to.
func NewAuthHandler(auth *service.AuthService, appURL string) *AuthHandler {
	return &AuthHandler{auth: auth, appURL: strings.TrimRight(appURL, "/")}
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := r.Context().Value(contextkeys.AccessToken).(string)
	if !ok || token == "" {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	if err := h.auth.SignOut(r.Context(), token); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Confirm handles GET /api/auth/confirm?token_hash=...&type=... It always
// redirects to the sign-in page, with either a message or an error in the
// query string.
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := url.Values{}

	if err := h.auth.ConfirmEmail(r.Context(), q.Get("token_hash"), q.Get("type")); err != nil {
		msg := "An unexpected error occurred"
		if appErr, ok := domain.AsAppError(err); ok {
			msg = appErr.Message
		}
		params.Set("error", msg)
	} else {
		params.Set("message", "Email confirmed! You can now sign in.")
	}

	http.Redirect(w, r, h.appURL+"/sign-in?"+params.Encode(), http.StatusSeeOther)
}
