package handler

import (
	"net/http"

	"github.com/saasforge/backend/internal/contextkeys"
	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/service"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	auth *service.AuthService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(auth *service.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// Get handles GET /api/user.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := r.Context().Value(contextkeys.Identity).(*domain.Identity)
	if !ok || id == nil {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), id)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// Update handles PUT /api/user.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := r.Context().Value(contextkeys.Identity).(*domain.Identity)
	if !ok || id == nil {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var body struct {
		Profile domain.UpdateProfileRequest `json:"profile"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		Error(w, err)
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), id, &body.Profile)
	if err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"profile": user})
}

// Delete handles DELETE /api/user.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := r.Context().Value(contextkeys.Identity).(*domain.Identity)
	if !ok || id == nil {
		JSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	if err := h.auth.DeleteAccount(r.Context(), id); err != nil {
		Error(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}
