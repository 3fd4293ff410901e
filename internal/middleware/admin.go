package middleware

import (
	"net/http"

	"github.com/saasforge/backend/internal/contextkeys"
	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/handler"
)

// AdminOnly lets through callers whose identity carries the admin role in its
// provider-managed app metadata. Must run after Auth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := r.Context().Value(contextkeys.Identity).(*domain.Identity)
		if !ok || id == nil || !id.IsAdmin() {
			handler.Error(w, domain.ErrForbidden("forbidden: admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
