package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/service"
)

// StatsSource counts rows in the billing mirror.
type StatsSource interface {
	BillingStats(ctx context.Context) (*domain.BillingStats, error)
}

// AdminHandler serves operator views of the billing mirror.
type AdminHandler struct {
	stats StatsSource
	subs  *service.SubscriptionService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(stats StatsSource, subs *service.SubscriptionService) *AdminHandler {
	return &AdminHandler{stats: stats, subs: subs}
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.BillingStats(r.Context())
	if err != nil {
		Error(w, domain.ErrInternal("failed to count billing rows", err))
		return
	}
	JSON(w, http.StatusOK, stats)
}

// GetSubscription handles GET /api/admin/subscriptions/{id}.
func (h *AdminHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subs.GetSubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}
