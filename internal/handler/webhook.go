package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/metrics"
	"github.com/saasforge/backend/pkg/payment"
)

// maxWebhookBody caps the bytes read from a webhook delivery.
const maxWebhookBody = 1 << 20

// EventVerifier authenticates a raw webhook delivery.
type EventVerifier interface {
	Verify(payload []byte, signature string) (*domain.Event, error)
}

// EventDispatcher applies a verified event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *domain.Event) error
}

// WebhookHandler receives payment-provider webhooks.
type WebhookHandler struct {
	verifier   EventVerifier
	dispatcher EventDispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(verifier EventVerifier, dispatcher EventDispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleStripe handles POST /api/stripe/webhook. Any failure answers 400 so
// the provider redelivers; replays are safe because reconciliation is
// idempotent.
func (h *WebhookHandler) HandleStripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	event, err := h.verifier.Verify(body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(string(domain.FamilyUnknown), "rejected").Inc()
		h.logger.WarnContext(r.Context(), "webhook rejected", "error", err)
		JSON(w, http.StatusBadRequest, map[string]string{"error": verificationMessage(err)})
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "Webhook handler failed"})
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func verificationMessage(err error) string {
	switch {
	case errors.Is(err, payment.ErrMissingSignature):
		return "Missing stripe-signature header"
	case errors.Is(err, payment.ErrInvalidSignature):
		return "Webhook signature verification failed"
	default:
		return "Invalid webhook payload"
	}
}
