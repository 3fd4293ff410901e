package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/metrics"
)

// Dispatcher routes verified webhook events to exactly one handler family.
type Dispatcher struct {
	subscriptions *SubscriptionService
	catalog       *CatalogService
	logger        *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(subscriptions *SubscriptionService, catalog *CatalogService, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		subscriptions: subscriptions,
		catalog:       catalog,
		logger:        logger,
	}
}

// Dispatch handles one event. Event types without a handler are
// acknowledged without touching the store, since failing them would only
// make the provider retry deliveries that can never succeed.
func (d *Dispatcher) Dispatch(ctx context.Context, event *domain.Event) error {
	var (
		family = domain.FamilyUnknown
		err    error
	)

	switch p := event.Payload.(type) {
	case *domain.SubscriptionSnapshot:
		family = p.Family()
		_, err = d.subscriptions.Reconcile(ctx, event, p)
	case *domain.PriceSnapshot:
		family = p.Family()
		_, err = d.catalog.SyncPrice(ctx, event, p)
	case *domain.ProductSnapshot:
		family = p.Family()
		_, err = d.catalog.SyncProduct(ctx, event, p)
	default:
		metrics.WebhookEvents.WithLabelValues(string(family), "ignored").Inc()
		d.logger.InfoContext(ctx, "ignoring unhandled event type", "event_id", event.ID, "event_type", event.Type)
		return nil
	}

	if err != nil {
		metrics.WebhookEvents.WithLabelValues(string(family), "failed").Inc()
		d.logger.ErrorContext(ctx, "webhook event failed",
			"event_id", event.ID, "event_type", event.Type, "error", err)
		return fmt.Errorf("event %s (%s): %w", event.ID, event.Type, err)
	}

	metrics.WebhookEvents.WithLabelValues(string(family), "handled").Inc()
	return nil
}
