package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/metrics"
	"github.com/saasforge/backend/internal/repository"
	"github.com/saasforge/backend/pkg/payment"
)

// SubscriptionService mirrors provider subscriptions and drives checkout.
type SubscriptionService struct {
	repo       SubscriptionStore
	customers  *CustomerService
	gateway    payment.Gateway
	validate   *validator.Validate
	appURL     string
	guardStale bool
	logger     *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService. guardStale rejects
// snapshots from events older than the last one applied to a row.
func NewSubscriptionService(repo SubscriptionStore, customers *CustomerService, gateway payment.Gateway, appURL string, guardStale bool, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:       repo,
		customers:  customers,
		gateway:    gateway,
		validate:   validator.New(),
		appURL:     strings.TrimRight(appURL, "/"),
		guardStale: guardStale,
		logger:     logger,
	}
}

// Reconcile applies a subscription snapshot to the local mirror. Created,
// updated and deleted events all converge on the same upsert by id, so
// delivery order and replays do not matter.
func (s *SubscriptionService) Reconcile(ctx context.Context, event *domain.Event, snap *domain.SubscriptionSnapshot) (repository.UpsertResult, error) {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "Reconcile", trace.WithAttributes(
		attribute.String("event.id", event.ID),
		attribute.String("event.type", string(event.Type)),
		attribute.String("subscription.id", snap.ID),
	))
	defer span.End()

	if snap.UserID == "" {
		span.RecordError(domain.ErrMissingUserID)
		span.SetStatus(codes.Error, "missing user id")
		return repository.UpsertSkipped, domain.ErrMissingUserID
	}

	sub := subscriptionFromSnapshot(snap, event)

	result, err := s.repo.Upsert(ctx, sub, s.guardStale)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		metrics.MirrorWrites.WithLabelValues("subscriptions", "error").Inc()
		return repository.UpsertSkipped, err
	}
	metrics.MirrorWrites.WithLabelValues("subscriptions", result.String()).Inc()

	if result == repository.UpsertSkipped {
		s.logger.InfoContext(ctx, "subscription snapshot not applied",
			"subscription_id", sub.ID, "event_id", event.ID, "status", sub.Status)
	} else {
		s.logger.InfoContext(ctx, "subscription reconciled",
			"subscription_id", sub.ID, "user_id", sub.UserID, "status", sub.Status,
			"event_type", event.Type, "result", result.String())
	}

	span.SetAttributes(attribute.String("upsert.result", result.String()))
	span.SetStatus(codes.Ok, "subscription reconciled")
	return result, nil
}

// subscriptionFromSnapshot maps a snapshot to a row. A deleted event always
// carries an end time, taken from the event itself when the snapshot has none.
func subscriptionFromSnapshot(snap *domain.SubscriptionSnapshot, event *domain.Event) *domain.Subscription {
	start, end := snap.CurrentPeriodStart, snap.CurrentPeriodEnd
	eventAt := event.Created

	sub := &domain.Subscription{
		ID:                 snap.ID,
		UserID:             snap.UserID,
		Status:             snap.Status,
		Quantity:           snap.Quantity,
		CancelAtPeriodEnd:  snap.CancelAtPeriodEnd,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		CreatedAt:          snap.Created,
		EndedAt:            snap.EndedAt,
		CanceledAt:         snap.CanceledAt,
		CancelAt:           snap.CancelAt,
		LastEventAt:        &eventAt,
	}
	if snap.PriceID != "" {
		priceID := snap.PriceID
		sub.PriceID = &priceID
	}
	if event.Type.Lifecycle() == domain.LifecycleDeleted && sub.EndedAt == nil {
		sub.EndedAt = &eventAt
	}
	return sub
}

// GetCurrentSubscription returns the user's entitled subscription, falling
// back to the most recent one. It returns nil when the user has none.
func (s *SubscriptionService) GetCurrentSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := s.repo.FindLatestByUserID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	return sub, nil
}

// GetSubscription returns a mirrored subscription by provider id.
func (s *SubscriptionService) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if sub == nil {
		return nil, domain.ErrNotFound("subscription not found")
	}
	return sub, nil
}

// CreateCheckout starts a hosted checkout for the given price. The session
// tags the resulting subscription with the user id so webhooks can be
// correlated back to the user.
func (s *SubscriptionService) CreateCheckout(ctx context.Context, userID string, req *domain.CreateCheckoutRequest) (*domain.CheckoutSessionResponse, error) {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "CreateCheckout", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, domain.ErrValidation("priceId is required")
	}

	customer, err := s.customers.Resolve(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer resolution failed")
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, payment.CheckoutParams{
		CustomerID: customer.StripeCustomerID,
		UserID:     userID,
		PriceID:    req.PriceID,
		SuccessURL: s.appURL + "/dashboard?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.appURL + "/dashboard",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout session failed")
		var perr *payment.ProviderError
		if errors.As(err, &perr) && perr.StatusCode >= 400 && perr.StatusCode < 500 {
			return nil, domain.ErrBadRequest("invalid price")
		}
		return nil, domain.ErrUpstream("failed to create checkout session", err)
	}

	s.logger.InfoContext(ctx, "checkout session created", "user_id", userID, "price_id", req.PriceID, "session_id", session.ID)
	span.SetStatus(codes.Ok, "checkout session created")
	return &domain.CheckoutSessionResponse{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePortal opens the self-service billing portal for a user who has
// already been through checkout.
func (s *SubscriptionService) CreatePortal(ctx context.Context, userID string) (*domain.PortalSessionResponse, error) {
	ctx, span := otel.Tracer("SubscriptionService").Start(ctx, "CreatePortal", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	customer, err := s.customers.Find(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer lookup failed")
		return nil, domain.ErrInternal("failed to look up customer", err)
	}
	if customer == nil || customer.StripeCustomerID == "" {
		span.SetStatus(codes.Error, "customer not found")
		notFound := domain.ErrNotFound("no billing account found")
		notFound.Err = domain.ErrCustomerNotFound
		return nil, notFound
	}

	url, err := s.gateway.CreatePortalSession(ctx, customer.StripeCustomerID, s.appURL+"/dashboard/settings/billing")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal session failed")
		return nil, domain.ErrUpstream("failed to create portal session", err)
	}

	span.SetStatus(codes.Ok, "portal session created")
	return &domain.PortalSessionResponse{URL: url}, nil
}
