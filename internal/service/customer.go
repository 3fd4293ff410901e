package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/metrics"
	"github.com/saasforge/backend/pkg/payment"
)

// CustomerService resolves the payment-provider customer of a local user.
type CustomerService struct {
	repo     CustomerStore
	users    UserStore
	identity IdentityProvider
	gateway  payment.Gateway
	logger   *slog.Logger
}

// NewCustomerService creates a new CustomerService.
func NewCustomerService(repo CustomerStore, users UserStore, identity IdentityProvider, gateway payment.Gateway, logger *slog.Logger) *CustomerService {
	return &CustomerService{
		repo:     repo,
		users:    users,
		identity: identity,
		gateway:  gateway,
		logger:   logger,
	}
}

// Find returns the stored customer mapping without creating one, or nil.
func (s *CustomerService) Find(ctx context.Context, userID string) (*domain.Customer, error) {
	return s.repo.FindByUserID(ctx, userID)
}

// Resolve returns the user's customer mapping, creating the provider
// customer on first use. Concurrent first calls converge on one stored row.
func (s *CustomerService) Resolve(ctx context.Context, userID string) (*domain.Customer, error) {
	ctx, span := otel.Tracer("CustomerService").Start(ctx, "Resolve", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	existing, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer lookup failed")
		return nil, domain.ErrInternal("failed to look up customer", err)
	}
	if existing != nil && existing.StripeCustomerID != "" {
		span.SetStatus(codes.Ok, "customer found")
		return existing, nil
	}

	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity lookup failed")
		return nil, domain.ErrUpstream("failed to fetch user", err)
	}
	if user == nil || user.Email == "" {
		span.SetStatus(codes.Error, "user email not found")
		return nil, domain.ErrBadRequest("user email not found")
	}
	if _, err := s.users.Sync(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user sync failed")
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("failed to sync user", err)
	}

	stripeID, err := s.gateway.CreateCustomer(ctx, payment.CustomerParams{UserID: userID, Email: user.Email})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider customer creation failed")
		return nil, domain.ErrUpstream("failed to create billing customer", err)
	}

	customer, created, err := s.repo.InsertOrGet(ctx, userID, stripeID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer insert failed")
		if errors.Is(err, domain.ErrUnknownUser) {
			return nil, domain.ErrNotFound("user not found")
		}
		return nil, domain.ErrInternal("failed to store customer", err)
	}

	if created {
		metrics.CustomersCreated.Inc()
		s.logger.InfoContext(ctx, "billing customer created", "user_id", userID, "customer_id", stripeID)
	} else if customer.StripeCustomerID != stripeID {
		s.logger.WarnContext(ctx, "lost customer creation race, provider customer left unused",
			"user_id", userID, "kept", customer.StripeCustomerID, "unused", stripeID)
	}

	span.SetStatus(codes.Ok, "customer resolved")
	return customer, nil
}
