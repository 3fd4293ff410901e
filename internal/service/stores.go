package service

import (
	"context"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/repository"
)

// SubscriptionStore persists mirrored subscriptions.
type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *domain.Subscription, guardStale bool) (repository.UpsertResult, error)
	FindByID(ctx context.Context, id string) (*domain.Subscription, error)
	FindLatestByUserID(ctx context.Context, userID string) (*domain.Subscription, error)
}

// CustomerStore persists user to payment-customer mappings.
type CustomerStore interface {
	FindByUserID(ctx context.Context, userID string) (*domain.Customer, error)
	InsertOrGet(ctx context.Context, userID, stripeCustomerID string) (*domain.Customer, bool, error)
}

// CatalogStore persists the mirrored product catalog.
type CatalogStore interface {
	UpsertProduct(ctx context.Context, p *domain.ProductSnapshot) (repository.UpsertResult, error)
	UpsertPrice(ctx context.Context, p *domain.PriceSnapshot) (repository.UpsertResult, error)
	ListPlans(ctx context.Context) ([]domain.Plan, error)
}

// UserStore persists the local user mirror.
type UserStore interface {
	Sync(ctx context.Context, u *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, req *domain.UpdateProfileRequest) (*domain.User, error)
}

// IdentityProvider is the hosted identity service.
type IdentityProvider interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	VerifyEmail(ctx context.Context, tokenHash, kind string) error
	SignOut(ctx context.Context, accessToken string) error
}

// TokenVerifier validates identity-provider access tokens.
type TokenVerifier interface {
	Verify(token string) (*domain.Identity, error)
}

var (
	_ SubscriptionStore = (*repository.SubscriptionRepository)(nil)
	_ CustomerStore     = (*repository.CustomerRepository)(nil)
	_ CatalogStore      = (*repository.CatalogRepository)(nil)
	_ UserStore         = (*repository.UserRepository)(nil)
)
