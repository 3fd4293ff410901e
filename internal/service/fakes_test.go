package service

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/saasforge/backend/internal/domain"
	"github.com/saasforge/backend/internal/repository"
	"github.com/saasforge/backend/pkg/payment"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memorySubscriptions follows the same write rules as the SQL upsert: a
// conflicting write only lands when a mirrored field changes and the period
// end does not move backward. The user check runs only for rows it writes.
type memorySubscriptions struct {
	mu     sync.Mutex
	rows   map[string]domain.Subscription
	users  map[string]bool
	writes int
}

func newMemorySubscriptions(users ...string) *memorySubscriptions {
	m := &memorySubscriptions{rows: map[string]domain.Subscription{}, users: map[string]bool{}}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

func (m *memorySubscriptions) Upsert(_ context.Context, sub *domain.Subscription, guardStale bool) (repository.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := m.rows[sub.ID]
	if !ok {
		if !m.users[sub.UserID] {
			return repository.UpsertSkipped, domain.ErrUnknownUser
		}
		row := *sub
		row.UpdatedAt = now
		m.rows[sub.ID] = row
		m.writes++
		return repository.UpsertInserted, nil
	}

	if sameMirroredFields(&existing, sub) {
		return repository.UpsertSkipped, nil
	}
	if existing.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.Before(*existing.CurrentPeriodEnd) {
		return repository.UpsertSkipped, nil
	}
	if guardStale && existing.LastEventAt != nil && sub.LastEventAt != nil && sub.LastEventAt.Before(*existing.LastEventAt) {
		return repository.UpsertSkipped, nil
	}
	if !m.users[sub.UserID] {
		return repository.UpsertSkipped, domain.ErrUnknownUser
	}

	row := *sub
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = now
	m.rows[sub.ID] = row
	m.writes++
	return repository.UpsertUpdated, nil
}

func sameMirroredFields(a, b *domain.Subscription) bool {
	return a.UserID == b.UserID &&
		a.Status == b.Status &&
		reflect.DeepEqual(a.PriceID, b.PriceID) &&
		reflect.DeepEqual(a.Quantity, b.Quantity) &&
		a.CancelAtPeriodEnd == b.CancelAtPeriodEnd &&
		reflect.DeepEqual(a.CurrentPeriodStart, b.CurrentPeriodStart) &&
		reflect.DeepEqual(a.CurrentPeriodEnd, b.CurrentPeriodEnd) &&
		reflect.DeepEqual(a.EndedAt, b.EndedAt) &&
		reflect.DeepEqual(a.CanceledAt, b.CanceledAt) &&
		reflect.DeepEqual(a.CancelAt, b.CancelAt)
}

func (m *memorySubscriptions) FindByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memorySubscriptions) FindLatestByUserID(_ context.Context, userID string) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.Subscription
	for _, row := range m.rows {
		if row.UserID != userID {
			continue
		}
		r := row
		switch {
		case best == nil:
			best = &r
		case r.IsEntitled() != best.IsEntitled():
			if r.IsEntitled() {
				best = &r
			}
		case r.CreatedAt.After(best.CreatedAt):
			best = &r
		}
	}
	return best, nil
}

// memoryCustomers serializes inserts the way the primary key does.
type memoryCustomers struct {
	mu   sync.Mutex
	rows map[string]domain.Customer
}

func newMemoryCustomers() *memoryCustomers {
	return &memoryCustomers{rows: map[string]domain.Customer{}}
}

func (m *memoryCustomers) FindByUserID(_ context.Context, userID string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memoryCustomers) InsertOrGet(_ context.Context, userID, stripeCustomerID string) (*domain.Customer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[userID]; ok {
		return &c, false, nil
	}
	c := domain.Customer{ID: userID, StripeCustomerID: stripeCustomerID, CreatedAt: time.Now()}
	m.rows[userID] = c
	return &c, true, nil
}

func (m *memoryCustomers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memoryUsers struct {
	mu   sync.Mutex
	rows map[string]domain.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{rows: map[string]domain.User{}}
}

func (m *memoryUsers) Sync(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[u.ID]
	if !ok {
		row = *u
	} else {
		row.Email = u.Email
		if row.FullName == nil {
			row.FullName = u.FullName
		}
		if row.AvatarURL == nil {
			row.AvatarURL = u.AvatarURL
		}
	}
	m.rows[u.ID] = row
	return &row, nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memoryUsers) UpdateProfile(_ context.Context, id string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	row.FullName = req.FullName
	row.AvatarURL = req.AvatarURL
	m.rows[id] = row
	return &row, nil
}

// MockIdentity is a testify mock of the identity provider.
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) GetUser(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockIdentity) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockIdentity) VerifyEmail(ctx context.Context, tokenHash, kind string) error {
	return m.Called(ctx, tokenHash, kind).Error(0)
}

func (m *MockIdentity) SignOut(ctx context.Context, accessToken string) error {
	return m.Called(ctx, accessToken).Error(0)
}

// MockGateway is a testify mock of the payment gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, params payment.CustomerParams) (string, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(context.Context, payment.CustomerParams) string); ok {
		return fn(ctx, params), args.Error(1)
	}
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

// MockCatalog is a testify mock of the catalog store.
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) UpsertProduct(ctx context.Context, p *domain.ProductSnapshot) (repository.UpsertResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(repository.UpsertResult), args.Error(1)
}

func (m *MockCatalog) UpsertPrice(ctx context.Context, p *domain.PriceSnapshot) (repository.UpsertResult, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(repository.UpsertResult), args.Error(1)
}

func (m *MockCatalog) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Plan), args.Error(1)
}
