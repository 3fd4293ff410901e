package payment

import (
	"context"
	"sync"
)

// MockGateway is an in-memory Gateway for local development and tests.
// Customers are keyed by user id the way the Stripe idempotency key is.
type MockGateway struct {
	mu        sync.Mutex
	customers map[string]string
	calls     int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{customers: make(map[string]string)}
}

func (g *MockGateway) CreateCustomer(_ context.Context, params CustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if id, ok := g.customers[params.UserID]; ok {
		return id, nil
	}
	id := "cus_mock_" + params.UserID
	g.customers[params.UserID] = id
	return id, nil
}

func (g *MockGateway) CreateCheckoutSession(_ context.Context, params CheckoutParams) (*Session, error) {
	id := "cs_mock_" + params.UserID + "_" + params.PriceID
	return &Session{ID: id, URL: "https://example.com/checkout/" + id}, nil
}

func (g *MockGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://example.com/portal/" + customerID, nil
}

// CustomerCalls returns how many CreateCustomer calls were made.
func (g *MockGateway) CustomerCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
