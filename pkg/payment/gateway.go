package payment

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
)

// MetadataUserID is the metadata key that correlates provider objects with
// local users. Subscriptions without it cannot be reconciled.
const MetadataUserID = "userId"

// Gateway defines the payment-provider calls the billing services need.
type Gateway interface {
	// CreateCustomer creates a provider customer and returns its id.
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	// CreateCheckoutSession starts a subscription checkout for one price.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	// CreatePortalSession returns a self-service billing portal URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// CustomerParams describes a customer to create.
type CustomerParams struct {
	UserID string
	Email  string
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Session is a hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	customers customer.Client
	checkout  checkoutsession.Client
	portal    portalsession.Client
}

// NewStripeGateway creates a gateway authenticated with the given secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &StripeGateway{
		customers: customer.Client{B: backend, Key: secretKey},
		checkout:  checkoutsession.Client{B: backend, Key: secretKey},
		portal:    portalsession.Client{B: backend, Key: secretKey},
	}
}

// CreateCustomer creates a Stripe customer. The idempotency key is derived
// from the user id so concurrent first checkouts get the same customer back.
func (g *StripeGateway) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	p := &stripe.CustomerParams{
		Email: stripe.String(params.Email),
	}
	p.Context = ctx
	p.AddMetadata(MetadataUserID, params.UserID)
	p.SetIdempotencyKey("customer-create-" + params.UserID)

	c, err := g.customers.New(p)
	if err != nil {
		return "", wrapStripeError("create customer", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession creates a subscription-mode Checkout session whose
// subscription carries the user id in its metadata.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error) {
	p := &stripe.CheckoutSessionParams{
		Customer: stripe.String(params.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(params.SuccessURL),
		CancelURL:         stripe.String(params.CancelURL),
		ClientReferenceID: stripe.String(params.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: params.UserID},
		},
	}
	p.Context = ctx

	s, err := g.checkout.New(p)
	if err != nil {
		return nil, wrapStripeError("create checkout session", err)
	}
	return &Session{ID: s.ID, URL: s.URL}, nil
}

// CreatePortalSession creates a billing portal session for a customer.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	p := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	p.Context = ctx

	s, err := g.portal.New(p)
	if err != nil {
		return "", wrapStripeError("create portal session", err)
	}
	return s.URL, nil
}

// ProviderError is a failed payment-provider call.
type ProviderError struct {
	Op         string
	StatusCode int
	Code       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe %s (%d %s): %v", e.Op, e.StatusCode, e.Code, e.Err)
	}
	return fmt.Sprintf("stripe %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func wrapStripeError(op string, err error) error {
	pe := &ProviderError{Op: op, Err: err}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		pe.StatusCode = stripeErr.HTTPStatusCode
		pe.Code = string(stripeErr.Code)
	}
	return pe
}
