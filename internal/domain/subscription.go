package domain

import "time"

// Subscription is the local mirror of a payment-provider subscription.
// ID is the provider's subscription id and the only upsert conflict target.
type Subscription struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"userId"`
	Status             string     `json:"status"` // trialing, active, past_due, canceled, unpaid, incomplete, incomplete_expired, paused
	PriceID            *string    `json:"priceId"`
	Quantity           *int64     `json:"quantity"`
	CancelAtPeriodEnd  bool       `json:"cancelAtPeriodEnd"`
	CurrentPeriodStart *time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   *time.Time `json:"currentPeriodEnd"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	EndedAt            *time.Time `json:"endedAt"`
	CanceledAt         *time.Time `json:"canceledAt"`
	CancelAt           *time.Time `json:"cancelAt"`
	LastEventAt        *time.Time `json:"-"`
}

// Active subscription statuses, as reported by the provider.
const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// IsEntitled reports whether the subscription currently grants access.
func (s *Subscription) IsEntitled() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// CreateCheckoutRequest is the input for creating a checkout session.
type CreateCheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

// CheckoutSessionResponse returns the provider session to redirect the user to.
type CheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url,omitempty"`
}

// PortalSessionResponse returns the self-service billing portal URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
}

// BillingStats summarizes the billing mirror for operators.
type BillingStats struct {
	Users               int64 `json:"users"`
	Customers           int64 `json:"customers"`
	ActiveSubscriptions int64 `json:"activeSubscriptions"`
	Subscriptions       int64 `json:"subscriptions"`
	ActiveProducts      int64 `json:"activeProducts"`
	ActivePrices        int64 `json:"activePrices"`
}
