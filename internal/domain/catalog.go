package domain

import "time"

// Product is a billing catalog entry mirrored from the payment provider.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	ImageURL    *string   `json:"imageUrl"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Price belongs to exactly one Product.
type Price struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"productId"`
	Active          bool      `json:"active"`
	Currency        string    `json:"currency"`
	Description     *string   `json:"description"`
	Type            string    `json:"type"` // one_time or recurring
	UnitAmount      *int64    `json:"unitAmount"`
	Interval        *string   `json:"interval"`
	IntervalCount   *int64    `json:"intervalCount"`
	TrialPeriodDays *int64    `json:"trialPeriodDays"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Plan is an active product together with its active prices, as shown on the
// pricing page.
type Plan struct {
	Product
	Prices []Price `json:"prices"`
}
