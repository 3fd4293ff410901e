package repository

import (
	"context"
	"fmt"

	"github.com/saasforge/backend/internal/domain"
)

const billingStatsQuery = `
	SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM subscriptions WHERE status IN ('active', 'trialing')),
		(SELECT COUNT(*) FROM subscriptions),
		(SELECT COUNT(*) FROM products WHERE active),
		(SELECT COUNT(*) FROM prices WHERE active)`

// StatsRepository aggregates counts over the billing mirror.
type StatsRepository struct {
	db DBTX
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// BillingStats returns row counts for the admin dashboard.
func (r *StatsRepository) BillingStats(ctx context.Context) (*domain.BillingStats, error) {
	var s domain.BillingStats
	err := r.db.QueryRow(ctx, billingStatsQuery).Scan(
		&s.Users, &s.Customers, &s.ActiveSubscriptions,
		&s.Subscriptions, &s.ActiveProducts, &s.ActivePrices,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count billing rows: %w", err)
	}
	return &s, nil
}
