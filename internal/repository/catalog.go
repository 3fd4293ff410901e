package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/saasforge/backend/internal/domain"
)

const upsertProductQuery = `
	INSERT INTO products (id, name, description, image_url, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		name        = EXCLUDED.name,
		description = EXCLUDED.description,
		image_url   = EXCLUDED.image_url,
		active      = EXCLUDED.active,
		updated_at  = NOW()
	WHERE (products.name, products.description, products.image_url, products.active)
	      IS DISTINCT FROM
	      (EXCLUDED.name, EXCLUDED.description, EXCLUDED.image_url, EXCLUDED.active)
	RETURNING (xmax = 0) AS inserted
`

const upsertPriceQuery = `
	INSERT INTO prices (id, product_id, active, currency, description, type,
		unit_amount, interval, interval_count, trial_period_days, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		product_id        = EXCLUDED.product_id,
		active            = EXCLUDED.active,
		currency          = EXCLUDED.currency,
		description       = EXCLUDED.description,
		type              = EXCLUDED.type,
		unit_amount       = EXCLUDED.unit_amount,
		interval          = EXCLUDED.interval,
		interval_count    = EXCLUDED.interval_count,
		trial_period_days = EXCLUDED.trial_period_days,
		updated_at        = NOW()
	WHERE (prices.product_id, prices.active, prices.currency, prices.description, prices.type,
	       prices.unit_amount, prices.interval, prices.interval_count, prices.trial_period_days)
	      IS DISTINCT FROM
	      (EXCLUDED.product_id, EXCLUDED.active, EXCLUDED.currency, EXCLUDED.description, EXCLUDED.type,
	       EXCLUDED.unit_amount, EXCLUDED.interval, EXCLUDED.interval_count, EXCLUDED.trial_period_days)
	RETURNING (xmax = 0) AS inserted
`

const listActiveProductsQuery = `
	SELECT id, name, description, image_url, active, created_at, updated_at
	FROM products WHERE active ORDER BY name
`

const listActivePricesQuery = `
	SELECT id, product_id, active, currency, description, type,
		unit_amount, interval, interval_count, trial_period_days, created_at, updated_at
	FROM prices WHERE active ORDER BY unit_amount NULLS LAST, id
`

// CatalogRepository mirrors the payment provider's products and prices.
type CatalogRepository struct {
	db DBTX
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// UpsertProduct writes a product snapshot keyed by the provider id.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p *domain.ProductSnapshot) (UpsertResult, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, upsertProductQuery,
		p.ID, p.Name, p.Description, p.ImageURL, p.Active,
	).Scan(&inserted)
	return upsertOutcome(inserted, err, "product")
}

// UpsertPrice writes a price snapshot keyed by the provider id. The product
// must already be mirrored.
func (r *CatalogRepository) UpsertPrice(ctx context.Context, p *domain.PriceSnapshot) (UpsertResult, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, upsertPriceQuery,
		p.ID, p.ProductID, p.Active, p.Currency, p.Description, p.Type,
		p.UnitAmount, p.Interval, p.IntervalCount, p.TrialPeriodDays,
	).Scan(&inserted)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return UpsertSkipped, fmt.Errorf("price %s, product %s: %w", p.ID, p.ProductID, domain.ErrUnknownProduct)
	}
	return upsertOutcome(inserted, err, "price")
}

// ListPlans returns active products with their active prices.
func (r *CatalogRepository) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	rows, err := r.db.Query(ctx, listActiveProductsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	var plans []domain.Plan
	index := make(map[string]int)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		index[p.ID] = len(plans)
		plans = append(plans, domain.Plan{Product: p, Prices: []domain.Price{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	rows, err = r.db.Query(ctx, listActivePricesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Price
		var productID *string
		if err := rows.Scan(
			&p.ID, &productID, &p.Active, &p.Currency, &p.Description, &p.Type,
			&p.UnitAmount, &p.Interval, &p.IntervalCount, &p.TrialPeriodDays, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		if productID == nil {
			continue
		}
		p.ProductID = *productID
		if i, ok := index[p.ProductID]; ok {
			plans[i].Prices = append(plans[i].Prices, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}
	return plans, nil
}

func upsertOutcome(inserted bool, err error, what string) (UpsertResult, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UpsertSkipped, nil
		}
		return UpsertSkipped, fmt.Errorf("failed to upsert %s: %w", what, err)
	}
	if inserted {
		return UpsertInserted, nil
	}
	return UpsertUpdated, nil
}
