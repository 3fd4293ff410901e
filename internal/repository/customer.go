package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/saasforge/backend/internal/domain"
)

const findCustomerQuery = `
	SELECT id, stripe_customer_id, created_at, updated_at
	FROM customers WHERE id = $1
`

// insertCustomerQuery returns nothing when another writer already owns the row.
const insertCustomerQuery = `
	INSERT INTO customers (id, stripe_customer_id, created_at, updated_at)
	VALUES ($1, $2, NOW(), NOW())
	ON CONFLICT (id) DO NOTHING
	RETURNING id, stripe_customer_id, created_at, updated_at
`

// CustomerRepository maps local users to payment-provider customers.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository creates a new CustomerRepository.
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// FindByUserID returns the customer mapping for a user, or nil.
func (r *CustomerRepository) FindByUserID(ctx context.Context, userID string) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, findCustomerQuery, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return c, nil
}

// InsertOrGet stores the mapping unless the user already has one, and returns
// whichever mapping is stored afterwards. The primary key is the single
// conflict point, so concurrent callers all observe the winner's row.
func (r *CustomerRepository) InsertOrGet(ctx context.Context, userID, stripeCustomerID string) (*domain.Customer, bool, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, insertCustomerQuery, userID, stripeCustomerID))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, false, fmt.Errorf("customer for user %s: %w", userID, domain.ErrUnknownUser)
		}
		return nil, false, fmt.Errorf("failed to insert customer: %w", err)
	}

	existing, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("customer for user %s vanished after conflict", userID)
	}
	return existing, false, nil
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	var stripeID *string
	if err := row.Scan(&c.ID, &stripeID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if stripeID != nil {
		c.StripeCustomerID = *stripeID
	}
	return &c, nil
}
