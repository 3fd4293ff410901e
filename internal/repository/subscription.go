package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/saasforge/backend/internal/domain"
)

// UpsertResult reports what a subscription upsert did to the stored row.
type UpsertResult int

const (
	// UpsertSkipped means the row already held this snapshot or the snapshot was stale.
	UpsertSkipped UpsertResult = iota
	UpsertInserted
	UpsertUpdated
)

func (r UpsertResult) String() string {
	switch r {
	case UpsertInserted:
		return "inserted"
	case UpsertUpdated:
		return "updated"
	default:
		return "skipped"
	}
}

const subscriptionColumns = `id, user_id, status, price_id, quantity, cancel_at_period_end,
	current_period_start, current_period_end, created_at, updated_at,
	ended_at, canceled_at, cancel_at, last_event_at`

// upsertSubscriptionQuery writes a full snapshot keyed by the provider id.
// The conflict branch only fires when a mirrored field actually changes and
// current_period_end does not move backward; $14 additionally rejects
// snapshots from events older than the last applied one. user_id is part of
// the update so a changed owner goes through the users foreign key.
const upsertSubscriptionQuery = `
	INSERT INTO subscriptions (` + subscriptionColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), $10, $11, $12, $13)
	ON CONFLICT (id) DO UPDATE SET
		user_id              = EXCLUDED.user_id,
		status               = EXCLUDED.status,
		price_id             = EXCLUDED.price_id,
		quantity             = EXCLUDED.quantity,
		cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		current_period_start = EXCLUDED.current_period_start,
		current_period_end   = EXCLUDED.current_period_end,
		ended_at             = EXCLUDED.ended_at,
		canceled_at          = EXCLUDED.canceled_at,
		cancel_at            = EXCLUDED.cancel_at,
		last_event_at        = EXCLUDED.last_event_at,
		updated_at           = NOW()
	WHERE (subscriptions.user_id, subscriptions.status, subscriptions.price_id, subscriptions.quantity,
	       subscriptions.cancel_at_period_end, subscriptions.current_period_start,
	       subscriptions.current_period_end, subscriptions.ended_at,
	       subscriptions.canceled_at, subscriptions.cancel_at)
	      IS DISTINCT FROM
	      (EXCLUDED.user_id, EXCLUDED.status, EXCLUDED.price_id, EXCLUDED.quantity,
	       EXCLUDED.cancel_at_period_end, EXCLUDED.current_period_start,
	       EXCLUDED.current_period_end, EXCLUDED.ended_at,
	       EXCLUDED.canceled_at, EXCLUDED.cancel_at)
	  AND (subscriptions.current_period_end IS NULL
	       OR EXCLUDED.current_period_end IS NULL
	       OR EXCLUDED.current_period_end >= subscriptions.current_period_end)
	  AND (NOT $14::boolean
	       OR subscriptions.last_event_at IS NULL
	       OR EXCLUDED.last_event_at >= subscriptions.last_event_at)
	RETURNING (xmax = 0) AS inserted
`

const findSubscriptionByIDQuery = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

const findLatestSubscriptionByUserQuery = `SELECT ` + subscriptionColumns + `
	FROM subscriptions WHERE user_id = $1
	ORDER BY (status IN ('active', 'trialing')) DESC, created_at DESC
	LIMIT 1`

// SubscriptionRepository handles database operations for mirrored subscriptions.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert inserts the subscription or overwrites every mutable field of the
// existing row in one statement. guardStale enables the event-time check.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription, guardStale bool) (UpsertResult, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, upsertSubscriptionQuery,
		sub.ID, sub.UserID, sub.Status, sub.PriceID, sub.Quantity, sub.CancelAtPeriodEnd,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CreatedAt,
		sub.EndedAt, sub.CanceledAt, sub.CancelAt, sub.LastEventAt,
		guardStale,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UpsertSkipped, nil
		}
		switch pgErrorCode(err) {
		case pgForeignKeyViolation, pgInvalidTextRepresentation:
			return UpsertSkipped, fmt.Errorf("subscription %s, user %s: %w", sub.ID, sub.UserID, domain.ErrUnknownUser)
		}
		return UpsertSkipped, fmt.Errorf("failed to upsert subscription: %w", err)
	}
	if inserted {
		return UpsertInserted, nil
	}
	return UpsertUpdated, nil
}

// FindByID returns the subscription with the given provider id, or nil.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, findSubscriptionByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// FindLatestByUserID returns the user's entitled subscription if any,
// otherwise the most recent one, or nil.
func (r *SubscriptionRepository) FindLatestByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	sub, err := scanSubscription(r.db.QueryRow(ctx, findLatestSubscriptionByUserQuery, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Status, &sub.PriceID, &sub.Quantity, &sub.CancelAtPeriodEnd,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
		&sub.EndedAt, &sub.CanceledAt, &sub.CancelAt, &sub.LastEventAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
