package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/saasforge/backend/internal/domain"
)

const userColumns = `id, email, full_name, avatar_url, created_at, updated_at`

// UserRepository keeps the local mirror of identity-provider users.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Sync inserts the user or refreshes its email. Profile fields are only
// filled in when the mirror has none, so local edits survive.
func (r *UserRepository) Sync(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, email, full_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email      = EXCLUDED.email,
			full_name  = COALESCE(users.full_name, EXCLUDED.full_name),
			avatar_url = COALESCE(users.avatar_url, EXCLUDED.avatar_url),
			updated_at = CASE WHEN users.email IS DISTINCT FROM EXCLUDED.email
			                  THEN NOW() ELSE users.updated_at END
		RETURNING ` + userColumns
	synced, err := scanUser(r.db.QueryRow(ctx, query, u.ID, u.Email, u.FullName, u.AvatarURL))
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return nil, domain.ErrBadRequest("email already registered to another account")
		}
		return nil, fmt.Errorf("failed to sync user: %w", err)
	}
	return synced, nil
}

// FindByID returns a user by ID, or nil.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// UpdateProfile overwrites the editable profile fields and returns the row.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	query := `
		UPDATE users SET full_name = $2, avatar_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query, id, req.FullName, req.AvatarURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
