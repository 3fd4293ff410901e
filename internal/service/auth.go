package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/saasforge/backend/internal/domain"
)

// confirmationTypes are the link types that confirm an email address.
var confirmationTypes = map[string]bool{
	"signup":       true,
	"email":        true,
	"recovery":     true,
	"invite":       true,
	"email_change": true,
}

// AuthService glues the hosted identity provider to the local user mirror.
type AuthService struct {
	tokens   TokenVerifier
	identity IdentityProvider
	users    UserStore
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(tokens TokenVerifier, identity IdentityProvider, users UserStore, logger *slog.Logger) *AuthService {
	return &AuthService{
		tokens:   tokens,
		identity: identity,
		users:    users,
		validate: validator.New(),
		logger:   logger,
	}
}

// VerifyToken validates an access token and returns the caller.
func (s *AuthService) VerifyToken(token string) (*domain.Identity, error) {
	return s.tokens.Verify(token)
}

// CurrentUser returns the caller's mirrored profile, creating the mirror row
// from the token claims on first sight.
func (s *AuthService) CurrentUser(ctx context.Context, id *domain.Identity) (*domain.User, error) {
	u := &domain.User{ID: id.UserID, Email: id.Email}
	if id.FullName != "" {
		name := id.FullName
		u.FullName = &name
	}
	if id.Avatar != "" {
		avatar := id.Avatar
		u.AvatarURL = &avatar
	}

	synced, err := s.users.Sync(ctx, u)
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return nil, err
		}
		return nil, domain.ErrInternal("failed to load user", err)
	}
	return synced, nil
}

// UpdateProfile overwrites the caller's editable profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, id *domain.Identity, req *domain.UpdateProfileRequest) (*domain.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if _, err := s.CurrentUser(ctx, id); err != nil {
		return nil, err
	}

	u, err := s.users.UpdateProfile(ctx, id.UserID, req)
	if err != nil {
		return nil, domain.ErrInternal("failed to update profile", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return u, nil
}

// DeleteAccount removes the caller's account at the identity provider. The
// local mirror keeps its rows so billing history stays intact.
func (s *AuthService) DeleteAccount(ctx context.Context, id *domain.Identity) error {
	if err := s.identity.DeleteUser(ctx, id.UserID); err != nil {
		return domain.ErrUpstream("failed to delete account", err)
	}
	s.logger.InfoContext(ctx, "account deleted", "user_id", id.UserID)
	return nil
}

// SignOut revokes the session behind the caller's access token.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if err := s.identity.SignOut(ctx, accessToken); err != nil {
		return domain.ErrUpstream("failed to sign out", err)
	}
	return nil
}

// ConfirmEmail redeems the token hash from a confirmation link with the
// identity provider. A user id is never accepted in place of the hash.
func (s *AuthService) ConfirmEmail(ctx context.Context, tokenHash, kind string) error {
	if tokenHash == "" || kind == "" {
		return domain.ErrBadRequest("Invalid confirmation link")
	}
	if !confirmationTypes[kind] {
		return domain.ErrBadRequest("Unsupported confirmation type")
	}
	if _, err := uuid.Parse(tokenHash); err == nil {
		return domain.ErrBadRequest("Invalid confirmation link")
	}

	if err := s.identity.VerifyEmail(ctx, tokenHash, kind); err != nil {
		if errors.Is(err, domain.ErrConfirmationRejected) {
			return domain.ErrBadRequest("Confirmation link is invalid or has expired")
		}
		s.logger.ErrorContext(ctx, "email confirmation failed", "type", kind, "error", err)
		return domain.ErrUpstream("Failed to confirm email", err)
	}
	return nil
}
