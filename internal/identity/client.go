package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/saasforge/backend/internal/domain"
)

// Client calls the identity provider's admin REST API with the service-role key.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// NewClient creates a Client for the project at baseURL.
func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 10 * time.Second},
	}
}

type adminUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// GetUser returns the provider's view of a user, or nil if it does not exist.
func (c *Client) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u adminUser
	status, err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users/"+url.PathEscape(id), c.serviceKey, nil, &u)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	user := &domain.User{
		ID:        u.ID,
		Email:     strings.ToLower(u.Email),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if name := metadataString(u.UserMetadata, "full_name"); name != "" {
		user.FullName = &name
	}
	if avatar := metadataString(u.UserMetadata, "avatar_url"); avatar != "" {
		user.AvatarURL = &avatar
	}
	return user, nil
}

// DeleteUser removes the account at the identity provider.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(id), c.serviceKey, nil, nil)
	return err
}

type verifyRequest struct {
	Type      string `json:"type"`
	TokenHash string `json:"token_hash"`
}

// VerifyEmail redeems the token hash from a confirmation email. A 4xx answer
// means the token is unknown, used or expired and wraps
// domain.ErrConfirmationRejected.
func (c *Client) VerifyEmail(ctx context.Context, tokenHash, kind string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/v1/verify", c.serviceKey, verifyRequest{Type: kind, TokenHash: tokenHash}, nil)
	var idErr *Error
	if errors.As(err, &idErr) && idErr.Status >= 400 && idErr.Status < 500 {
		return fmt.Errorf("%w: %w", domain.ErrConfirmationRejected, err)
	}
	return err
}

// SignOut revokes the session behind the given access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
	return err
}

// Error is a non-2xx response from the identity provider.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity provider returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("identity provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode identity response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
