package domain

import "time"

// User mirrors an identity-provider account. The identity provider owns the
// record; this service only keeps email and profile fields in sync.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  *string   `json:"fullName,omitempty"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity is the authenticated caller as asserted by an access token.
type Identity struct {
	UserID   string
	Email    string
	Role     string
	FullName string
	Avatar   string
}

// IsAdmin reports whether the identity provider granted the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// UpdateProfileRequest is the validated input for PUT /api/user.
type UpdateProfileRequest struct {
	FullName  *string `json:"fullName" validate:"omitempty,max=200"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url"`
}

// Customer links a user to the payment provider's customer object.
type Customer struct {
	ID               string    `json:"id"`
	StripeCustomerID string    `json:"stripeCustomerId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
