// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AdminUsername is the reserved username that is always granted admin rights.
const AdminUsername = "admin"

// Username and email constraints.
const (
	MaxUsernameLength = 64
	MaxEmailLength    = 254
)

// User is a registered account.
type User struct {
	ID           ulid.ULID
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the credential-free view of a User returned to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Public returns the user without its stored credential.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUser creates a validated User.
// The username "admin" always yields an admin account; otherwise isAdmin is taken as given.
func NewUser(username, email, passwordHash string, isAdmin bool) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_PASSWORD").Wrap(required("password"))
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin || username == AdminUsername,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername checks that a username is present, bounded and free of whitespace.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("USER_INVALID_USERNAME").Wrap(required("username"))
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("USER_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Wrap(&ValidationError{Field: "username", Reason: "is too long"})
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return oops.Code("USER_INVALID_USERNAME").
			Wrap(&ValidationError{Field: "username", Reason: "must not contain whitespace"})
	}
	return nil
}

// ValidateEmail checks that an email is present and looks like an address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return oops.Code("USER_INVALID_EMAIL").Wrap(required("email"))
	}
	if len(email) > MaxEmailLength {
		return oops.Code("USER_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrap(&ValidationError{Field: "email", Reason: "is too long"})
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return oops.Code("USER_INVALID_EMAIL").
			Wrap(&ValidationError{Field: "email", Reason: "is not a valid address"})
	}
	return nil
}

// NormalizeEmail returns the canonical form used to key one-time codes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user.
	// Returns an error wrapping ErrConflict if the username or email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByUsername retrieves a user by exact username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword replaces only the stored credential for a user.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// List returns users ordered by creation time.
	List(ctx context.Context, limit, offset int) ([]*User, error)
}
