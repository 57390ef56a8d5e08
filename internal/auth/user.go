// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/samber/oops"
)

// User is a registered account.
type User struct {
	ID           int64
	Name         string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser holds the fields of a User that may leave the service.
type PublicUser struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Public strips the password hash and timestamps.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
		Email:    u.Email,
	}
}

// NewUser creates a User from registration input. The password must already
// be hashed.
func NewUser(name, username, email, passwordHash string) (*User, error) {
	if name == "" || username == "" || email == "" || passwordHash == "" {
		return nil, oops.Code("USER_INVALID").
			With(contextKeyMessage, "all fields are required").
			Wrap(ErrInvalidInput)
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	now := time.Now()
	return &User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateEmail checks that email is a bare address such as "ada@example.com".
func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return oops.Code("USER_INVALID_EMAIL").
			With("email", email).
			With(contextKeyMessage, "invalid email address").
			Wrap(ErrInvalidInput)
	}
	return nil
}

// NormalizeEmail returns the canonical form of email used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository persists users. Lookups are case-insensitive and uniqueness
// of username and email is enforced by the store.
type UserRepository interface {
	// Create stores a new user and sets its ID.
	// Returns ErrConflict if the username or email is taken.
	Create(ctx context.Context, user *User) error

	// GetByUsername retrieves a user by username.
	// Returns ErrNotFound if no user has the given username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword replaces the password hash of the user with the given email.
	// Returns ErrNotFound if no user has the given email.
	UpdatePassword(ctx context.Context, email, passwordHash string) error
}
