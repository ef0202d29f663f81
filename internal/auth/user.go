// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Superuser identity. The id is fixed so that deployments agree on it.
const SuperUserName = "admin"

// SuperUserID is the well-known id of the superuser account.
var SuperUserID = ulid.MustParse("0000000000000000000000ADMN")

// Credential constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 8
	MaxEmailLength    = 254
)

// usernameRegex: a letter followed by letters, digits or underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User is an account. PasswordHash and PasswordSalt are Base64 encoded.
type User struct {
	ID             ulid.ULID
	Username       string
	Email          string
	PasswordHash   string
	PasswordSalt   string
	IsActive       bool
	EmailVerified  bool
	IsSuperUser    bool
	LastLoginAt    *time.Time
	FailedAttempts int
	LockedUntil    *time.Time
	IsDeleted      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLockedAt reports whether the account is locked out at now.
func (u *User) IsLockedAt(now time.Time) bool {
	return IsLockedOut(u.LockedUntil, now)
}

// RecordFailure counts a failed login and locks the account once the
// threshold is reached.
func (u *User) RecordFailure(now time.Time) {
	u.FailedAttempts++
	u.LockedUntil = ComputeLockoutTime(u.FailedAttempts, now)
	u.UpdatedAt = now
}

// RecordLogin resets the failure counter and stamps the login time.
func (u *User) RecordLogin(now time.Time) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

// ValidateUsername checks length and character rules. The superuser name
// is reserved in any letter case.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	if strings.EqualFold(username, SuperUserName) {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("username", username).
			Errorf("username %q is reserved", SuperUserName)
	}
	return nil
}

// ValidateEmail checks that email is a bare address (no display name).
// The superuser address is reserved.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").With("max", MaxEmailLength).Errorf("email is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is not valid")
	}
	if strings.EqualFold(email, superUserEmail) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is reserved")
	}
	return nil
}

// ValidatePassword enforces the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// NormalizeEmail trims surrounding whitespace. Case is preserved for
// display; lookups compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// UserRepository manages account persistence. Lookups ignore deleted
// accounts and compare usernames and emails case-insensitively.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicate when the username or
	// email is taken.
	Create(ctx context.Context, user *User) error

	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByIDIncludingDeleted returns the user whether or not it was
	// soft-deleted.
	GetByIDIncludingDeleted(ctx context.Context, id ulid.ULID) (*User, error)

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByLogin matches login against username or email. A username
	// match wins over an email match.
	GetByLogin(ctx context.Context, login string) (*User, error)

	// List returns all non-deleted users ordered by creation time.
	List(ctx context.Context) ([]*User, error)

	// Lock returns the user and holds a row lock until the surrounding
	// transaction ends. Outside a transaction it behaves like GetByID.
	Lock(ctx context.Context, id ulid.ULID) (*User, error)

	// Update replaces the mutable fields of an existing user.
	Update(ctx context.Context, user *User) error

	// Delete soft-deletes the user and clears IsActive.
	Delete(ctx context.Context, id ulid.ULID) error
}
