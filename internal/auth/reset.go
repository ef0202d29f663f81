// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// ResetTokenExpiry is the lifetime of a password reset token.
const ResetTokenExpiry = time.Hour

// PasswordResetToken is a stored password reset request.
type PasswordResetToken struct {
	TokenHash string
	UserID    ulid.ULID
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
	UsedAt    *time.Time
}

// IsExpiredAt reports whether the token has expired at now.
func (r *PasswordResetToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsValidAt reports whether the token can still be redeemed at now.
func (r *PasswordResetToken) IsValidAt(now time.Time) bool {
	return !r.Used && !r.IsExpiredAt(now)
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *PasswordResetToken) error

	GetByHash(ctx context.Context, tokenHash string) (*PasswordResetToken, error)

	// MarkUsed atomically marks an unused, unexpired token as used.
	// Returns ErrTokenInactive when the token was already used or has
	// expired, ErrNotFound when no token matches.
	MarkUsed(ctx context.Context, tokenHash string, at time.Time) error

	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
