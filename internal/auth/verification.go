// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// VerificationTokenExpiry is the lifetime of an email verification token.
const VerificationTokenExpiry = 24 * time.Hour

// EmailVerification is a pending email verification. Only the token hash
// is stored; the token is single use.
type EmailVerification struct {
	TokenHash string
	UserID    ulid.ULID
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    *time.Time
}

// IsValidAt reports whether the verification can still be redeemed at now.
func (v *EmailVerification) IsValidAt(now time.Time) bool {
	return v.UsedAt == nil && now.Before(v.ExpiresAt)
}

// EmailVerificationRepository manages email verification persistence.
type EmailVerificationRepository interface {
	Create(ctx context.Context, v *EmailVerification) error

	GetByHash(ctx context.Context, tokenHash string) (*EmailVerification, error)

	// MarkUsed atomically consumes an unused, unexpired verification.
	// Returns ErrTokenInactive or ErrNotFound like the reset repository.
	MarkUsed(ctx context.Context, tokenHash string, at time.Time) error

	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
