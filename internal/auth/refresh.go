// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// RefreshToken is a stored refresh token. Only the hash of the opaque
// token is kept.
type RefreshToken struct {
	TokenHash      string
	UserID         ulid.ULID
	ExpiresAt      time.Time
	CreatedAt      time.Time
	RevokedAt      *time.Time
	RevokedReason  string
	ReplacedByHash string
}

// IsExpiredAt reports whether the token has expired at now.
func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRevoked reports whether the token has been revoked.
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActiveAt reports whether the token can be used at now.
func (t *RefreshToken) IsActiveAt(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpiredAt(now)
}

// RevokeRequest describes a conditional revocation.
type RevokeRequest struct {
	TokenHash      string
	Reason         string
	ReplacedByHash string
	At             time.Time

	// RequireActive restricts the update to tokens that have not expired
	// at At. Revoked tokens are never updated.
	RequireActive bool
}

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error

	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Revoke atomically revokes a token that is not yet revoked and
	// returns the updated record. Returns ErrTokenInactive when the
	// condition does not hold and ErrNotFound when no token matches.
	Revoke(ctx context.Context, req RevokeRequest) (*RefreshToken, error)

	// RevokeAllForUser revokes every unrevoked token of the user and
	// returns the number revoked.
	RevokeAllForUser(ctx context.Context, userID ulid.ULID, reason string, at time.Time) (int64, error)

	// ListByUser returns all tokens of the user, newest first.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*RefreshToken, error)

	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes tokens that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
