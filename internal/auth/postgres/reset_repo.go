// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/internal/store"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	pool store.Pool
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool store.Pool) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Create stores a new password reset token.
func (r *PasswordResetRepository) Create(ctx context.Context, token *auth.PasswordResetToken) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO password_reset_tokens (token_hash, user_id, expires_at, created_at, used, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, token.TokenHash, token.UserID.String(), token.ExpiresAt, token.CreatedAt, token.Used, token.UsedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset_token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByHash retrieves a reset token by its hash.
func (r *PasswordResetRepository) GetByHash(ctx context.Context, tokenHash string) (*auth.PasswordResetToken, error) {
	var (
		token     auth.PasswordResetToken
		userIDStr string
	)
	err := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT token_hash, user_id, expires_at, created_at, used, used_at
		FROM password_reset_tokens WHERE token_hash = $1
	`, tokenHash).Scan(&token.TokenHash, &userIDStr, &token.ExpiresAt, &token.CreatedAt, &token.Used, &token.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").With("operation", "get reset token").Wrap(err)
	}
	if token.UserID, err = parseID(userIDStr, "user_id"); err != nil {
		return nil, err
	}
	return &token, nil
}

// MarkUsed consumes an unused, unexpired token.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, tokenHash string, at time.Time) error {
	conn := store.Conn(ctx, r.pool)
	result, err := conn.Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, used_at = $2
		WHERE token_hash = $1 AND NOT used AND expires_at > $2
	`, tokenHash, at)
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").With("operation", "mark reset token used").Wrap(err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM password_reset_tokens WHERE token_hash = $1)`, tokenHash,
	).Scan(&exists); err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").With("operation", "check reset token").Wrap(err)
	}
	if !exists {
		return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return oops.Code("RESET_INACTIVE").Wrap(auth.ErrTokenInactive)
}

// DeleteByUser removes all reset tokens of a user.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// DeleteExpired removes reset tokens that expired at or before now.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").With("operation", "delete expired").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
