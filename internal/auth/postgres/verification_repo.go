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

// EmailVerificationRepository implements auth.EmailVerificationRepository
// using PostgreSQL.
type EmailVerificationRepository struct {
	pool store.Pool
}

// NewEmailVerificationRepository creates a new EmailVerificationRepository.
func NewEmailVerificationRepository(pool store.Pool) *EmailVerificationRepository {
	return &EmailVerificationRepository{pool: pool}
}

// Create stores a new verification.
func (r *EmailVerificationRepository) Create(ctx context.Context, v *auth.EmailVerification) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO email_verifications (token_hash, user_id, expires_at, created_at, used_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.TokenHash, v.UserID.String(), v.ExpiresAt, v.CreatedAt, v.UsedAt)
	if err != nil {
		return oops.Code("VERIFICATION_CREATE_FAILED").
			With("operation", "insert email_verification").
			With("user_id", v.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByHash retrieves a verification by its token hash.
func (r *EmailVerificationRepository) GetByHash(ctx context.Context, tokenHash string) (*auth.EmailVerification, error) {
	var (
		v         auth.EmailVerification
		userIDStr string
	)
	err := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT token_hash, user_id, expires_at, created_at, used_at
		FROM email_verifications WHERE token_hash = $1
	`, tokenHash).Scan(&v.TokenHash, &userIDStr, &v.ExpiresAt, &v.CreatedAt, &v.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("VERIFICATION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("VERIFICATION_GET_FAILED").With("operation", "get verification").Wrap(err)
	}
	if v.UserID, err = parseID(userIDStr, "user_id"); err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkUsed consumes an unused, unexpired verification.
func (r *EmailVerificationRepository) MarkUsed(ctx context.Context, tokenHash string, at time.Time) error {
	conn := store.Conn(ctx, r.pool)
	result, err := conn.Exec(ctx, `
		UPDATE email_verifications SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
	`, tokenHash, at)
	if err != nil {
		return oops.Code("VERIFICATION_MARK_USED_FAILED").With("operation", "mark verification used").Wrap(err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM email_verifications WHERE token_hash = $1)`, tokenHash,
	).Scan(&exists); err != nil {
		return oops.Code("VERIFICATION_MARK_USED_FAILED").With("operation", "check verification").Wrap(err)
	}
	if !exists {
		return oops.Code("VERIFICATION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return oops.Code("VERIFICATION_INACTIVE").Wrap(auth.ErrTokenInactive)
}

// DeleteByUser removes all verifications of a user.
func (r *EmailVerificationRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM email_verifications WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("VERIFICATION_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// DeleteExpired removes verifications that expired at or before now.
func (r *EmailVerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM email_verifications WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("VERIFICATION_PURGE_FAILED").With("operation", "delete expired").Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.EmailVerificationRepository = (*EmailVerificationRepository)(nil)
