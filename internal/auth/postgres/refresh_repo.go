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

const refreshColumns = `token_hash, user_id, expires_at, created_at,
	revoked_at, revoked_reason, replaced_by_hash`

// RefreshTokenRepository implements auth.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	pool store.Pool
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(pool store.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Create stores a new refresh token.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO refresh_tokens (`+refreshColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		token.TokenHash,
		token.UserID.String(),
		token.ExpiresAt,
		token.CreatedAt,
		token.RevokedAt,
		token.RevokedReason,
		token.ReplacedByHash,
	)
	if err != nil {
		return oops.Code("REFRESH_TOKEN_CREATE_FAILED").
			With("operation", "insert refresh_token").
			With("user_id", token.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByHash retrieves a refresh token by its hash.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = $1
	`, tokenHash)
	token, err := scanRefreshToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_GET_FAILED").With("operation", "get refresh token").Wrap(err)
	}
	return token, nil
}

// Revoke revokes a token with a conditional update so that concurrent
// callers cannot both succeed.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, req auth.RevokeRequest) (*auth.RefreshToken, error) {
	conn := store.Conn(ctx, r.pool)
	row := conn.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = $2, revoked_reason = $3, replaced_by_hash = $4
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND (NOT $5 OR expires_at > $2)
		RETURNING `+refreshColumns,
		req.TokenHash, req.At, req.Reason, req.ReplacedByHash, req.RequireActive,
	)
	token, err := scanRefreshToken(row)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").With("operation", "revoke refresh token").Wrap(err)
	}

	// Nothing updated: tell a missing token from an inactive one.
	var exists bool
	if err := conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_hash = $1)`, req.TokenHash,
	).Scan(&exists); err != nil {
		return nil, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").With("operation", "check refresh token").Wrap(err)
	}
	if !exists {
		return nil, oops.Code("REFRESH_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil, oops.Code("REFRESH_TOKEN_INACTIVE").Wrap(auth.ErrTokenInactive)
}

// RevokeAllForUser revokes every unrevoked token of a user.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID ulid.ULID, reason string, at time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID.String(), at, reason)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_REVOKE_FAILED").
			With("operation", "revoke all for user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// ListByUser returns all tokens of a user, newest first.
func (r *RefreshTokenRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*auth.RefreshToken, error) {
	rows, err := store.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+refreshColumns+` FROM refresh_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("REFRESH_TOKEN_LIST_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	defer rows.Close()

	var tokens []*auth.RefreshToken
	for rows.Next() {
		token, err := scanRefreshToken(rows)
		if err != nil {
			return nil, oops.Code("REFRESH_TOKEN_LIST_FAILED").With("operation", "scan refresh token").Wrap(err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("REFRESH_TOKEN_LIST_FAILED").With("operation", "iterate refresh tokens").Wrap(err)
	}
	return tokens, nil
}

// DeleteByUser removes all tokens of a user.
func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("REFRESH_TOKEN_DELETE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	return nil
}

// DeleteExpired removes tokens that expired at or before now.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("REFRESH_TOKEN_PURGE_FAILED").With("operation", "delete expired").Wrap(err)
	}
	return result.RowsAffected(), nil
}

func scanRefreshToken(row pgx.Row) (*auth.RefreshToken, error) {
	var (
		token     auth.RefreshToken
		userIDStr string
	)
	err := row.Scan(
		&token.TokenHash,
		&userIDStr,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.RevokedAt,
		&token.RevokedReason,
		&token.ReplacedByHash,
	)
	if err != nil {
		return nil, err
	}
	if token.UserID, err = parseID(userIDStr, "user_id"); err != nil {
		return nil, err
	}
	return &token, nil
}

// Compile-time interface check.
var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
