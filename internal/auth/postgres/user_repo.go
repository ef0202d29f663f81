// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/internal/store"
)

const userColumns = `id, username, email, password_hash, password_salt,
	is_active, email_verified, is_superuser, last_login_at,
	failed_attempts, locked_until, is_deleted, created_at, updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool store.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool store.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.PasswordHash,
		user.PasswordSalt,
		user.IsActive,
		user.EmailVerified,
		user.IsSuperUser,
		user.LastLoginAt,
		user.FailedAttempts,
		user.LockedUntil,
		user.IsDeleted,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("USER_DUPLICATE").
			With("username", user.Username).
			Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a non-deleted user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "id", id.String(), `
		SELECT `+userColumns+` FROM users
		WHERE id = $1 AND NOT is_deleted
	`, id.String())
}

// GetByIDIncludingDeleted retrieves a user by ID, including soft-deleted ones.
func (r *UserRepository) GetByIDIncludingDeleted(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "id", id.String(), `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id.String())
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.getOne(ctx, "username", username, `
		SELECT `+userColumns+` FROM users
		WHERE LOWER(username) = LOWER($1) AND NOT is_deleted
	`, username)
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, "email", email, `
		SELECT `+userColumns+` FROM users
		WHERE LOWER(email) = LOWER($1) AND NOT is_deleted
	`, email)
}

// GetByLogin retrieves a user whose username or email matches login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*auth.User, error) {
	return r.getOne(ctx, "login", login, `
		SELECT `+userColumns+` FROM users
		WHERE (LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)) AND NOT is_deleted
		ORDER BY LOWER(username) = LOWER($1) DESC
		LIMIT 1
	`, login)
}

// Lock retrieves a user with FOR UPDATE. The lock lasts until the
// transaction carried by ctx ends.
func (r *UserRepository) Lock(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	return r.getOne(ctx, "id", id.String(), `
		SELECT `+userColumns+` FROM users
		WHERE id = $1 AND NOT is_deleted
		FOR UPDATE
	`, id.String())
}

func (r *UserRepository) getOne(ctx context.Context, key, value, query string, args ...any) (*auth.User, error) {
	user, err := scanUser(store.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+key).
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

// List returns all non-deleted users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := store.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE NOT is_deleted
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "scan user").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

// Update replaces the mutable fields of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET
			username = $2, email = $3, password_hash = $4, password_salt = $5,
			is_active = $6, email_verified = $7, last_login_at = $8,
			failed_attempts = $9, locked_until = $10, updated_at = $11
		WHERE id = $1 AND NOT is_deleted
	`,
		user.ID.String(),
		user.Username,
		user.Email,
		user.PasswordHash,
		user.PasswordSalt,
		user.IsActive,
		user.EmailVerified,
		user.LastLoginAt,
		user.FailedAttempts,
		user.LockedUntil,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.Code("USER_DUPLICATE").With("id", user.ID.String()).Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete soft-deletes a user.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET is_deleted = TRUE, is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "soft delete user").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user  auth.User
		idStr string
	)
	err := row.Scan(
		&idStr,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.IsActive,
		&user.EmailVerified,
		&user.IsSuperUser,
		&user.LastLoginAt,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.IsDeleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.ID, err = parseID(idStr, "id"); err != nil {
		return nil, err
	}
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
