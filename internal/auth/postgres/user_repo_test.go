// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/pkg/errutil"
)

var (
	testUserID = ulid.MustParse("01JHQ5Z8Y3N4M7K2P6R9T1V0WX")
	testTime   = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
)

var userColumnNames = []string{
	"id", "username", "email", "password_hash", "password_salt",
	"is_active", "email_verified", "is_superuser", "last_login_at",
	"failed_attempts", "locked_until", "is_deleted", "created_at", "updated_at",
}

func userRows(users ...*auth.User) *pgxmock.Rows {
	rows := pgxmock.NewRows(userColumnNames)
	for _, u := range users {
		rows.AddRow(
			u.ID.String(), u.Username, u.Email, u.PasswordHash, u.PasswordSalt,
			u.IsActive, u.EmailVerified, u.IsSuperUser, u.LastLoginAt,
			u.FailedAttempts, u.LockedUntil, u.IsDeleted, u.CreatedAt, u.UpdatedAt,
		)
	}
	return rows
}

func testUser() *auth.User {
	return &auth.User{
		ID:           testUserID,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "aGFzaA==",
		PasswordSalt: "c2FsdA==",
		IsActive:     true,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name     string
		execErr  error
		wantCode string
		wantIs   error
	}{
		{name: "inserts user"},
		{
			name:     "maps unique violation to duplicate",
			execErr:  &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			wantCode: "USER_DUPLICATE",
			wantIs:   auth.ErrDuplicate,
		},
		{
			name:     "wraps other failures",
			execErr:  errors.New("connection reset"),
			wantCode: "USER_CREATE_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			expect := mock.ExpectExec(`INSERT INTO users`).
				WithArgs(testUserID.String(), "alice", "alice@example.com",
					pgxmock.AnyArg(), pgxmock.AnyArg(), true, false, false,
					pgxmock.AnyArg(), 0, pgxmock.AnyArg(), false, testTime, testTime)
			if tt.execErr != nil {
				expect.WillReturnError(tt.execErr)
			} else {
				expect.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := NewUserRepository(mock).Create(context.Background(), testUser())
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestUserRepository_GetByID(t *testing.T) {
	t.Run("returns user", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users\s+WHERE id = \$1 AND NOT is_deleted`).
			WithArgs(testUserID.String()).
			WillReturnRows(userRows(testUser()))

		got, err := NewUserRepository(mock).GetByID(context.Background(), testUserID)
		require.NoError(t, err)
		assert.Equal(t, testUser(), got)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users`).
			WithArgs(testUserID.String()).
			WillReturnRows(pgxmock.NewRows(userColumnNames))

		_, err := NewUserRepository(mock).GetByID(context.Background(), testUserID)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
		errutil.AssertErrorContext(t, err, "id", testUserID.String())
	})

	t.Run("query failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users`).
			WithArgs(testUserID.String()).
			WillReturnError(errors.New("connection refused"))

		_, err := NewUserRepository(mock).GetByID(context.Background(), testUserID)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_GET_FAILED")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("corrupt id column", func(t *testing.T) {
		mock := newMock(t)
		bad := testUser()
		mock.ExpectQuery(`SELECT .+ FROM users`).
			WithArgs(testUserID.String()).
			WillReturnRows(pgxmock.NewRows(userColumnNames).AddRow(
				"not-a-ulid", bad.Username, bad.Email, bad.PasswordHash, bad.PasswordSalt,
				true, false, false, (*time.Time)(nil), 0, (*time.Time)(nil), false, testTime, testTime,
			))

		_, err := NewUserRepository(mock).GetByID(context.Background(), testUserID)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_GET_FAILED")
	})
}

func TestUserRepository_GetByIDIncludingDeleted(t *testing.T) {
	t.Run("returns soft-deleted user", func(t *testing.T) {
		mock := newMock(t)
		want := testUser()
		want.IsDeleted = true
		want.IsActive = false
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1\s*$`).
			WithArgs(testUserID.String()).
			WillReturnRows(userRows(want))

		got, err := NewUserRepository(mock).GetByIDIncludingDeleted(context.Background(), testUserID)
		require.NoError(t, err)
		assert.True(t, got.IsDeleted)
		assert.Equal(t, want, got)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
			WithArgs(testUserID.String()).
			WillReturnRows(pgxmock.NewRows(userColumnNames))

		_, err := NewUserRepository(mock).GetByIDIncludingDeleted(context.Background(), testUserID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})
}

func TestUserRepository_GetByLoginPrefersUsername(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`ORDER BY LOWER\(username\) = LOWER\(\$1\) DESC\s+LIMIT 1`).
		WithArgs("Alice").
		WillReturnRows(userRows(testUser()))

	got, err := NewUserRepository(mock).GetByLogin(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestUserRepository_LockSelectsForUpdate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(testUserID.String()).
		WillReturnRows(userRows(testUser()))

	got, err := NewUserRepository(mock).Lock(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.ID)
}

func TestUserRepository_List(t *testing.T) {
	second := testUser()
	second.ID = ulid.MustParse("01JHQ5Z8Y3N4M7K2P6R9T1V0WY")
	second.Username = "bob"
	second.Email = "bob@example.com"
	lastLogin := testTime.Add(time.Hour)
	second.LastLoginAt = &lastLogin

	mock := newMock(t)
	mock.ExpectQuery(`ORDER BY created_at, id`).
		WillReturnRows(userRows(testUser(), second))

	got, err := NewUserRepository(mock).List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[1].Username)
	require.NotNil(t, got[1].LastLoginAt)
	assert.True(t, got[1].LastLoginAt.Equal(lastLogin))
}

func TestUserRepository_Update(t *testing.T) {
	tests := []struct {
		name     string
		result   pgconn.CommandTag
		execErr  error
		wantCode string
	}{
		{name: "updates row", result: pgxmock.NewResult("UPDATE", 1)},
		{name: "no row is not found", result: pgxmock.NewResult("UPDATE", 0), wantCode: "USER_NOT_FOUND"},
		{
			name:     "email collision is duplicate",
			execErr:  &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			wantCode: "USER_DUPLICATE",
		},
		{name: "exec failure", execErr: errors.New("boom"), wantCode: "USER_UPDATE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			expect := mock.ExpectExec(`UPDATE users SET`).
				WithArgs(testUserID.String(), "alice", "alice@example.com",
					pgxmock.AnyArg(), pgxmock.AnyArg(), true, false,
					pgxmock.AnyArg(), 0, pgxmock.AnyArg(), testTime)
			if tt.execErr != nil {
				expect.WillReturnError(tt.execErr)
			} else {
				expect.WillReturnResult(tt.result)
			}

			err := NewUserRepository(mock).Update(context.Background(), testUser())
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestUserRepository_DeleteIsSoft(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET is_deleted = TRUE`).
		WithArgs(testUserID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewUserRepository(mock).Delete(context.Background(), testUserID))
}
