// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/internal/auth/authtest"
	"github.com/loreweave/loreweave/internal/auth/postgres"
	"github.com/loreweave/loreweave/internal/store"
	"github.com/loreweave/loreweave/internal/store/storetest"
)

var testDB *storetest.Database

func TestMain(m *testing.M) {
	ctx := context.Background()
	db, err := storetest.Start(ctx)
	if err != nil {
		panic("failed to start postgres: " + err.Error())
	}
	testDB = db

	code := m.Run()
	db.Close(ctx)
	os.Exit(code)
}

func newService(t *testing.T) (*auth.Service, *authtest.Clock) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, testDB.Truncate(ctx))

	clock := authtest.NewClock(time.Now().UTC().Truncate(time.Microsecond))
	tokens, err := auth.NewAccessTokenIssuer(auth.AccessTokenConfig{
		Secret:   authtest.TestSecret,
		Issuer:   "loreweave",
		Audience: "loreweave-clients",
		TTL:      time.Hour,
		Now:      clock.Now,
	})
	require.NoError(t, err)

	svc, err := auth.NewService(auth.ServiceConfig{
		Users:         postgres.NewUserRepository(testDB.Pool),
		RefreshTokens: postgres.NewRefreshTokenRepository(testDB.Pool),
		ResetTokens:   postgres.NewPasswordResetRepository(testDB.Pool),
		Verifications: postgres.NewEmailVerificationRepository(testDB.Pool),
		Hasher:        auth.NewArgon2idHasher(),
		Tokens:        tokens,
		Transactor:    store.NewTransactor(testDB.Pool),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return svc, clock
}

func TestAuthFlowAgainstPostgres(t *testing.T) {
	svc, clock := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice", "alice@example.com", "correct-horse")
	require.NoError(t, err)
	require.True(t, reg.Success, reg.Message)

	dup, err := svc.Register(ctx, "ALICE", "other@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, auth.CodeDuplicate, dup.Code)

	login, err := svc.Login(ctx, "alice@example.com", "correct-horse")
	require.NoError(t, err)
	require.True(t, login.Success)

	clock.Advance(time.Second)
	rotated, err := svc.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	require.True(t, rotated.Success)

	replay, err := svc.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, auth.CodeInvalidOrExpiredToken, replay.Code)

	changed, err := svc.ChangePassword(ctx, reg.User.ID, "correct-horse", "battery-staple")
	require.NoError(t, err)
	require.True(t, changed.Success)

	stale, err := svc.RefreshToken(ctx, rotated.RefreshToken)
	require.NoError(t, err)
	assert.False(t, stale.Success, "password change revokes every session")

	resetToken, err := svc.GeneratePasswordResetToken(ctx, "alice@example.com")
	require.NoError(t, err)
	ok, err := svc.ResetPassword(ctx, resetToken, "tr0ub4dor&3")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.ResetPassword(ctx, resetToken, "another-one")
	require.NoError(t, err)
	assert.False(t, ok, "reset tokens are single use")

	ok, err = svc.VerifyEmail(ctx, reg.VerificationToken)
	require.NoError(t, err)
	assert.True(t, ok)

	user, err := svc.GetUser(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "bob", "bob@example.com", "correct-horse")
	require.NoError(t, err)
	require.True(t, reg.Success)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RefreshToken(ctx, reg.RefreshToken)
			assert.NoError(t, err)
			if res.Success {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestSuperUserSurvivesDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.EnsureSuperUser(ctx, auth.DefaultSuperUserPassword)
	require.NoError(t, err)
	require.True(t, created)

	ok, err := svc.DeleteUser(ctx, auth.SuperUserID)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := svc.EnsureSuperUser(ctx, auth.DefaultSuperUserPassword)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestDeletedUserStaysRetrievableByID(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "carol", "carol@example.com", "correct-horse")
	require.NoError(t, err)
	require.True(t, reg.Success)

	ok, err := svc.DeleteUser(ctx, reg.User.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.GetUser(ctx, reg.User.ID)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	deleted, err := svc.GetUserIncludingDeleted(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.False(t, deleted.IsActive)
}
