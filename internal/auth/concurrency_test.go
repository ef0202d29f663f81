// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/internal/auth/authtest"
)

func TestService_ConcurrentRefreshHasOneWinner(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	f := authtest.NewFixture(t)
	reg := registerAlice(t, f)

	const callers = 8
	results := make([]auth.Result, callers)
	errs := make([]error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	for i := range callers {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			results[i], errs[i] = f.Service.RefreshToken(ctx, reg.RefreshToken)
		}()
	}
	start.Done()
	done.Wait()

	winners := 0
	for i := range callers {
		require.NoError(t, errs[i])
		if results[i].Success {
			winners++
			continue
		}
		assert.Equal(t, auth.CodeInvalidOrExpiredToken, results[i].Code)
	}
	assert.Equal(t, 1, winners)

	// The rotated token was revoked once and now points at exactly one successor.
	old, err := f.Store.RefreshTokens().GetByHash(ctx, auth.HashToken(reg.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, auth.ReasonRotated, old.RevokedReason)
	assert.Equal(t, 1, activeTokens(t, f, reg.User.ID))
}

func TestService_PasswordChangeRevokesTokensIssuedConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	f := authtest.NewFixture(t)
	reg := registerAlice(t, f)

	var wg sync.WaitGroup
	logins := make([]auth.Result, 4)
	for i := range logins {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.Service.Login(ctx, "alice", "Secret123!")
			assert.NoError(t, err)
			logins[i] = res
		}()
	}
	var changed auth.Result
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := f.Service.ChangePassword(ctx, reg.User.ID, "Secret123!", "Changed456!")
		assert.NoError(t, err)
		changed = res
	}()
	wg.Wait()
	require.True(t, changed.Success)

	// Every token either predates the change (and was revoked) or was
	// issued after it; a login that raced the change cannot leave an
	// earlier-password token active.
	tokens, err := f.Store.RefreshTokens().ListByUser(ctx, reg.User.ID)
	require.NoError(t, err)
	successful := 0
	for _, res := range logins {
		if res.Success {
			successful++
		}
	}
	active := activeTokens(t, f, reg.User.ID)
	assert.LessOrEqual(t, active, successful)
	assert.Len(t, tokens, successful+1)
}
