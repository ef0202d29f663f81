// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package authtest

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/internal/auth"
)

// TestSecret is a signing secret long enough for AccessTokenIssuer.
const TestSecret = "test-signing-secret-0123456789abcdef"

// Clock is a manually advanced clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a Clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Fixture bundles a Service with its backing store and clock.
type Fixture struct {
	Service *auth.Service
	Store   *Store
	Clock   *Clock
	Tokens  *auth.AccessTokenIssuer
}

// NewFixture builds a Service over a fresh Store. Logs are discarded.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	clock := NewClock(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	tokens, err := auth.NewAccessTokenIssuer(auth.AccessTokenConfig{
		Secret:   TestSecret,
		Issuer:   "loreweave",
		Audience: "loreweave-clients",
		TTL:      time.Hour,
		Now:      clock.Now,
	})
	require.NoError(t, err)

	store := NewStore()
	svc, err := auth.NewService(auth.ServiceConfig{
		Users:           store.Users(),
		RefreshTokens:   store.RefreshTokens(),
		ResetTokens:     store.ResetTokens(),
		Verifications:   store.Verifications(),
		Hasher:          auth.NewHMACSHA512Hasher(),
		Tokens:          tokens,
		Transactor:      store.Transactor(),
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:             clock.Now,
	})
	require.NoError(t, err)

	return &Fixture{Service: svc, Store: store, Clock: clock, Tokens: tokens}
}
