// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package worldtest

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/internal/auth/authtest"
	"github.com/loreweave/loreweave/internal/world"
)

// Fixture bundles a Service and Registry over one Store.
type Fixture struct {
	Service  *world.Service
	Registry *world.Registry
	Store    *Store
	Clock    *authtest.Clock
}

// NewFixture builds a Service and Registry over a fresh Store with a
// manual clock. Logs are discarded and retries do not sleep noticeably.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	clock := authtest.NewClock(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewStore()

	svc, err := world.NewService(world.ServiceConfig{
		Universes:     store.Universes(),
		Logger:        logger,
		Now:           clock.Now,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)

	reg, err := world.NewRegistry(world.RegistryConfig{
		Universes:     store.Universes(),
		Relations:     store.Relations(),
		Transactor:    store.Transactor(),
		Logger:        logger,
		Now:           clock.Now,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)

	return &Fixture{Service: svc, Registry: reg, Store: store, Clock: clock}
}
