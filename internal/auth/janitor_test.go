// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/internal/auth/authtest"
	"github.com/loreweave/loreweave/pkg/errutil"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (auth.PurgeStats, error) {
	p.calls.Add(1)
	return auth.PurgeStats{}, p.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestJanitorPurgesImmediatelyAndPeriodically(t *testing.T) {
	defer goleak.VerifyNone(t)

	purger := &countingPurger{}
	j := auth.NewJanitor(purger, 5*time.Millisecond, quietLogger())
	require.NoError(t, j.Start(context.Background()))

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 3 },
		time.Second, time.Millisecond)
	j.Stop()

	stopped := purger.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, purger.calls.Load(), "no purges after Stop")
}

func TestJanitorKeepsRunningAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	purger := &countingPurger{err: errors.New("database unavailable")}
	j := auth.NewJanitor(purger, 5*time.Millisecond, quietLogger())
	require.NoError(t, j.Start(context.Background()))
	defer j.Stop()

	assert.Eventually(t, func() bool { return purger.calls.Load() >= 2 },
		time.Second, time.Millisecond)
}

func TestJanitorStartTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	j := auth.NewJanitor(&countingPurger{}, time.Hour, quietLogger())
	require.NoError(t, j.Start(context.Background()))
	defer j.Stop()

	err := j.Start(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "JANITOR_ALREADY_RUNNING")
}

func TestJanitorStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	j := auth.NewJanitor(&countingPurger{}, time.Hour, quietLogger())
	require.NoError(t, j.Start(ctx))
	cancel()
	j.Stop()
}

func TestJanitorPurgesServiceTokens(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := authtest.NewFixture(t)
	res := registerAlice(t, f)
	f.Clock.Advance(30 * 24 * hour)

	j := auth.NewJanitor(f.Service, hour, quietLogger())
	require.NoError(t, j.Start(context.Background()))
	assert.Eventually(t, func() bool {
		tokens, err := f.Store.RefreshTokens().ListByUser(context.Background(), res.User.ID)
		return err == nil && len(tokens) == 0
	}, time.Second, time.Millisecond)
	j.Stop()
}
