// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"context"
	"time"

	"github.com/loreweave/loreweave/internal/auth"
	"github.com/loreweave/loreweave/internal/observability"
	"github.com/loreweave/loreweave/internal/store"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory opens the database pool.
	// Default: store.Open
	PoolFactory func(ctx context.Context, url string) (Pool, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, regs ...observability.Registration) ObservabilityServer

	// JanitorFactory creates the background token purger.
	// Default: auth.NewJanitor
	JanitorFactory func(purger auth.Purger, interval time.Duration) Worker
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string) (Pool, error) {
			return store.Open(ctx, url)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			return store.NewMigrator(url)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, regs ...observability.Registration) ObservabilityServer {
			return observability.NewServer(addr, ready, regs...)
		}
	}
	if out.JanitorFactory == nil {
		out.JanitorFactory = func(purger auth.Purger, interval time.Duration) Worker {
			return auth.NewJanitor(purger, interval, nil)
		}
	}
	return &out
}

// Pool wraps the pool methods used by the commands. *pgxpool.Pool and
// pgxmock.PgxPoolIface satisfy it.
type Pool interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// Worker wraps the methods used from auth.Janitor.
type Worker interface {
	Start(ctx context.Context) error
	Stop()
}
