// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package store provides the PostgreSQL plumbing shared by every
// repository: pool construction, context-carried transactions and
// schema migrations.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// Pool is the subset of *pgxpool.Pool used by repositories.
// pgxmock.PgxPoolIface satisfies it, which keeps repositories unit-testable.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Querier executes statements. Both Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// Compile-time interface check.
var _ Pool = (*pgxpool.Pool)(nil)
