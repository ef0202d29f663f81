// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package storetest starts a migrated PostgreSQL container for
// integration tests.
package storetest

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loreweave/loreweave/internal/store"
)

// Database is a running container with the schema applied.
type Database struct {
	Pool      *pgxpool.Pool
	ConnStr   string
	container testcontainers.Container
}

// Start runs postgres in a container, applies all migrations and opens
// a pool.
func Start(ctx context.Context) (*Database, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("loreweave_test"),
		postgres.WithUsername("loreweave"),
		postgres.WithPassword("loreweave"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, oops.Code("TEST_DB_START_FAILED").Wrap(err)
	}

	db := &Database{container: container}
	db.ConnStr, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		db.Close(ctx)
		return nil, oops.Code("TEST_DB_START_FAILED").With("operation", "connection string").Wrap(err)
	}

	migrator, err := store.NewMigrator(db.ConnStr)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	upErr := migrator.Up()
	closeErr := migrator.Close()
	if upErr != nil {
		db.Close(ctx)
		return nil, upErr
	}
	if closeErr != nil {
		db.Close(ctx)
		return nil, closeErr
	}

	db.Pool, err = store.Open(ctx, db.ConnStr)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	return db, nil
}

// Truncate empties every application table.
func (db *Database) Truncate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `TRUNCATE entity_relations, universes,
		email_verifications, password_reset_tokens, refresh_tokens, users CASCADE`)
	if err != nil {
		return oops.Code("TEST_DB_TRUNCATE_FAILED").Wrap(err)
	}
	return nil
}

// Close releases the pool and terminates the container.
func (db *Database) Close(ctx context.Context) {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.container != nil {
		_ = db.container.Terminate(ctx)
	}
}
