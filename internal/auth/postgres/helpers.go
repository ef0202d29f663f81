// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// isUniqueViolation reports whether err is a PostgreSQL unique violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// parseID parses a stored ULID, naming the column on failure.
func parseID(s, column string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.With("operation", "parse "+column).With(column, s).Wrap(err)
	}
	return id, nil
}
