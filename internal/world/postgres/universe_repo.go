// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/loreweave/loreweave/internal/store"
	"github.com/loreweave/loreweave/internal/world"
)

const universeColumns = `id, owner_id, name, description, timeline_mode,
	entities, version, is_deleted, created_at, updated_at`

// UniverseRepository implements world.UniverseRepository using PostgreSQL.
// Entities are stored as one JSONB document per universe.
type UniverseRepository struct {
	pool store.Pool
}

// NewUniverseRepository creates a new UniverseRepository.
func NewUniverseRepository(pool store.Pool) *UniverseRepository {
	return &UniverseRepository{pool: pool}
}

// Create persists a new universe.
func (r *UniverseRepository) Create(ctx context.Context, u *world.Universe) error {
	doc, err := encodeEntities(u)
	if err != nil {
		return err
	}
	_, err = store.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO universes (`+universeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		u.ID.String(),
		u.OwnerID.String(),
		u.Name,
		u.Description,
		string(u.TimelineMode),
		doc,
		u.Version,
		u.IsDeleted,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return oops.Code("UNIVERSE_CREATE_FAILED").
			With("operation", "insert universe").
			With("universe_id", u.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves a universe by ID, including soft-deleted ones.
func (r *UniverseRepository) Get(ctx context.Context, id ulid.ULID) (*world.Universe, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+universeColumns+` FROM universes WHERE id = $1
	`, id.String())
	u, err := scanUniverse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(world.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("UNIVERSE_GET_FAILED").With("universe_id", id.String()).Wrap(err)
	}
	return u, nil
}

// ListByOwner returns the owner's active universes, oldest first.
func (r *UniverseRepository) ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*world.Universe, error) {
	return r.list(ctx, "list universes by owner", `
		SELECT `+universeColumns+` FROM universes
		WHERE owner_id = $1 AND NOT is_deleted
		ORDER BY created_at, id
	`, ownerID.String())
}

// List returns all active universes, oldest first.
func (r *UniverseRepository) List(ctx context.Context) ([]*world.Universe, error) {
	return r.list(ctx, "list universes", `
		SELECT `+universeColumns+` FROM universes
		WHERE NOT is_deleted
		ORDER BY created_at, id
	`)
}

func (r *UniverseRepository) list(ctx context.Context, operation, sql string, args ...any) ([]*world.Universe, error) {
	rows, err := store.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, oops.Code("UNIVERSE_LIST_FAILED").With("operation", operation).Wrap(err)
	}
	defer rows.Close()

	var out []*world.Universe
	for rows.Next() {
		u, err := scanUniverse(rows)
		if err != nil {
			return nil, oops.Code("UNIVERSE_LIST_FAILED").With("operation", "scan universe").Wrap(err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("UNIVERSE_LIST_FAILED").With("operation", "iterate universes").Wrap(err)
	}
	return out, nil
}

// Update replaces the universe when its stored version still matches
// u.Version, then increments u.Version. A later updated_at written by
// Touch is kept.
func (r *UniverseRepository) Update(ctx context.Context, u *world.Universe) error {
	doc, err := encodeEntities(u)
	if err != nil {
		return err
	}
	conn := store.Conn(ctx, r.pool)
	var updatedAt time.Time
	err = conn.QueryRow(ctx, `
		UPDATE universes
		SET name = $3, description = $4, timeline_mode = $5, entities = $6,
			is_deleted = $7, updated_at = GREATEST(updated_at, $8), version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING updated_at
	`,
		u.ID.String(),
		u.Version,
		u.Name,
		u.Description,
		string(u.TimelineMode),
		doc,
		u.IsDeleted,
		u.UpdatedAt,
	).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return missingOrStale(ctx, conn, u.ID, u.Version)
	}
	if err != nil {
		return oops.Code("UNIVERSE_UPDATE_FAILED").
			With("operation", "update universe").
			With("universe_id", u.ID.String()).
			Wrap(err)
	}
	u.UpdatedAt = updatedAt
	u.Version++
	return nil
}

// missingOrStale tells a missing universe apart from a version mismatch
// after a conditional update matched nothing.
func missingOrStale(ctx context.Context, conn store.Querier, id ulid.ULID, version int64) error {
	var exists bool
	err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM universes WHERE id = $1)`, id.String()).Scan(&exists)
	if err != nil {
		return oops.Code("UNIVERSE_UPDATE_FAILED").
			With("operation", "check universe").
			With("universe_id", id.String()).
			Wrap(err)
	}
	if !exists {
		return oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(world.ErrNotFound)
	}
	return oops.Code("UNIVERSE_VERSION_CONFLICT").
		With("universe_id", id.String()).
		With("version", version).
		Wrap(world.ErrConflict)
}

// Touch advances UpdatedAt of an active universe. It never moves it back.
func (r *UniverseRepository) Touch(ctx context.Context, id ulid.ULID, at time.Time) error {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE universes SET updated_at = GREATEST(updated_at, $2)
		WHERE id = $1 AND NOT is_deleted
	`, id.String(), at)
	if err != nil {
		return oops.Code("UNIVERSE_TOUCH_FAILED").With("universe_id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(world.ErrNotFound)
	}
	return nil
}

// Delete soft-deletes an active universe.
func (r *UniverseRepository) Delete(ctx context.Context, id ulid.ULID, at time.Time) error {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE universes SET is_deleted = TRUE, updated_at = $2, version = version + 1
		WHERE id = $1 AND NOT is_deleted
	`, id.String(), at)
	if err != nil {
		return oops.Code("UNIVERSE_DELETE_FAILED").With("universe_id", id.String()).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(world.ErrNotFound)
	}
	return nil
}

// encodeEntities validates and serializes the entity collections of u.
func encodeEntities(u *world.Universe) ([]byte, error) {
	if err := world.ValidateCollections(&u.Collections); err != nil {
		return nil, oops.With("universe_id", u.ID.String()).Wrap(err)
	}
	doc, err := json.Marshal(&u.Collections)
	if err != nil {
		return nil, oops.Code("UNIVERSE_ENCODE_FAILED").With("universe_id", u.ID.String()).Wrap(err)
	}
	return doc, nil
}

func scanUniverse(row pgx.Row) (*world.Universe, error) {
	var (
		u              world.Universe
		idStr, ownerID string
		mode           string
		doc            []byte
	)
	if err := row.Scan(
		&idStr, &ownerID, &u.Name, &u.Description, &mode,
		&doc, &u.Version, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if u.ID, err = parseID(idStr, "id"); err != nil {
		return nil, err
	}
	if u.OwnerID, err = parseID(ownerID, "owner_id"); err != nil {
		return nil, err
	}
	u.TimelineMode = world.TimelineMode(mode)
	if err := json.Unmarshal(doc, &u.Collections); err != nil {
		return nil, oops.With("operation", "decode entities").With("universe_id", idStr).Wrap(err)
	}
	return &u, nil
}

// Compile-time interface check.
var _ world.UniverseRepository = (*UniverseRepository)(nil)
