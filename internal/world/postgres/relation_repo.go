// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/loreweave/loreweave/internal/store"
	"github.com/loreweave/loreweave/internal/world"
)

const relationColumns = `id, universe_id, from_kind, from_id, to_kind, to_id,
	relation_type, is_deleted, created_at, updated_at`

// relationIDLock is the advisory lock key that serializes relation id
// assignment until the inserting transaction ends.
const relationIDLock int64 = 0x6c6f7265_72656c00

// RelationRepository implements world.RelationRepository using PostgreSQL.
type RelationRepository struct {
	pool store.Pool
}

// NewRelationRepository creates a new RelationRepository.
func NewRelationRepository(pool store.Pool) *RelationRepository {
	return &RelationRepository{pool: pool}
}

// Create inserts rel with one more than the highest id in the table.
// Deleted rows stay in the table, so ids are never handed out twice.
// Inside a transaction the advisory lock holds other creators back until
// commit. Without one, two writers that pick the same id collide on the
// primary key; the loser gets world.ErrIDConflict.
func (r *RelationRepository) Create(ctx context.Context, rel *world.EntityRelation) error {
	conn := store.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, relationIDLock); err != nil {
		return oops.Code("RELATION_INSERT_FAILED").
			With("operation", "lock relation ids").
			With("universe_id", rel.UniverseID.String()).
			Wrap(err)
	}
	err := conn.QueryRow(ctx, `
		INSERT INTO entity_relations (`+relationColumns+`)
		VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM entity_relations),
			$1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		rel.UniverseID.String(),
		string(rel.From.Kind),
		rel.From.ID.String(),
		string(rel.To.Kind),
		rel.To.ID.String(),
		string(rel.Type),
		rel.IsDeleted,
		rel.CreatedAt,
		rel.UpdatedAt,
	).Scan(&rel.ID)
	if isUniqueViolation(err) {
		return oops.Code("RELATION_ID_CONFLICT").
			With("universe_id", rel.UniverseID.String()).
			Wrap(world.ErrIDConflict)
	}
	if err != nil {
		return oops.Code("RELATION_INSERT_FAILED").
			With("operation", "insert relation").
			With("universe_id", rel.UniverseID.String()).
			Wrap(err)
	}
	return nil
}

// MaxID returns the highest id ever assigned, or 0.
func (r *RelationRepository) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	err := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(MAX(id), 0) FROM entity_relations
	`).Scan(&maxID)
	if err != nil {
		return 0, oops.Code("RELATION_MAX_ID_FAILED").Wrap(err)
	}
	return maxID, nil
}

// Get retrieves a relation by ID, including soft-deleted ones.
func (r *RelationRepository) Get(ctx context.Context, id int64) (*world.EntityRelation, error) {
	row := store.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+relationColumns+` FROM entity_relations WHERE id = $1
	`, id)
	rel, err := scanRelation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RELATION_NOT_FOUND").With("relation_id", id).Wrap(world.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RELATION_GET_FAILED").With("relation_id", id).Wrap(err)
	}
	return rel, nil
}

// ListByUniverse returns the active relations of a universe in id order.
func (r *RelationRepository) ListByUniverse(ctx context.Context, universeID ulid.ULID) ([]*world.EntityRelation, error) {
	return r.list(ctx, "list relations by universe", `
		SELECT `+relationColumns+` FROM entity_relations
		WHERE universe_id = $1 AND NOT is_deleted
		ORDER BY id
	`, universeID.String())
}

// ListByEntity returns the active relations in which entityID is either side.
func (r *RelationRepository) ListByEntity(ctx context.Context, universeID, entityID ulid.ULID) ([]*world.EntityRelation, error) {
	return r.list(ctx, "list relations by entity", `
		SELECT `+relationColumns+` FROM entity_relations
		WHERE universe_id = $1 AND (from_id = $2 OR to_id = $2) AND NOT is_deleted
		ORDER BY id
	`, universeID.String(), entityID.String())
}

func (r *RelationRepository) list(ctx context.Context, operation, sql string, args ...any) ([]*world.EntityRelation, error) {
	rows, err := store.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, oops.Code("RELATION_LIST_FAILED").With("operation", operation).Wrap(err)
	}
	defer rows.Close()

	var out []*world.EntityRelation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, oops.Code("RELATION_LIST_FAILED").With("operation", "scan relation").Wrap(err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RELATION_LIST_FAILED").With("operation", "iterate relations").Wrap(err)
	}
	return out, nil
}

// Update replaces participants, type and UpdatedAt of an active relation.
func (r *RelationRepository) Update(ctx context.Context, rel *world.EntityRelation) error {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE entity_relations
		SET from_kind = $2, from_id = $3, to_kind = $4, to_id = $5,
			relation_type = $6, updated_at = $7
		WHERE id = $1 AND NOT is_deleted
	`,
		rel.ID,
		string(rel.From.Kind),
		rel.From.ID.String(),
		string(rel.To.Kind),
		rel.To.ID.String(),
		string(rel.Type),
		rel.UpdatedAt,
	)
	if err != nil {
		return oops.Code("RELATION_UPDATE_FAILED").With("relation_id", rel.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RELATION_NOT_FOUND").With("relation_id", rel.ID).Wrap(world.ErrNotFound)
	}
	return nil
}

// Delete soft-deletes an active relation.
func (r *RelationRepository) Delete(ctx context.Context, id int64, at time.Time) error {
	tag, err := store.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE entity_relations SET is_deleted = TRUE, updated_at = $2
		WHERE id = $1 AND NOT is_deleted
	`, id, at)
	if err != nil {
		return oops.Code("RELATION_DELETE_FAILED").With("relation_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RELATION_NOT_FOUND").With("relation_id", id).Wrap(world.ErrNotFound)
	}
	return nil
}

func scanRelation(row pgx.Row) (*world.EntityRelation, error) {
	var (
		rel                       world.EntityRelation
		universeID, fromID, toID  string
		fromKind, toKind, relType string
	)
	if err := row.Scan(
		&rel.ID, &universeID, &fromKind, &fromID, &toKind, &toID,
		&relType, &rel.IsDeleted, &rel.CreatedAt, &rel.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rel.UniverseID, err = parseID(universeID, "universe_id"); err != nil {
		return nil, err
	}
	if rel.From.ID, err = parseID(fromID, "from_id"); err != nil {
		return nil, err
	}
	if rel.To.ID, err = parseID(toID, "to_id"); err != nil {
		return nil, err
	}
	rel.From.Kind = world.Kind(fromKind)
	rel.To.Kind = world.Kind(toKind)
	rel.Type = world.RelationType(relType)
	return &rel, nil
}

// Compile-time interface check.
var _ world.RelationRepository = (*RelationRepository)(nil)
