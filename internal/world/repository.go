// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// UniverseRepository manages universe persistence. A universe and its
// entities are stored and replaced together.
type UniverseRepository interface {
	// Create persists a new universe.
	Create(ctx context.Context, u *Universe) error

	// Get retrieves a universe by ID, including soft-deleted ones.
	Get(ctx context.Context, id ulid.ULID) (*Universe, error)

	// ListByOwner returns the owner's active universes.
	ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*Universe, error)

	// List returns all active universes.
	List(ctx context.Context) ([]*Universe, error)

	// Update replaces a universe if its stored Version still equals
	// u.Version, then increments u.Version. Returns ErrConflict when the
	// version moved and ErrNotFound when the universe does not exist.
	// UpdatedAt never moves back past a concurrent Touch; u.UpdatedAt is
	// set to the stored value.
	Update(ctx context.Context, u *Universe) error

	// Touch advances UpdatedAt of an active universe without a version check.
	Touch(ctx context.Context, id ulid.ULID, at time.Time) error

	// Delete soft-deletes a universe.
	Delete(ctx context.Context, id ulid.ULID, at time.Time) error
}

// RelationRepository manages relation persistence.
type RelationRepository interface {
	// Create assigns rel.ID as one more than the highest id ever stored
	// and persists the relation in the same statement. Returns
	// ErrIDConflict when a concurrent writer took the id.
	Create(ctx context.Context, rel *EntityRelation) error

	// MaxID returns the highest stored id, deleted relations included, or
	// 0 when there are none.
	MaxID(ctx context.Context) (int64, error)

	// Get retrieves a relation by ID, including soft-deleted ones.
	Get(ctx context.Context, id int64) (*EntityRelation, error)

	// ListByUniverse returns the active relations of a universe in id order.
	ListByUniverse(ctx context.Context, universeID ulid.ULID) ([]*EntityRelation, error)

	// ListByEntity returns the active relations of a universe in which the
	// entity is either side.
	ListByEntity(ctx context.Context, universeID, entityID ulid.ULID) ([]*EntityRelation, error)

	// Update replaces participants, type and UpdatedAt of an active relation.
	Update(ctx context.Context, rel *EntityRelation) error

	// Delete soft-deletes an active relation.
	Delete(ctx context.Context, id int64, at time.Time) error
}

// Transactor runs fn in a transaction carried by ctx.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
