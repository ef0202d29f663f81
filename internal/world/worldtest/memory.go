// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package worldtest provides in-memory world repositories for tests.
package worldtest

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/loreweave/loreweave/internal/world"
)

// Store holds universes and relations in memory. Stored values are never
// shared with callers.
type Store struct {
	txMu sync.Mutex

	mu        sync.Mutex
	universes map[ulid.ULID]*world.Universe
	relations map[int64]world.EntityRelation

	// idConflicts makes the next n relation inserts fail with ErrIDConflict.
	idConflicts int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		universes: make(map[ulid.ULID]*world.Universe),
		relations: make(map[int64]world.EntityRelation),
	}
}

// Universes returns the universe repository view of the store.
func (s *Store) Universes() *UniverseRepository { return &UniverseRepository{s: s} }

// Relations returns the relation repository view of the store.
func (s *Store) Relations() *RelationRepository { return &RelationRepository{s: s} }

// Transactor returns a Transactor over the store.
func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

// InjectIDConflicts makes the next n relation inserts report ErrIDConflict.
func (s *Store) InjectIDConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idConflicts = n
}

type txKey struct{}

// Transactor serializes transactions and rolls back on error.
type Transactor struct {
	s *Store
}

// InTransaction implements world.Transactor. Nested calls join the outer
// transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	t.s.mu.Lock()
	universes, relations := maps.Clone(t.s.universes), maps.Clone(t.s.relations)
	t.s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.s.mu.Lock()
		t.s.universes, t.s.relations = universes, relations
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// UniverseRepository is an in-memory world.UniverseRepository.
type UniverseRepository struct {
	s *Store
}

// Create stores a copy of u.
func (r *UniverseRepository) Create(_ context.Context, u *world.Universe) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.universes[u.ID]; ok {
		return oops.Code("UNIVERSE_CREATE_FAILED").With("universe_id", u.ID.String()).Errorf("universe exists")
	}
	r.s.universes[u.ID] = u.Clone()
	return nil
}

// Get returns a copy of the universe, deleted or not.
func (r *UniverseRepository) Get(_ context.Context, id ulid.ULID) (*world.Universe, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.universes[id]
	if !ok {
		return nil, oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(world.ErrNotFound)
	}
	return u.Clone(), nil
}

// ListByOwner returns the owner's active universes by creation time.
func (r *UniverseRepository) ListByOwner(_ context.Context, ownerID ulid.ULID) ([]*world.Universe, error) {
	return r.list(func(u *world.Universe) bool { return u.OwnerID == ownerID }), nil
}

// List returns all active universes by creation time.
func (r *UniverseRepository) List(_ context.Context) ([]*world.Universe, error) {
	return r.list(func(*world.Universe) bool { return true }), nil
}

func (r *UniverseRepository) list(keep func(*world.Universe) bool) []*world.Universe {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*world.Universe
	for _, u := range r.s.universes {
		if !u.IsDeleted && keep(u) {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Compare(out[j].ID) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update replaces the universe when the version matches.
func (r *UniverseRepository) Update(_ context.Context, u *world.Universe) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.universes[u.ID]
	if !ok {
		return oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", u.ID.String()).Wrap(world.ErrNotFound)
	}
	if stored.Version != u.Version {
		return oops.Code("UNIVERSE_VERSION_CONFLICT").
			With("universe_id", u.ID.String()).
			With("expected_version", u.Version).
			Wrap(world.ErrConflict)
	}
	if stored.UpdatedAt.After(u.UpdatedAt) {
		u.UpdatedAt = stored.UpdatedAt
	}
	u.Version++
	r.s.universes[u.ID] = u.Clone()
	return nil
}

// Touch advances UpdatedAt of an active universe.
func (r *UniverseRepository) Touch(_ context.Context, id ulid.ULID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.universes[id]
	if !ok || stored.IsDeleted {
		return oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(world.ErrNotFound)
	}
	if at.After(stored.UpdatedAt) {
		c := stored.Clone()
		c.UpdatedAt = at
		r.s.universes[id] = c
	}
	return nil
}

// Delete soft-deletes an active universe.
func (r *UniverseRepository) Delete(_ context.Context, id ulid.ULID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.universes[id]
	if !ok || stored.IsDeleted {
		return oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(world.ErrNotFound)
	}
	c := stored.Clone()
	c.IsDeleted = true
	c.UpdatedAt = at
	c.Version++
	r.s.universes[id] = c
	return nil
}

// RelationRepository is an in-memory world.RelationRepository.
type RelationRepository struct {
	s *Store
}

// Create assigns max+1 and stores the relation.
func (r *RelationRepository) Create(_ context.Context, rel *world.EntityRelation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.idConflicts > 0 {
		r.s.idConflicts--
		return oops.Code("RELATION_ID_CONFLICT").Wrap(world.ErrIDConflict)
	}
	rel.ID = r.maxIDLocked() + 1
	r.s.relations[rel.ID] = *rel
	return nil
}

// MaxID returns the highest stored id.
func (r *RelationRepository) MaxID(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.maxIDLocked(), nil
}

func (r *RelationRepository) maxIDLocked() int64 {
	var maxID int64
	for id := range r.s.relations {
		maxID = max(maxID, id)
	}
	return maxID
}

// Get returns the relation, deleted or not.
func (r *RelationRepository) Get(_ context.Context, id int64) (*world.EntityRelation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rel, ok := r.s.relations[id]
	if !ok {
		return nil, oops.Code("RELATION_NOT_FOUND").With("relation_id", id).Wrap(world.ErrNotFound)
	}
	return &rel, nil
}

// ListByUniverse returns the active relations of a universe in id order.
func (r *RelationRepository) ListByUniverse(_ context.Context, universeID ulid.ULID) ([]*world.EntityRelation, error) {
	return r.list(func(rel *world.EntityRelation) bool { return rel.UniverseID == universeID }), nil
}

// ListByEntity returns the active relations touching entityID.
func (r *RelationRepository) ListByEntity(_ context.Context, universeID, entityID ulid.ULID) ([]*world.EntityRelation, error) {
	return r.list(func(rel *world.EntityRelation) bool {
		return rel.UniverseID == universeID && rel.Involves(entityID)
	}), nil
}

func (r *RelationRepository) list(keep func(*world.EntityRelation) bool) []*world.EntityRelation {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*world.EntityRelation
	for _, rel := range r.s.relations {
		if !rel.IsDeleted && keep(&rel) {
			out = append(out, &rel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update replaces an active relation.
func (r *RelationRepository) Update(_ context.Context, rel *world.EntityRelation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.relations[rel.ID]
	if !ok || stored.IsDeleted {
		return oops.Code("RELATION_NOT_FOUND").With("relation_id", rel.ID).Wrap(world.ErrNotFound)
	}
	stored.From, stored.To, stored.Type, stored.UpdatedAt = rel.From, rel.To, rel.Type, rel.UpdatedAt
	r.s.relations[rel.ID] = stored
	return nil
}

// Delete soft-deletes an active relation.
func (r *RelationRepository) Delete(_ context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.relations[id]
	if !ok || stored.IsDeleted {
		return oops.Code("RELATION_NOT_FOUND").With("relation_id", id).Wrap(world.ErrNotFound)
	}
	stored.IsDeleted = true
	stored.UpdatedAt = at
	r.s.relations[id] = stored
	return nil
}

// Compile-time interface checks.
var (
	_ world.UniverseRepository = (*UniverseRepository)(nil)
	_ world.RelationRepository = (*RelationRepository)(nil)
	_ world.Transactor         = (*Transactor)(nil)
)
