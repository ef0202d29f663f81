// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Retry defaults for optimistic concurrency and relation id collisions.
const (
	DefaultMaxRetries    = 5
	DefaultRetryInterval = 10 * time.Millisecond
)

// AnchorName names the anchor event created for relative timelines.
const AnchorName = "Anchor"

// ServiceConfig holds dependencies for Service.
type ServiceConfig struct {
	Universes UniverseRepository
	Logger    *slog.Logger
	Now       func() time.Time

	// MaxRetries bounds retries after a version conflict.
	MaxRetries    uint64
	RetryInterval time.Duration
}

// Service manages universes and their entities. Every operation checks
// that the caller owns the universe.
type Service struct {
	universes     UniverseRepository
	logger        *slog.Logger
	now           func() time.Time
	maxRetries    uint64
	retryInterval time.Duration
}

// NewService creates a new Service with the given configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Universes == nil {
		return nil, oops.Code("WORLD_INVALID_CONFIG").Errorf("universe repository is required")
	}
	s := &Service{
		universes:     cfg.Universes,
		logger:        cfg.Logger,
		now:           cfg.Now,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.maxRetries == 0 {
		s.maxRetries = DefaultMaxRetries
	}
	if s.retryInterval <= 0 {
		s.retryInterval = DefaultRetryInterval
	}
	return s, nil
}

// CreateUniverse creates a universe owned by ownerID. An empty mode selects
// calendar dating; relative dating starts with an anchor event.
func (s *Service) CreateUniverse(ctx context.Context, ownerID ulid.ULID, name, description string, mode TimelineMode) (*Universe, error) {
	if mode == "" {
		mode = TimelineCalendar
	}
	if err := firstError(ValidateName(name), ValidateDescription(description), validateMode(mode)); err != nil {
		return nil, invalid(err)
	}

	now := s.now()
	u := &Universe{
		ID:           ulid.Make(),
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(name),
		Description:  description,
		TimelineMode: mode,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if mode == TimelineRelative {
		u.add(newAnchor(now))
	}
	if err := s.universes.Create(ctx, u); err != nil {
		return nil, oops.Code("WORLD_CREATE_FAILED").
			With("operation", "create universe").
			With("owner_id", ownerID.String()).
			Wrap(err)
	}

	Mutations.WithLabelValues("create_universe").Inc()
	s.logger.InfoContext(ctx, "universe created",
		"universe_id", u.ID.String(),
		"owner_id", ownerID.String(),
		"timeline_mode", string(mode))
	return u, nil
}

// GetUniverse retrieves an active universe owned by ownerID.
func (s *Service) GetUniverse(ctx context.Context, ownerID, id ulid.ULID) (*Universe, error) {
	return s.loadOwned(ctx, ownerID, id)
}

// ListUniverses returns the active universes owned by ownerID.
func (s *Service) ListUniverses(ctx context.Context, ownerID ulid.ULID) ([]*Universe, error) {
	universes, err := s.universes.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, oops.Code("WORLD_LIST_FAILED").With("owner_id", ownerID.String()).Wrap(err)
	}
	return universes, nil
}

// UpdateUniverse replaces the name and description of a universe.
func (s *Service) UpdateUniverse(ctx context.Context, ownerID, id ulid.ULID, name, description string) (*Universe, error) {
	if err := firstError(ValidateName(name), ValidateDescription(description)); err != nil {
		return nil, invalid(err)
	}
	return s.mutate(ctx, "update_universe", ownerID, id, func(u *Universe, _ time.Time) error {
		u.Name = strings.TrimSpace(name)
		u.Description = description
		return nil
	})
}

// SetTimelineMode switches the dating mode. Switching to relative dating
// creates the anchor event if there is none.
func (s *Service) SetTimelineMode(ctx context.Context, ownerID, id ulid.ULID, mode TimelineMode) (*Universe, error) {
	if err := validateMode(mode); err != nil {
		return nil, invalid(err)
	}
	return s.mutate(ctx, "set_timeline_mode", ownerID, id, func(u *Universe, now time.Time) error {
		u.TimelineMode = mode
		if mode == TimelineRelative && u.Anchor() == nil {
			u.add(newAnchor(now))
		}
		return nil
	})
}

// DeleteUniverse soft-deletes a universe.
func (s *Service) DeleteUniverse(ctx context.Context, ownerID, id ulid.ULID) error {
	if _, err := s.loadOwned(ctx, ownerID, id); err != nil {
		return err
	}
	err := s.universes.Delete(ctx, id, s.now())
	if errors.Is(err, ErrNotFound) {
		return universeNotFound(id)
	}
	if err != nil {
		return oops.Code("WORLD_DELETE_FAILED").With("universe_id", id.String()).Wrap(err)
	}
	Mutations.WithLabelValues("delete_universe").Inc()
	s.logger.InfoContext(ctx, "universe deleted", "universe_id", id.String())
	return nil
}

// CreateEntity adds an entity to a universe. A zero ID is generated. The
// anchor event cannot be created directly; it follows the timeline mode.
func (s *Service) CreateEntity(ctx context.Context, ownerID, universeID ulid.ULID, e *Entity) (*Entity, error) {
	if e == nil {
		return nil, invalid(&ValidationError{Field: "entity", Message: "is required"})
	}
	in := e.Clone()
	in.Name = strings.TrimSpace(in.Name)
	if in.ID.IsZero() {
		in.ID = ulid.Make()
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	if in.IsAnchor() {
		return nil, invalid(&ValidationError{Field: "timeline_event.is_anchor", Message: "is managed by the timeline mode"})
	}

	var created *Entity
	_, err := s.mutate(ctx, "create_entity", ownerID, universeID, func(u *Universe, now time.Time) error {
		if _, exists := u.find(in.ID); exists {
			return invalid(&ValidationError{Field: "id", Message: "already in use"})
		}
		if err := checkReferences(u, in); err != nil {
			return err
		}
		created = in.Clone()
		created.CreatedAt = now
		created.UpdatedAt = now
		created.IsDeleted = false
		u.add(created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetEntity retrieves an active entity of the given kind.
func (s *Service) GetEntity(ctx context.Context, ownerID, universeID ulid.ULID, kind Kind, id ulid.ULID) (*Entity, error) {
	e, err := s.ResolveEntityByID(ctx, ownerID, universeID, id)
	if err != nil {
		return nil, err
	}
	if e.Kind != kind {
		return nil, entityNotFound(universeID, id)
	}
	return e, nil
}

// ListEntities returns the active entities of one kind.
func (s *Service) ListEntities(ctx context.Context, ownerID, universeID ulid.ULID, kind Kind) ([]*Entity, error) {
	if !kind.Valid() {
		return nil, invalid(&ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", kind)})
	}
	u, err := s.loadOwned(ctx, ownerID, universeID)
	if err != nil {
		return nil, err
	}
	return u.Of(kind), nil
}

// UpdateEntity replaces the name, description and payload of an active
// entity. Kind and the anchor flag cannot change.
func (s *Service) UpdateEntity(ctx context.Context, ownerID, universeID ulid.ULID, e *Entity) (*Entity, error) {
	if e == nil {
		return nil, invalid(&ValidationError{Field: "entity", Message: "is required"})
	}
	in := e.Clone()
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	var updated *Entity
	_, err := s.mutate(ctx, "update_entity", ownerID, universeID, func(u *Universe, now time.Time) error {
		existing, ok := ResolveEntity(u, in.ID)
		if !ok {
			return entityNotFound(universeID, in.ID)
		}
		if existing.Kind != in.Kind {
			return invalid(&ValidationError{Field: "kind", Message: "cannot change"})
		}
		if existing.IsAnchor() != in.IsAnchor() {
			return invalid(&ValidationError{Field: "timeline_event.is_anchor", Message: "is managed by the timeline mode"})
		}
		if err := checkReferences(u, in); err != nil {
			return err
		}
		next := in.Clone()
		next.CreatedAt = existing.CreatedAt
		next.UpdatedAt = now
		next.IsDeleted = false
		*existing = *next
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEntity soft-deletes an entity. The anchor of a relative-dated
// universe is protected.
func (s *Service) DeleteEntity(ctx context.Context, ownerID, universeID, id ulid.ULID) error {
	_, err := s.mutate(ctx, "delete_entity", ownerID, universeID, func(u *Universe, now time.Time) error {
		existing, ok := ResolveEntity(u, id)
		if !ok {
			return entityNotFound(universeID, id)
		}
		if existing.IsAnchor() && u.TimelineMode == TimelineRelative {
			return oops.Code("WORLD_ANCHOR_PROTECTED").
				With("universe_id", universeID.String()).
				With("entity_id", id.String()).
				Wrap(ErrAnchorProtected)
		}
		existing.IsDeleted = true
		existing.UpdatedAt = now
		return nil
	})
	return err
}

// LocationChildren returns the active locations whose parent is locationID.
func (s *Service) LocationChildren(ctx context.Context, ownerID, universeID, locationID ulid.ULID) ([]*Entity, error) {
	u, err := s.loadOwned(ctx, ownerID, universeID)
	if err != nil {
		return nil, err
	}
	if loc, ok := ResolveEntity(u, locationID); !ok || loc.Kind != KindLocation {
		return nil, entityNotFound(universeID, locationID)
	}
	var children []*Entity
	for _, e := range u.Of(KindLocation) {
		if p := e.ParentID(); p != nil && *p == locationID {
			children = append(children, e)
		}
	}
	return children, nil
}

// ResolveEntityByID finds an active entity of any kind.
func (s *Service) ResolveEntityByID(ctx context.Context, ownerID, universeID, id ulid.ULID) (*Entity, error) {
	u, err := s.loadOwned(ctx, ownerID, universeID)
	if err != nil {
		return nil, err
	}
	e, ok := ResolveEntity(u, id)
	if !ok {
		return nil, entityNotFound(universeID, id)
	}
	return e, nil
}

// SearchEntities searches the active entities of a universe.
func (s *Service) SearchEntities(ctx context.Context, ownerID, universeID ulid.ULID, term string) ([]*Entity, error) {
	if len(term) > MaxSearchTermLength {
		return nil, invalid(&ValidationError{
			Field:   "term",
			Message: fmt.Sprintf("exceeds maximum length of %d", MaxSearchTermLength),
		})
	}
	u, err := s.loadOwned(ctx, ownerID, universeID)
	if err != nil {
		return nil, err
	}
	return SearchEntities(u, term), nil
}

// CountEntities counts the active entities of a universe.
func (s *Service) CountEntities(ctx context.Context, ownerID, universeID ulid.ULID) (int, error) {
	u, err := s.loadOwned(ctx, ownerID, universeID)
	if err != nil {
		return 0, err
	}
	return CountEntities(u), nil
}

// mutate loads an owned universe, applies fn and saves it, retrying from a
// fresh read when another writer saved first. fn must not keep state
// between attempts.
func (s *Service) mutate(ctx context.Context, operation string, ownerID, id ulid.ULID, fn func(u *Universe, now time.Time) error) (*Universe, error) {
	var saved *Universe
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewConstant(s.retryInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		u, err := s.loadOwned(ctx, ownerID, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := fn(u, now); err != nil {
			return err
		}
		u.UpdatedAt = now
		err = s.universes.Update(ctx, u)
		if errors.Is(err, ErrConflict) {
			VersionConflicts.Inc()
			s.logger.DebugContext(ctx, "universe version conflict, retrying",
				"universe_id", id.String(), "operation", operation)
			return retry.RetryableError(err)
		}
		if errors.Is(err, ErrNotFound) {
			return universeNotFound(id)
		}
		if err != nil {
			return oops.Code("WORLD_UPDATE_FAILED").
				With("operation", operation).
				With("universe_id", id.String()).
				Wrap(err)
		}
		saved = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	Mutations.WithLabelValues(operation).Inc()
	s.logger.DebugContext(ctx, "universe updated",
		"universe_id", id.String(), "operation", operation, "version", saved.Version)
	return saved, nil
}

// loadOwned returns an active universe or a not-found or permission error.
func (s *Service) loadOwned(ctx context.Context, ownerID, id ulid.ULID) (*Universe, error) {
	return loadUniverse(ctx, s.universes, ownerID, id, false)
}

// loadUniverse reads a universe and checks that ownerID owns it. Deleted
// universes are reported as not found unless includeDeleted is set.
func loadUniverse(ctx context.Context, repo UniverseRepository, ownerID, id ulid.ULID, includeDeleted bool) (*Universe, error) {
	u, err := repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, universeNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("WORLD_LOAD_FAILED").With("universe_id", id.String()).Wrap(err)
	}
	if u.IsDeleted && !includeDeleted {
		return nil, universeNotFound(id)
	}
	if u.OwnerID != ownerID {
		return nil, oops.Code("WORLD_PERMISSION_DENIED").
			With("universe_id", id.String()).
			With("subject_id", ownerID.String()).
			Wrap(ErrPermissionDenied)
	}
	return u, nil
}

// reference is a payload field pointing at another entity.
type reference struct {
	field string
	id    *ulid.ULID
	kind  Kind // empty accepts any kind
}

// checkReferences verifies that payload references resolve in u and that a
// location's parent chain stays acyclic.
func checkReferences(u *Universe, e *Entity) error {
	var refs []reference
	switch e.Kind {
	case KindArtifact:
		refs = append(refs, reference{"artifact.holder_id", e.Artifact.HolderID, ""})
	case KindFaction:
		refs = append(refs, reference{"faction.headquarters_id", e.Faction.HeadquartersID, KindLocation})
	case KindNotableFigure:
		refs = append(refs,
			reference{"notable_figure.species_id", e.NotableFigure.SpeciesID, KindSpecies},
			reference{"notable_figure.faction_id", e.NotableFigure.FactionID, KindFaction},
		)
	case KindLocation:
		refs = append(refs, reference{"location.parent_id", e.Location.ParentID, KindLocation})
	}

	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		target, ok := ResolveEntity(u, *ref.id)
		if !ok || (ref.kind != "" && target.Kind != ref.kind) {
			want := "entity"
			if ref.kind != "" {
				want = string(ref.kind)
			}
			return invalid(&ValidationError{Field: ref.field, Message: "must reference an existing " + want})
		}
	}

	if parent := e.ParentID(); parent != nil && createsCycle(u, e.ID, *parent) {
		return invalid(&ValidationError{Field: "location.parent_id", Message: "would create a cycle"})
	}
	return nil
}

// createsCycle walks up from parentID and reports whether it reaches id.
func createsCycle(u *Universe, id, parentID ulid.ULID) bool {
	seen := map[ulid.ULID]bool{id: true}
	cur := parentID
	for {
		if seen[cur] {
			return true
		}
		seen[cur] = true
		loc, ok := ResolveEntity(u, cur)
		if !ok || loc.ParentID() == nil {
			return false
		}
		cur = *loc.ParentID()
	}
}

func newAnchor(now time.Time) *Entity {
	return &Entity{
		ID:            ulid.Make(),
		Kind:          KindTimelineEvent,
		Name:          AnchorName,
		Description:   "Zero point of the relative timeline.",
		CreatedAt:     now,
		UpdatedAt:     now,
		TimelineEvent: &TimelineEventDetails{Type: EventOther, IsAnchor: true},
	}
}

func validateMode(mode TimelineMode) error {
	if !mode.Valid() {
		return &ValidationError{Field: "timeline_mode", Message: fmt.Sprintf("unknown mode %q", mode)}
	}
	return nil
}

func invalid(err error) error {
	return oops.Code("WORLD_VALIDATION_FAILED").Wrap(err)
}

func universeNotFound(id ulid.ULID) error {
	return oops.Code("UNIVERSE_NOT_FOUND").With("universe_id", id.String()).Wrap(ErrNotFound)
}

func entityNotFound(universeID, id ulid.ULID) error {
	return oops.Code("ENTITY_NOT_FOUND").
		With("universe_id", universeID.String()).
		With("entity_id", id.String()).
		Wrap(ErrNotFound)
}
