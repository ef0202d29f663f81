// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("loreweave/world")

// DefaultRelationMaxRetries bounds retries after a relation id collision.
const DefaultRelationMaxRetries = 10

// RegistryConfig holds dependencies for Registry.
type RegistryConfig struct {
	Universes UniverseRepository
	Relations RelationRepository

	// Transactor groups the insert with the universe touch. Optional.
	Transactor Transactor

	Logger *slog.Logger
	Now    func() time.Time

	// MaxRetries bounds retries after a relation id collision. Zero
	// selects DefaultRelationMaxRetries.
	MaxRetries    uint64
	RetryInterval time.Duration
}

// Registry creates, finds and retires relations between entities.
type Registry struct {
	universes     UniverseRepository
	relations     RelationRepository
	tx            Transactor
	logger        *slog.Logger
	now           func() time.Time
	maxRetries    uint64
	retryInterval time.Duration
}

type directTransactor struct{}

func (directTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// NewRegistry creates a new Registry with the given configuration.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	switch {
	case cfg.Universes == nil:
		return nil, oops.Code("WORLD_INVALID_CONFIG").Errorf("universe repository is required")
	case cfg.Relations == nil:
		return nil, oops.Code("WORLD_INVALID_CONFIG").Errorf("relation repository is required")
	}
	r := &Registry{
		universes:     cfg.Universes,
		relations:     cfg.Relations,
		tx:            cfg.Transactor,
		logger:        cfg.Logger,
		now:           cfg.Now,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
	}
	if r.tx == nil {
		r.tx = directTransactor{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	if r.maxRetries == 0 {
		r.maxRetries = DefaultRelationMaxRetries
	}
	if r.retryInterval <= 0 {
		r.retryInterval = DefaultRetryInterval
	}
	return r, nil
}

// NextID returns the id the next relation would receive if nothing else
// is created first: one more than the highest id ever assigned, or 1.
func (r *Registry) NextID(ctx context.Context) (int64, error) {
	maxID, err := r.relations.MaxID(ctx)
	if err != nil {
		return 0, oops.Code("RELATION_NEXT_ID_FAILED").Wrap(err)
	}
	return maxID + 1, nil
}

// Create records a relation between two entities of a universe owned by
// ownerID and touches the universe.
func (r *Registry) Create(ctx context.Context, ownerID, universeID ulid.ULID, from, to EntityRef, relType RelationType) (_ *EntityRelation, err error) {
	ctx, span := tracer.Start(ctx, "relation.create", trace.WithAttributes(
		attribute.String("universe.id", universeID.String()),
		attribute.String("relation.type", string(relType)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !relType.Valid() {
		return nil, invalid(&ValidationError{Field: "type", Message: fmt.Sprintf("unknown relation type %q", relType)})
	}
	u, err := loadUniverse(ctx, r.universes, ownerID, universeID, false)
	if err != nil {
		return nil, err
	}
	if err := resolveRefs(u, from, to); err != nil {
		return nil, err
	}

	now := r.now()
	rel := &EntityRelation{
		UniverseID: universeID,
		From:       from,
		To:         to,
		Type:       relType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Contenders back off by different amounts so they stop colliding.
	backoff := retry.WithMaxRetries(r.maxRetries,
		retry.WithJitterPercent(50, retry.NewConstant(r.retryInterval)))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.tx.InTransaction(ctx, func(ctx context.Context) error {
			if err := r.relations.Create(ctx, rel); err != nil {
				return err
			}
			return r.universes.Touch(ctx, universeID, now)
		})
		if errors.Is(err, ErrIDConflict) {
			RelationIDRetries.Inc()
			r.logger.DebugContext(ctx, "relation id taken, retrying", "universe_id", universeID.String())
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, oops.Code("RELATION_CREATE_FAILED").
			With("universe_id", universeID.String()).
			With("from", from.String()).
			With("to", to.String()).
			Wrap(err)
	}

	RelationsCreated.Inc()
	span.SetAttributes(attribute.Int64("relation.id", rel.ID))
	r.logger.InfoContext(ctx, "relation created",
		"relation_id", rel.ID,
		"universe_id", universeID.String(),
		"type", string(relType))
	return rel, nil
}

// Get retrieves an active relation.
func (r *Registry) Get(ctx context.Context, id int64) (*EntityRelation, error) {
	rel, err := r.GetIncludingDeleted(ctx, id)
	if err != nil {
		return nil, err
	}
	if rel.IsDeleted {
		return nil, relationNotFound(id)
	}
	return rel, nil
}

// GetIncludingDeleted retrieves a relation whether or not it was deleted.
// It backs administrative views.
func (r *Registry) GetIncludingDeleted(ctx context.Context, id int64) (*EntityRelation, error) {
	rel, err := r.relations.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, relationNotFound(id)
	}
	if err != nil {
		return nil, oops.Code("RELATION_GET_FAILED").With("relation_id", id).Wrap(err)
	}
	return rel, nil
}

// ListByUniverse returns the active relations of a universe.
func (r *Registry) ListByUniverse(ctx context.Context, universeID ulid.ULID) ([]*EntityRelation, error) {
	rels, err := r.relations.ListByUniverse(ctx, universeID)
	if err != nil {
		return nil, oops.Code("RELATION_LIST_FAILED").With("universe_id", universeID.String()).Wrap(err)
	}
	return rels, nil
}

// ListByEntity returns the active relations in which entityID takes part.
func (r *Registry) ListByEntity(ctx context.Context, universeID, entityID ulid.ULID) ([]*EntityRelation, error) {
	rels, err := r.relations.ListByEntity(ctx, universeID, entityID)
	if err != nil {
		return nil, oops.Code("RELATION_LIST_FAILED").
			With("universe_id", universeID.String()).
			With("entity_id", entityID.String()).
			Wrap(err)
	}
	return rels, nil
}

// Update replaces the type and participants of an active relation in a
// universe owned by ownerID. It returns false when the relation does not
// exist or was deleted.
func (r *Registry) Update(ctx context.Context, ownerID ulid.ULID, rel *EntityRelation) (bool, error) {
	if !rel.Type.Valid() {
		return false, invalid(&ValidationError{Field: "type", Message: fmt.Sprintf("unknown relation type %q", rel.Type)})
	}
	existing, err := r.relations.Get(ctx, rel.ID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("RELATION_UPDATE_FAILED").With("relation_id", rel.ID).Wrap(err)
	}
	if existing.IsDeleted {
		return false, nil
	}

	u, err := loadUniverse(ctx, r.universes, ownerID, existing.UniverseID, false)
	if err != nil {
		return false, err
	}
	if err := resolveRefs(u, rel.From, rel.To); err != nil {
		return false, err
	}

	now := r.now()
	next := *existing
	next.From = rel.From
	next.To = rel.To
	next.Type = rel.Type
	next.UpdatedAt = now

	err = r.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := r.relations.Update(ctx, &next); err != nil {
			return err
		}
		return r.universes.Touch(ctx, existing.UniverseID, now)
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("RELATION_UPDATE_FAILED").With("relation_id", rel.ID).Wrap(err)
	}
	*rel = next
	return true, nil
}

// Delete soft-deletes a relation in a universe owned by ownerID. It returns
// false when the relation does not exist or was already deleted.
func (r *Registry) Delete(ctx context.Context, ownerID ulid.ULID, id int64) (bool, error) {
	existing, err := r.relations.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("RELATION_DELETE_FAILED").With("relation_id", id).Wrap(err)
	}
	if existing.IsDeleted {
		return false, nil
	}
	if _, err := loadUniverse(ctx, r.universes, ownerID, existing.UniverseID, true); err != nil {
		return false, err
	}

	now := r.now()
	err = r.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := r.relations.Delete(ctx, id, now); err != nil {
			return err
		}
		return r.universes.Touch(ctx, existing.UniverseID, now)
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("RELATION_DELETE_FAILED").With("relation_id", id).Wrap(err)
	}
	r.logger.InfoContext(ctx, "relation deleted", "relation_id", id)
	return true, nil
}

// Describe renders the relation with the current names of its entities.
func (r *Registry) Describe(ctx context.Context, rel *EntityRelation) (string, error) {
	u, err := r.universes.Get(ctx, rel.UniverseID)
	if errors.Is(err, ErrNotFound) {
		return Describe(rel, nil, nil), nil
	}
	if err != nil {
		return "", oops.Code("RELATION_DESCRIBE_FAILED").With("relation_id", rel.ID).Wrap(err)
	}
	from, _ := ResolveEntity(u, rel.From.ID)
	to, _ := ResolveEntity(u, rel.To.ID)
	return Describe(rel, from, to), nil
}

// resolveRefs checks that both sides name active entities of the stated kind.
func resolveRefs(u *Universe, refs ...EntityRef) error {
	for _, ref := range refs {
		e, ok := ResolveEntity(u, ref.ID)
		if !ok || e.Kind != ref.Kind {
			return entityNotFound(u.ID, ref.ID)
		}
	}
	return nil
}

func relationNotFound(id int64) error {
	return oops.Code("RELATION_NOT_FOUND").With("relation_id", id).Wrap(ErrNotFound)
}
