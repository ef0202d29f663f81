// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/internal/world"
	"github.com/loreweave/loreweave/internal/world/worldtest"
	"github.com/loreweave/loreweave/pkg/errutil"
)

var owner = ulid.MustParse("01JHQ5Z8Y3N4M7K2P6R9T1V0WX")

func newUniverse(t *testing.T, f *worldtest.Fixture, mode world.TimelineMode) *world.Universe {
	t.Helper()
	u, err := f.Service.CreateUniverse(context.Background(), owner, "Aerth", "A world of two moons.", mode)
	require.NoError(t, err)
	return u
}

func newArtifact(name string) *world.Entity {
	return &world.Entity{Kind: world.KindArtifact, Name: name, Artifact: &world.ArtifactDetails{Type: world.ArtifactRelic}}
}

func newLocation(name string, parent *ulid.ULID) *world.Entity {
	return &world.Entity{
		Kind:     world.KindLocation,
		Name:     name,
		Location: &world.LocationDetails{Type: world.LocationRegion, ParentID: parent},
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := world.NewService(world.ServiceConfig{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "WORLD_INVALID_CONFIG")
}

func TestCreateUniverse(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()

	u := newUniverse(t, f, "")
	assert.Equal(t, world.TimelineCalendar, u.TimelineMode)
	assert.Equal(t, int64(1), u.Version)
	assert.Nil(t, u.Anchor())

	got, err := f.Service.GetUniverse(ctx, owner, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aerth", got.Name)

	_, err = f.Service.CreateUniverse(ctx, owner, "", "", world.TimelineCalendar)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "WORLD_VALIDATION_FAILED")

	_, err = f.Service.CreateUniverse(ctx, owner, "Bad", "", "lunar")
	require.Error(t, err)
	var ve *world.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, "timeline_mode", ve.Field)
}

func TestRelativeUniverseHasProtectedAnchor(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()

	u := newUniverse(t, f, world.TimelineRelative)
	anchor := u.Anchor()
	require.NotNil(t, anchor)
	assert.Equal(t, world.AnchorName, anchor.Name)

	err := f.Service.DeleteEntity(ctx, owner, u.ID, anchor.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, world.ErrAnchorProtected)

	_, err = f.Service.CreateEntity(ctx, owner, u.ID, &world.Entity{
		Kind: world.KindTimelineEvent, Name: "Second zero",
		TimelineEvent: &world.TimelineEventDetails{Type: world.EventOther, IsAnchor: true},
	})
	require.Error(t, err, "anchors cannot be created directly")

	// Switching back to calendar dating lifts the protection.
	_, err = f.Service.SetTimelineMode(ctx, owner, u.ID, world.TimelineCalendar)
	require.NoError(t, err)
	require.NoError(t, f.Service.DeleteEntity(ctx, owner, u.ID, anchor.ID))
}

func TestSetTimelineModeCreatesSingleAnchor(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()
	u := newUniverse(t, f, world.TimelineCalendar)

	_, err := f.Service.SetTimelineMode(ctx, owner, u.ID, world.TimelineRelative)
	require.NoError(t, err)
	_, err = f.Service.SetTimelineMode(ctx, owner, u.ID, world.TimelineRelative)
	require.NoError(t, err)

	events, err := f.Service.ListEntities(ctx, owner, u.ID, world.KindTimelineEvent)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsAnchor())
}

func TestUniverseOwnership(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()
	u := newUniverse(t, f, world.TimelineCalendar)
	stranger := ulid.Make()

	_, err := f.Service.GetUniverse(ctx, stranger, u.ID)
	assert.ErrorIs(t, err, world.ErrPermissionDenied)

	_, err = f.Service.CreateEntity(ctx, stranger, u.ID, newArtifact("Stolen Idol"))
	assert.ErrorIs(t, err, world.ErrPermissionDenied)

	err = f.Service.DeleteUniverse(ctx, stranger, u.ID)
	assert.ErrorIs(t, err, world.ErrPermissionDenied)

	list, err := f.Service.ListUniverses(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteUniverseIsSoft(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()
	u := newUniverse(t, f, world.TimelineCalendar)

	require.NoError(t, f.Service.DeleteUniverse(ctx, owner, u.ID))

	_, err := f.Service.GetUniverse(ctx, owner, u.ID)
	assert.ErrorIs(t, err, world.ErrNotFound)

	list, err := f.Service.ListUniverses(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)

	stored, err := f.Store.Universes().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsDeleted, "record stays retrievable by id")
}

func TestEntityLifecycle(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()
	u := newUniverse(t, f, world.TimelineCalendar)

	f.Clock.Advance(time.Minute)
	created, err := f.Service.CreateEntity(ctx, owner, u.ID, newArtifact("  Dawn Sword "))
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())
	assert.Equal(t, "Dawn Sword", created.Name)
	assert.Equal(t, f.Clock.Now(), created.CreatedAt)

	got, err := f.Service.GetEntity(ctx, owner, u.ID, world.KindArtifact, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = f.Service.GetEntity(ctx, owner, u.ID, world.KindLocation, created.ID)
	assert.ErrorIs(t, err, world.ErrNotFound, "kind must match")

	f.Clock.Advance(time.Minute)
	edit := got.Clone()
	edit.Name = "Dusk Sword"
	edit.Artifact.Powers = "Burns at sunset"
	updated, err := f.Service.UpdateEntity(ctx, owner, u.ID, edit)
	require.NoError(t, err)
	assert.Equal(t, "Dusk Sword", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, f.Clock.Now(), updated.UpdatedAt)

	reloaded, err := f.Service.GetUniverse(ctx, owner, u.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Clock.Now(), reloaded.UpdatedAt, "entity changes touch the universe")
	assert.Equal(t, int64(3), reloaded.Version)

	changeKind := edit.Clone()
	changeKind.Kind = world.KindFact
	changeKind.Artifact = nil
	changeKind.Fact = &world.FactDetails{Type: world.FactOther}
	_, err = f.Service.UpdateEntity(ctx, owner, u.ID, changeKind)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "WORLD_VALIDATION_FAILED")

	require.NoError(t, f.Service.DeleteEntity(ctx, owner, u.ID, created.ID))
	_, err = f.Service.ResolveEntityByID(ctx, owner, u.ID, created.ID)
	assert.ErrorIs(t, err, world.ErrNotFound)

	list, err := f.Service.ListEntities(ctx, owner, u.ID, world.KindArtifact)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.Service.DeleteEntity(ctx, owner, u.ID, created.ID)
	assert.ErrorIs(t, err, world.ErrNotFound, "second delete")

	stored, err := f.Store.Universes().Get(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, stored.Artifacts, 1)
	assert.True(t, stored.Artifacts[0].IsDeleted)
}

func TestCreateEntityChecksReferences(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()
	u := newUniverse(t, f, world.TimelineCalendar)

	elves, err := f.Service.CreateEntity(ctx, owner, u.ID, &world.Entity{
		Kind: world.KindSpecies, Name: "Elves", Species: &world.SpeciesDetails{Type: world.SpeciesHumanoid},
	})
	require.NoError(t, err)

	figure := &world.Entity{
		Kind: world.KindNotableFigure, Name: "Queen Aster",
		NotableFigure: &world.NotableFigureDetails{Type: world.FigureRuler, SpeciesID: &elves.ID},
	}
	_, err = f.Service.CreateEntity(ctx, owner, u.ID, figure)
	require.NoError(t, err)

	wrongKind := &world.Entity{
		Kind: world.KindNotableFigure, Name: "Pretender",
		NotableFigure: &world.NotableFigureDetails{Type: world.FigureVillain, FactionID: &elves.ID},
	}
	_, err = f.Service.CreateEntity(ctx, owner, u.ID, wrongKind)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notable_figure.faction_id")
}

func TestLocationHierarchy(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()
	u := newUniverse(t, f, world.TimelineCalendar)

	continent, err := f.Service.CreateEntity(ctx, owner, u.ID, newLocation("Varn", nil))
	require.NoError(t, err)
	region, err := f.Service.CreateEntity(ctx, owner, u.ID, newLocation("Marches", &continent.ID))
	require.NoError(t, err)
	city, err := f.Service.CreateEntity(ctx, owner, u.ID, newLocation("Northwatch", &region.ID))
	require.NoError(t, err)
	_, err = f.Service.CreateEntity(ctx, owner, u.ID, newLocation("Lowmere", &continent.ID))
	require.NoError(t, err)

	children, err := f.Service.LocationChildren(ctx, owner, u.ID, continent.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Marches", "Lowmere"}, []string{children[0].Name, children[1].Name})

	// Parent under own descendant.
	loop := continent.Clone()
	loop.Location.ParentID = &city.ID
	_, err = f.Service.UpdateEntity(ctx, owner, u.ID, loop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	// Parent must be a location.
	sword, err := f.Service.CreateEntity(ctx, owner, u.ID, newArtifact("Dawn Sword"))
	require.NoError(t, err)
	_, err = f.Service.CreateEntity(ctx, owner, u.ID, newLocation("Nowhere", &sword.ID))
	require.Error(t, err)

	// Re-parenting updates the reference only.
	moved := city.Clone()
	moved.Location.ParentID = &continent.ID
	_, err = f.Service.UpdateEntity(ctx, owner, u.ID, moved)
	require.NoError(t, err)
	children, err = f.Service.LocationChildren(ctx, owner, u.ID, region.ID)
	require.NoError(t, err)
	assert.Empty(t, children)

	_, err = f.Service.LocationChildren(ctx, owner, u.ID, sword.ID)
	assert.ErrorIs(t, err, world.ErrNotFound)
}

func TestServiceSearchAndCount(t *testing.T) {
	f := worldtest.NewFixture(t)
	ctx := context.Background()
	u := newUniverse(t, f, world.TimelineRelative)

	_, err := f.Service.CreateEntity(ctx, owner, u.ID, newArtifact("Moonstone"))
	require.NoError(t, err)
	_, err = f.Service.CreateEntity(ctx, owner, u.ID, &world.Entity{
		Kind: world.KindFact, Name: "Tides",
		Fact: &world.FactDetails{Type: world.FactGeography, Value: "Ruled by the twin MOONS"},
	})
	require.NoError(t, err)

	found, err := f.Service.SearchEntities(ctx, owner, u.ID, "moon")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, world.KindArtifact, found[0].Kind)
	assert.Equal(t, world.KindFact, found[1].Kind)

	n, err := f.Service.CountEntities(ctx, owner, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "anchor, artifact and fact")
}

// conflictingUniverses reports a version conflict for the first n updates.
type conflictingUniverses struct {
	*worldtest.UniverseRepository
	n int
}

func (c *conflictingUniverses) Update(ctx context.Context, u *world.Universe) error {
	if c.n > 0 {
		c.n--
		return world.ErrConflict
	}
	return c.UniverseRepository.Update(ctx, u)
}

func TestMutationRetriesVersionConflicts(t *testing.T) {
	store := worldtest.NewStore()
	repo := &conflictingUniverses{UniverseRepository: store.Universes()}
	svc, err := world.NewService(world.ServiceConfig{
		Universes:     repo,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	})
	require.NoError(t, err)
	ctx := context.Background()

	u, err := svc.CreateUniverse(ctx, owner, "Aerth", "", world.TimelineCalendar)
	require.NoError(t, err)

	repo.n = 2
	updated, err := svc.UpdateUniverse(ctx, owner, u.ID, "Aerth Reborn", "")
	require.NoError(t, err)
	assert.Equal(t, "Aerth Reborn", updated.Name)

	repo.n = 3
	_, err = svc.UpdateUniverse(ctx, owner, u.ID, "Aerth Again", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, world.ErrConflict)
}
