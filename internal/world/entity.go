// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind tags the payload an Entity carries.
type Kind string

// Entity kinds.
const (
	KindArtifact      Kind = "artifact"
	KindTimelineEvent Kind = "timeline_event"
	KindFaction       Kind = "faction"
	KindNotableFigure Kind = "notable_figure"
	KindLocation      Kind = "location"
	KindFact          Kind = "fact"
	KindSpecies       Kind = "species"
)

// Kinds lists every kind in resolution order.
var Kinds = []Kind{
	KindArtifact,
	KindTimelineEvent,
	KindFaction,
	KindNotableFigure,
	KindLocation,
	KindFact,
	KindSpecies,
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// ParseKind converts s to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", s)}
	}
	return k, nil
}

// ArtifactType classifies artifacts.
type ArtifactType string

// Artifact types.
const (
	ArtifactWeapon   ArtifactType = "weapon"
	ArtifactArmor    ArtifactType = "armor"
	ArtifactRelic    ArtifactType = "relic"
	ArtifactTool     ArtifactType = "tool"
	ArtifactDocument ArtifactType = "document"
	ArtifactOther    ArtifactType = "other"
)

// EventType classifies timeline events.
type EventType string

// Event types.
const (
	EventBattle    EventType = "battle"
	EventFounding  EventType = "founding"
	EventDiscovery EventType = "discovery"
	EventDisaster  EventType = "disaster"
	EventPolitical EventType = "political"
	EventOther     EventType = "other"
)

// FactionType classifies factions.
type FactionType string

// Faction types.
const (
	FactionKingdom  FactionType = "kingdom"
	FactionGuild    FactionType = "guild"
	FactionReligion FactionType = "religion"
	FactionMilitary FactionType = "military"
	FactionTribe    FactionType = "tribe"
	FactionOther    FactionType = "other"
)

// FigureType classifies notable figures.
type FigureType string

// Figure types.
const (
	FigureRuler   FigureType = "ruler"
	FigureHero    FigureType = "hero"
	FigureVillain FigureType = "villain"
	FigureScholar FigureType = "scholar"
	FigureDeity   FigureType = "deity"
	FigureOther   FigureType = "other"
)

// LocationType classifies locations.
type LocationType string

// Location types.
const (
	LocationContinent LocationType = "continent"
	LocationRegion    LocationType = "region"
	LocationCity      LocationType = "city"
	LocationLandmark  LocationType = "landmark"
	LocationDungeon   LocationType = "dungeon"
	LocationOther     LocationType = "other"
)

// FactType classifies facts.
type FactType string

// Fact types.
const (
	FactHistory   FactType = "history"
	FactGeography FactType = "geography"
	FactCulture   FactType = "culture"
	FactMagic     FactType = "magic"
	FactOther     FactType = "other"
)

// SpeciesType classifies species.
type SpeciesType string

// Species types.
const (
	SpeciesHumanoid  SpeciesType = "humanoid"
	SpeciesBeast     SpeciesType = "beast"
	SpeciesSpirit    SpeciesType = "spirit"
	SpeciesConstruct SpeciesType = "construct"
	SpeciesOther     SpeciesType = "other"
)

// ArtifactDetails is the artifact payload.
type ArtifactDetails struct {
	Type     ArtifactType `json:"type" jsonschema:"enum=weapon,enum=armor,enum=relic,enum=tool,enum=document,enum=other"`
	Origin   string       `json:"origin,omitempty"`
	Powers   string       `json:"powers,omitempty"`
	HolderID *ulid.ULID   `json:"holder_id,omitempty"`
}

// TimelineEventDetails is the timeline event payload. CalendarDate is used
// in calendar mode, RelativeOffset counts from the anchor in relative mode.
type TimelineEventDetails struct {
	Type           EventType `json:"type" jsonschema:"enum=battle,enum=founding,enum=discovery,enum=disaster,enum=political,enum=other"`
	CalendarDate   string    `json:"calendar_date,omitempty"`
	RelativeOffset int64     `json:"relative_offset,omitempty"`
	IsAnchor       bool      `json:"is_anchor,omitempty"`
}

// FactionDetails is the faction payload.
type FactionDetails struct {
	Type           FactionType `json:"type" jsonschema:"enum=kingdom,enum=guild,enum=religion,enum=military,enum=tribe,enum=other"`
	Ideology       string      `json:"ideology,omitempty"`
	HeadquartersID *ulid.ULID  `json:"headquarters_id,omitempty"`
}

// NotableFigureDetails is the notable figure payload.
type NotableFigureDetails struct {
	Type      FigureType `json:"type" jsonschema:"enum=ruler,enum=hero,enum=villain,enum=scholar,enum=deity,enum=other"`
	Title     string     `json:"title,omitempty"`
	SpeciesID *ulid.ULID `json:"species_id,omitempty"`
	FactionID *ulid.ULID `json:"faction_id,omitempty"`
}

// LocationDetails is the location payload. ParentID points at the
// enclosing location; children are found by scanning, never stored.
type LocationDetails struct {
	Type     LocationType `json:"type" jsonschema:"enum=continent,enum=region,enum=city,enum=landmark,enum=dungeon,enum=other"`
	ParentID *ulid.ULID   `json:"parent_id,omitempty"`
	Climate  string       `json:"climate,omitempty"`
}

// FactDetails is the fact payload.
type FactDetails struct {
	Type  FactType `json:"type" jsonschema:"enum=history,enum=geography,enum=culture,enum=magic,enum=other"`
	Value string   `json:"value,omitempty"`
}

// SpeciesDetails is the species payload.
type SpeciesDetails struct {
	Type     SpeciesType `json:"type" jsonschema:"enum=humanoid,enum=beast,enum=spirit,enum=construct,enum=other"`
	Lifespan string      `json:"lifespan,omitempty"`
	Habitat  string      `json:"habitat,omitempty"`
}

// Entity is one record of a universe. Exactly one payload is set and it
// matches Kind.
type Entity struct {
	ID          ulid.ULID `json:"id"`
	Kind        Kind      `json:"kind" jsonschema:"enum=artifact,enum=timeline_event,enum=faction,enum=notable_figure,enum=location,enum=fact,enum=species"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsDeleted   bool      `json:"is_deleted,omitempty"`

	Artifact      *ArtifactDetails      `json:"artifact,omitempty"`
	TimelineEvent *TimelineEventDetails `json:"timeline_event,omitempty"`
	Faction       *FactionDetails       `json:"faction,omitempty"`
	NotableFigure *NotableFigureDetails `json:"notable_figure,omitempty"`
	Location      *LocationDetails      `json:"location,omitempty"`
	Fact          *FactDetails          `json:"fact,omitempty"`
	Species       *SpeciesDetails       `json:"species,omitempty"`
}

// IsAnchor reports whether e is the anchor event.
func (e *Entity) IsAnchor() bool {
	return e.Kind == KindTimelineEvent && e.TimelineEvent != nil && e.TimelineEvent.IsAnchor
}

// ParentID returns the parent of a location, or nil.
func (e *Entity) ParentID() *ulid.ULID {
	if e.Kind != KindLocation || e.Location == nil {
		return nil
	}
	return e.Location.ParentID
}

// Validate checks the common fields and that exactly one payload, the one
// matching Kind, is set.
func (e *Entity) Validate() error {
	if !e.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", e.Kind)}
	}
	if err := ValidateName(e.Name); err != nil {
		return err
	}
	if err := ValidateDescription(e.Description); err != nil {
		return err
	}

	var set []Kind
	for _, p := range e.payloads() {
		if p.present {
			set = append(set, p.kind)
		}
	}
	if len(set) != 1 || set[0] != e.Kind {
		return &ValidationError{
			Field:   "payload",
			Message: fmt.Sprintf("%s entity must carry exactly the %s payload", e.Kind, e.Kind),
		}
	}
	return e.validatePayload()
}

type payloadSlot struct {
	kind    Kind
	present bool
}

func (e *Entity) payloads() []payloadSlot {
	return []payloadSlot{
		{KindArtifact, e.Artifact != nil},
		{KindTimelineEvent, e.TimelineEvent != nil},
		{KindFaction, e.Faction != nil},
		{KindNotableFigure, e.NotableFigure != nil},
		{KindLocation, e.Location != nil},
		{KindFact, e.Fact != nil},
		{KindSpecies, e.Species != nil},
	}
}

func (e *Entity) validatePayload() error {
	switch e.Kind {
	case KindArtifact:
		p := e.Artifact
		return firstError(
			checkEnum("artifact.type", p.Type, ArtifactWeapon, ArtifactArmor, ArtifactRelic, ArtifactTool, ArtifactDocument, ArtifactOther),
			validateText("artifact.origin", p.Origin, MaxDetailLength),
			validateText("artifact.powers", p.Powers, MaxDetailLength),
		)
	case KindTimelineEvent:
		p := e.TimelineEvent
		return firstError(
			checkEnum("timeline_event.type", p.Type, EventBattle, EventFounding, EventDiscovery, EventDisaster, EventPolitical, EventOther),
			validateText("timeline_event.calendar_date", p.CalendarDate, MaxNameLength),
		)
	case KindFaction:
		p := e.Faction
		return firstError(
			checkEnum("faction.type", p.Type, FactionKingdom, FactionGuild, FactionReligion, FactionMilitary, FactionTribe, FactionOther),
			validateText("faction.ideology", p.Ideology, MaxDetailLength),
		)
	case KindNotableFigure:
		p := e.NotableFigure
		return firstError(
			checkEnum("notable_figure.type", p.Type, FigureRuler, FigureHero, FigureVillain, FigureScholar, FigureDeity, FigureOther),
			validateText("notable_figure.title", p.Title, MaxNameLength),
		)
	case KindLocation:
		p := e.Location
		if p.ParentID != nil && *p.ParentID == e.ID {
			return &ValidationError{Field: "location.parent_id", Message: "location cannot be its own parent"}
		}
		return firstError(
			checkEnum("location.type", p.Type, LocationContinent, LocationRegion, LocationCity, LocationLandmark, LocationDungeon, LocationOther),
			validateText("location.climate", p.Climate, MaxDetailLength),
		)
	case KindFact:
		p := e.Fact
		return firstError(
			checkEnum("fact.type", p.Type, FactHistory, FactGeography, FactCulture, FactMagic, FactOther),
			validateText("fact.value", p.Value, MaxDescriptionLength),
		)
	case KindSpecies:
		p := e.Species
		return firstError(
			checkEnum("species.type", p.Type, SpeciesHumanoid, SpeciesBeast, SpeciesSpirit, SpeciesConstruct, SpeciesOther),
			validateText("species.lifespan", p.Lifespan, MaxNameLength),
			validateText("species.habitat", p.Habitat, MaxDetailLength),
		)
	}
	return nil
}

func checkEnum[T ~string](field string, v T, allowed ...T) error {
	if slices.Contains(allowed, v) {
		return nil
	}
	return &ValidationError{Field: field, Message: fmt.Sprintf("unknown value %q", v)}
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Artifact = clonePtr(e.Artifact)
	if c.Artifact != nil {
		c.Artifact.HolderID = clonePtr(e.Artifact.HolderID)
	}
	c.TimelineEvent = clonePtr(e.TimelineEvent)
	c.Faction = clonePtr(e.Faction)
	if c.Faction != nil {
		c.Faction.HeadquartersID = clonePtr(e.Faction.HeadquartersID)
	}
	c.NotableFigure = clonePtr(e.NotableFigure)
	if c.NotableFigure != nil {
		c.NotableFigure.SpeciesID = clonePtr(e.NotableFigure.SpeciesID)
		c.NotableFigure.FactionID = clonePtr(e.NotableFigure.FactionID)
	}
	c.Location = clonePtr(e.Location)
	if c.Location != nil {
		c.Location.ParentID = clonePtr(e.Location.ParentID)
	}
	c.Fact = clonePtr(e.Fact)
	c.Species = clonePtr(e.Species)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
