// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package world contains the universe model: universes, their seven kinds
// of entities and the typed relations between entities.
package world

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// TimelineMode selects how timeline events are dated.
type TimelineMode string

// Timeline modes.
const (
	TimelineCalendar TimelineMode = "calendar"
	TimelineRelative TimelineMode = "relative"
)

// Valid reports whether m is a known mode.
func (m TimelineMode) Valid() bool {
	return m == TimelineCalendar || m == TimelineRelative
}

// ParseTimelineMode converts s to a TimelineMode. Empty selects calendar.
func ParseTimelineMode(s string) (TimelineMode, error) {
	if s == "" {
		return TimelineCalendar, nil
	}
	m := TimelineMode(s)
	if !m.Valid() {
		return "", &ValidationError{Field: "timeline_mode", Message: fmt.Sprintf("unknown mode %q", s)}
	}
	return m, nil
}

// Collections holds the entities of a universe, one slice per kind. It
// is persisted as a single document.
type Collections struct {
	Artifacts      []*Entity `json:"artifacts,omitempty"`
	TimelineEvents []*Entity `json:"timeline_events,omitempty"`
	Factions       []*Entity `json:"factions,omitempty"`
	NotableFigures []*Entity `json:"notable_figures,omitempty"`
	Locations      []*Entity `json:"locations,omitempty"`
	Facts          []*Entity `json:"facts,omitempty"`
	Species        []*Entity `json:"species,omitempty"`
}

// Universe is a user-owned fictional setting.
type Universe struct {
	ID           ulid.ULID
	OwnerID      ulid.ULID
	Name         string
	Description  string
	TimelineMode TimelineMode
	Collections

	// Version increases with every stored change and guards updates.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
}

// Anchor returns the non-deleted anchor event, or nil.
func (u *Universe) Anchor() *Entity {
	for _, e := range u.TimelineEvents {
		if !e.IsDeleted && e.IsAnchor() {
			return e
		}
	}
	return nil
}

// Clone returns a deep copy of u.
func (u *Universe) Clone() *Universe {
	c := *u
	c.Collections = u.Collections.Clone()
	return &c
}

// Clone returns a deep copy of c.
func (c Collections) Clone() Collections {
	var out Collections
	for _, acc := range accessors {
		src := *acc.slice(&c)
		if src == nil {
			continue
		}
		dst := make([]*Entity, len(src))
		for i, e := range src {
			dst[i] = e.Clone()
		}
		*acc.slice(&out) = dst
	}
	return out
}
