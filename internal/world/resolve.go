// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
)

// accessor binds a kind to its collection. Cross-kind operations loop
// over accessors instead of switching on kind.
type accessor struct {
	kind  Kind
	slice func(c *Collections) *[]*Entity

	// text returns kind-specific searchable text beyond name and description.
	text func(e *Entity) string
}

var accessors = []accessor{
	{kind: KindArtifact, slice: func(c *Collections) *[]*Entity { return &c.Artifacts }},
	{kind: KindTimelineEvent, slice: func(c *Collections) *[]*Entity { return &c.TimelineEvents }},
	{kind: KindFaction, slice: func(c *Collections) *[]*Entity { return &c.Factions }},
	{kind: KindNotableFigure, slice: func(c *Collections) *[]*Entity { return &c.NotableFigures }},
	{kind: KindLocation, slice: func(c *Collections) *[]*Entity { return &c.Locations }},
	{
		kind:  KindFact,
		slice: func(c *Collections) *[]*Entity { return &c.Facts },
		text: func(e *Entity) string {
			if e.Fact == nil {
				return ""
			}
			return e.Fact.Value
		},
	},
	{kind: KindSpecies, slice: func(c *Collections) *[]*Entity { return &c.Species }},
}

func accessorFor(kind Kind) (accessor, bool) {
	return lo.Find(accessors, func(a accessor) bool { return a.kind == kind })
}

// Of returns the active entities of one kind.
func (c *Collections) Of(kind Kind) []*Entity {
	acc, ok := accessorFor(kind)
	if !ok {
		return nil
	}
	return lo.Filter(*acc.slice(c), func(e *Entity, _ int) bool { return !e.IsDeleted })
}

// add appends e to the collection of its kind.
func (c *Collections) add(e *Entity) {
	if acc, ok := accessorFor(e.Kind); ok {
		s := acc.slice(c)
		*s = append(*s, e)
	}
}

// find returns the entity with id in any collection, deleted or not.
func (c *Collections) find(id ulid.ULID) (*Entity, bool) {
	for _, acc := range accessors {
		if e, ok := lo.Find(*acc.slice(c), func(e *Entity) bool { return e.ID == id }); ok {
			return e, true
		}
	}
	return nil, false
}

// ResolveEntity returns the active entity with id. Collections are searched
// in Kinds order; ids are unique across kinds so at most one matches.
func ResolveEntity(u *Universe, id ulid.ULID) (*Entity, bool) {
	e, ok := u.find(id)
	if !ok || e.IsDeleted {
		return nil, false
	}
	return e, true
}

// SearchEntities returns the active entities whose name or description
// (or value, for facts) contains term, ignoring case. Results are grouped
// by kind in Kinds order. An empty term matches everything.
func SearchEntities(u *Universe, term string) []*Entity {
	needle := strings.ToLower(term)
	var out []*Entity
	for _, acc := range accessors {
		out = append(out, lo.Filter(*acc.slice(&u.Collections), func(e *Entity, _ int) bool {
			return !e.IsDeleted && matches(e, acc, needle)
		})...)
	}
	return out
}

func matches(e *Entity, acc accessor, needle string) bool {
	fields := []string{e.Name, e.Description}
	if acc.text != nil {
		fields = append(fields, acc.text(e))
	}
	return lo.SomeBy(fields, func(f string) bool {
		return strings.Contains(strings.ToLower(f), needle)
	})
}

// CountEntities returns the number of active entities across all kinds.
func CountEntities(u *Universe) int {
	return lo.SumBy(accessors, func(acc accessor) int {
		return lo.CountBy(*acc.slice(&u.Collections), func(e *Entity) bool { return !e.IsDeleted })
	})
}
