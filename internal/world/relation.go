// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
)

// RelationType classifies a relation.
type RelationType string

// Relation types.
const (
	RelationOwnedBy        RelationType = "OwnedBy"
	RelationMemberOf       RelationType = "MemberOf"
	RelationLocatedIn      RelationType = "LocatedIn"
	RelationAlliedWith     RelationType = "AlliedWith"
	RelationEnemyOf        RelationType = "EnemyOf"
	RelationParentOf       RelationType = "ParentOf"
	RelationCreatedBy      RelationType = "CreatedBy"
	RelationParticipatedIn RelationType = "ParticipatedIn"
	RelationRules          RelationType = "Rules"
	RelationWorships       RelationType = "Worships"
	RelationRelatedTo      RelationType = "RelatedTo"
)

// RelationTypes lists every relation type.
var RelationTypes = []RelationType{
	RelationOwnedBy,
	RelationMemberOf,
	RelationLocatedIn,
	RelationAlliedWith,
	RelationEnemyOf,
	RelationParentOf,
	RelationCreatedBy,
	RelationParticipatedIn,
	RelationRules,
	RelationWorships,
	RelationRelatedTo,
}

// Valid reports whether t is a known relation type.
func (t RelationType) Valid() bool {
	return slices.Contains(RelationTypes, t)
}

// UnknownName stands in for a relation side that does not resolve.
const UnknownName = "Unknown"

// EntityRef points at an entity of a given kind.
type EntityRef struct {
	Kind Kind
	ID   ulid.ULID
}

// String returns "kind:id".
func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// EntityRelation is a directed, typed edge between two entities of one
// universe. IDs are assigned by the registry and never reused.
type EntityRelation struct {
	ID         int64
	UniverseID ulid.ULID
	From       EntityRef
	To         EntityRef
	Type       RelationType
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsDeleted  bool
}

// Involves reports whether entityID is either side of the relation.
func (r *EntityRelation) Involves(entityID ulid.ULID) bool {
	return r.From.ID == entityID || r.To.ID == entityID
}

// Describe renders "{from} - {type} -> {to}". A nil side renders as
// UnknownName.
func Describe(rel *EntityRelation, from, to *Entity) string {
	return fmt.Sprintf("%s - %s -> %s", nameOrUnknown(from), rel.Type, nameOrUnknown(to))
}

func nameOrUnknown(e *Entity) string {
	if e == nil || e.Name == "" {
		return UnknownName
	}
	return e.Name
}
