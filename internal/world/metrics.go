// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package world

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mutations counts universe and entity changes by operation.
var Mutations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loreweave_world_mutations_total",
		Help: "Total number of universe and entity mutations",
	},
	[]string{"operation"},
)

// VersionConflicts counts universe updates retried after a concurrent write.
var VersionConflicts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "loreweave_world_version_conflicts_total",
	Help: "Total number of universe version conflicts",
})

// RelationsCreated counts relations created by the registry.
var RelationsCreated = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "loreweave_relations_created_total",
	Help: "Total number of relations created",
})

// RelationIDRetries counts relation inserts retried after an id collision.
var RelationIDRetries = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "loreweave_relation_id_retries_total",
	Help: "Total number of relation id collisions retried",
})

// RegisterMetrics registers world metrics with reg. Panics if registration
// fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Mutations, VersionConflicts, RelationsCreated, RelationIDRetries)
}
