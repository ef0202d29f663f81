// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Operations is the counter of authentication flows by operation and
// outcome. Use RegisterMetrics to register it with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loreweave_auth_operations_total",
		Help: "Total number of authentication operations",
	},
	[]string{"operation", "outcome"},
)

// TokensRevoked counts refresh tokens revoked, by reason.
var TokensRevoked = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loreweave_auth_tokens_revoked_total",
		Help: "Total number of refresh tokens revoked",
	},
	[]string{"reason"},
)

// TokensPurged counts expired token records removed by PurgeExpired.
var TokensPurged = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loreweave_auth_tokens_purged_total",
		Help: "Total number of expired token records removed",
	},
	[]string{"kind"},
)

// RegisterMetrics registers auth metrics with reg. Panics if registration
// fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations, TokensRevoked, TokensPurged)
}

func recordOperation(operation string, res Result, err error) {
	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
	case !res.Success:
		outcome = OutcomeFailure
	}
	Operations.WithLabelValues(operation, outcome).Inc()
}

func recordRevoked(reason string, n int64) {
	if n > 0 {
		TokensRevoked.WithLabelValues(reason).Add(float64(n))
	}
}
