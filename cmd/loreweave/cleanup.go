// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewCleanupCmd creates the cleanup subcommand.
func NewCleanupCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge expired refresh, reset and verification tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, func(a *app) error {
				stats, err := a.Auth.PurgeExpired(cmd.Context())
				if err != nil {
					return oops.With("operation", "purge expired tokens").Wrap(err)
				}
				cmd.Printf("Purged %d records (refresh tokens: %d, reset tokens: %d, verifications: %d)\n",
					stats.Total(), stats.RefreshTokens, stats.ResetTokens, stats.Verifications)
				return nil
			})
		},
	}
}
