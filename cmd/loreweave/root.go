// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Loreweave CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "loreweave",
		Short: "Loreweave - a worldbuilding backend",
		Long: `Loreweave stores fictional universes: their artifacts, events,
factions, figures, locations, facts and species, the relations between
them, and the accounts that own them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	addCommonFlags(cmd)

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewBootstrapCmd(deps))
	cmd.AddCommand(NewCleanupCmd(deps))
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewValidateCmd())

	return cmd
}
