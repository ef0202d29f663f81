// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/internal/auth"
)

// NewBootstrapCmd creates the bootstrap subcommand.
func NewBootstrapCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the superuser account if it does not exist",
		Long: `Create the superuser account with the configured initial password.
An existing superuser is left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, func(a *app) error {
				created, err := a.Auth.EnsureSuperUser(cmd.Context(), a.cfg.Auth.SuperUserPassword)
				if err != nil {
					return oops.With("operation", "ensure superuser").Wrap(err)
				}
				if created {
					cmd.Printf("Created superuser %q\n", auth.SuperUserName)
				} else {
					cmd.Printf("Superuser %q already exists\n", auth.SuperUserName)
				}
				return nil
			})
		},
	}
}

// withApp opens the pool, builds the services and runs fn.
func withApp(cmd *cobra.Command, deps *Deps, fn func(a *app) error) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}
	databaseURL, err := requireDatabaseURL(cfg)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	pool, err := deps.PoolFactory(cmd.Context(), databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	a, err := buildApp(pool, cfg, logger)
	if err != nil {
		return err
	}
	return fn(a)
}
