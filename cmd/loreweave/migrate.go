// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the PostgreSQL schema migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateDown(cmd, deps)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateVersion(cmd, deps)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version and clear the dirty flag without
running any migration. Use it to recover from a failed migration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateForce(cmd, deps, args[0])
		},
	})

	return cmd
}

// openMigrator resolves the database URL from config and opens a migrator.
func openMigrator(cmd *cobra.Command, deps *Deps) (Migrator, error) {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return nil, err
	}
	databaseURL, err := requireDatabaseURL(cfg)
	if err != nil {
		return nil, err
	}
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	return m, nil
}

// migrateUp applies pending migrations for serve's auto-migrate option.
func migrateUp(deps *Deps, databaseURL string) error {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	return nil
}

func runMigrateUp(cmd *cobra.Command, deps *Deps) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, deps *Deps) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, deps *Deps) error {
	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	v, dirty, err := m.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}

	latest := uint(0)
	if versions, err := store.MigrationVersions(); err == nil && len(versions) > 0 {
		latest = versions[len(versions)-1]
	}

	switch {
	case v == 0:
		cmd.Printf("Schema version: none (latest available: %d)\n", latest)
	case dirty:
		cmd.Printf("Schema version: %d (dirty, latest available: %d)\n", v, latest)
	default:
		cmd.Printf("Schema version: %d (latest available: %d)\n", v, latest)
	}
	return nil
}

func runMigrateForce(cmd *cobra.Command, deps *Deps, arg string) error {
	v, err := parseForceVersion(arg)
	if err != nil {
		return err
	}

	m, err := openMigrator(cmd, deps)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Force(v); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "force version").With("version", v).Wrap(err)
	}
	cmd.Printf("Schema version forced to %d\n", v)
	return nil
}

// parseForceVersion reads the leading integer of s.
func parseForceVersion(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, oops.Code("INVALID_VERSION").Errorf("version is required")
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}

func closeMigrator(m Migrator) {
	if err := m.Close(); err != nil {
		slog.Warn("failed to close migrator", "error", err)
	}
}
