// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/internal/config"
	"github.com/loreweave/loreweave/internal/logging"
	"github.com/loreweave/loreweave/internal/xdg"
)

// addCommonFlags registers the configuration flags shared by every
// subcommand. Defaults live in config.Default; only flags the user sets
// override the config file.
func addCommonFlags(cmd *cobra.Command) {
	def := config.Default()
	flags := cmd.PersistentFlags()
	flags.String("database-url", "", "PostgreSQL connection URL (overrides $"+config.EnvDatabaseURL+")")
	flags.String("log-format", def.Log.Format, "log format (json or text)")
	flags.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	flags.String("environment", def.Server.Environment, "deployment environment (development shows error details)")
}

// loadConfig reads the config file named by --config, or the XDG default
// when the flag is absent, and the flags of cmd. validate also checks the
// settings the auth service needs.
func loadConfig(cmd *cobra.Command, validate bool) (*config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

// requireDatabaseURL returns the configured database URL or a
// CONFIG_INVALID error.
func requireDatabaseURL(cfg *config.Config) (string, error) {
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("field", "database.url").
			Errorf("database URL is required (--database-url or %s)", config.EnvDatabaseURL)
	}
	return cfg.Database.URL, nil
}

// setupLogging installs the configured logger as the slog default and
// returns it.
func setupLogging(cfg *config.Config) *slog.Logger {
	return logging.SetDefault(logging.Options{
		Service: "loreweave",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
	})
}
