// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package main is the entry point for the Loreweave server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/pkg/errutil"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	os.Exit(run(context.Background(), cmd))
}

// run executes root and returns the process exit code. A failure is
// logged in full; stderr shows details only in development.
func run(ctx context.Context, root *cobra.Command) int {
	executed, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	development := false
	if executed != nil {
		if cfg, cfgErr := loadConfig(executed, false); cfgErr == nil {
			development = cfg.Server.IsDevelopment()
		}
	}
	errutil.LogError(slog.Default(), "command failed", err)
	root.PrintErrln("Error:", errutil.PublicMessage(err, development))
	return 1
}
