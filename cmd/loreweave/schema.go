// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/internal/world"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for universe documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := world.GenerateSchema()
			if err != nil {
				return err
			}
			if out == "" {
				_, err := cmd.OutOrStdout().Write(append(data, '\n'))
				return oops.With("operation", "write schema").Wrap(err)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
				return oops.With("operation", "create output directory").With("path", out).Wrap(err)
			}
			if err := os.WriteFile(out, append(data, '\n'), 0o600); err != nil {
				return oops.With("operation", "write schema").With("path", out).Wrap(err)
			}
			cmd.Printf("Wrote schema to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the schema to this file instead of stdout")

	return cmd
}
