// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/loreweave/loreweave/internal/world"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	var kinds []string
	var mode string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a universe document against the schema",
		Long: `Validate a YAML or JSON universe document against the entity
collection schema. Exits non-zero when the document is invalid.

With --timeline-mode relative the document must contain an anchor event.
Each --kind prints the number of active entities of that kind.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeline, err := world.ParseTimelineMode(mode)
			if err != nil {
				return oops.Code("INVALID_FLAG").With("flag", "timeline-mode").Wrap(err)
			}
			selected := make([]world.Kind, 0, len(kinds))
			for _, s := range kinds {
				k, err := world.ParseKind(s)
				if err != nil {
					return oops.Code("INVALID_FLAG").With("flag", "kind").Wrap(err)
				}
				selected = append(selected, k)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return oops.Code("FILE_READ_FAILED").With("path", args[0]).Wrap(err)
			}
			collections, err := world.DecodeDocument(data)
			if err != nil {
				return err
			}
			u := &world.Universe{TimelineMode: timeline, Collections: *collections}
			if timeline == world.TimelineRelative && u.Anchor() == nil {
				return oops.Code("ANCHOR_MISSING").
					With("path", args[0]).
					Errorf("relative timeline requires an anchor event")
			}

			cmd.Printf("%s: valid\n", args[0])
			for _, k := range selected {
				cmd.Printf("  %s: %d\n", k, len(u.Of(k)))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "report the number of active entities of this kind (repeatable)")
	cmd.Flags().StringVar(&mode, "timeline-mode", "", "timeline mode the document must satisfy (calendar or relative)")

	return cmd
}
