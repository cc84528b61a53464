// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"fmt"

	"github.com/exptrack-org/exptrack/internal/store"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database file and apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Printf("[OK] Initialized database: %s\n", s.Options().Path)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var jsonOut bool
	c := &cobra.Command{
		Use:   "status",
		Short: "Show store health and aggregate statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := store.CollectStats(cmd.Context(), s)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(stats)
			}
			fmt.Printf("path:           %s\n", stats.Path)
			fmt.Printf("driver:         %s\n", stats.Driver)
			fmt.Printf("schema_version: %d\n", stats.SchemaVersion)
			fmt.Printf("bytes_used:     %d\n", stats.BytesUsed)
			fmt.Printf("runs:           %d\n", stats.RunCount)
			fmt.Printf("metric_points:  %d\n", stats.PointCount)
			return nil
		},
	}
	c.Flags().BoolVar(&jsonOut, "json", false, "Output stats as JSON")
	return c
}
