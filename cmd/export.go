// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCSVCmd() *cobra.Command {
	var (
		metric string
		out    string
	)
	c := &cobra.Command{
		Use:   "export-csv RUN_ID",
		Short: "Export a run's metric points as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := s.ExportCSV(cmd.Context(), w, args[0], metric); err != nil {
				return err
			}
			if out != "" {
				fmt.Printf("[OK] Exported to %s\n", out)
			}
			return nil
		},
		Args: cobra.ExactArgs(1),
	}
	c.Flags().StringVar(&metric, "metric", "", "Export only this metric series (default: all)")
	c.Flags().StringVar(&out, "out", "", "Write to a file instead of stdout")
	return c
}
