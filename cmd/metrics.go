// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/exptrack-org/exptrack/internal/store"
	"github.com/spf13/cobra"
)

func newLogMetricCmd() *cobra.Command {
	var (
		name  string
		step  int64
		value float64
		batch string
	)
	c := &cobra.Command{
		Use:   "log-metric RUN_ID",
		Short: "Append metric observations to a run",
		Long: `Append metric observations to a run.

With --name/--step/--value a single point is appended. With --batch FILE a
JSON array of {"metric_name","step","value"} objects is appended atomically;
pass "-" to read the batch from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]

			var obs []store.Observation
			switch {
			case batch != "":
				if cmd.Flags().Changed("name") || cmd.Flags().Changed("step") || cmd.Flags().Changed("value") {
					return fmt.Errorf("--batch cannot be combined with --name/--step/--value")
				}
				loaded, err := readBatch(batch)
				if err != nil {
					return err
				}
				obs = loaded
			case name != "":
				obs = []store.Observation{{MetricName: name, Step: step, Value: value}}
			default:
				return fmt.Errorf("either --name or --batch is required")
			}

			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.LogMetricsBatch(cmd.Context(), runID, obs); err != nil {
				return err
			}
			if len(obs) == 1 {
				fmt.Printf("[OK] run=%s %s@%d=%v\n", runID, obs[0].MetricName, obs[0].Step, obs[0].Value)
			} else {
				fmt.Printf("[OK] run=%s appended %d points\n", runID, len(obs))
			}
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "Metric series name (e.g. loss)")
	c.Flags().Int64Var(&step, "step", 0, "Caller-supplied step (need not be unique or monotonic)")
	c.Flags().Float64Var(&value, "value", 0, "Metric value (must be finite)")
	c.Flags().StringVar(&batch, "batch", "", `JSON batch file, or "-" for stdin`)
	return c
}

func readBatch(path string) ([]store.Observation, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open batch: %w", err)
		}
		defer f.Close()
		r = f
	}
	var obs []store.Observation
	if err := json.NewDecoder(r).Decode(&obs); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("batch contains no observations")
	}
	return obs, nil
}
