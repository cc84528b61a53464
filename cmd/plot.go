// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"fmt"
	"os"

	"github.com/exptrack-org/exptrack/internal/plot"
	"github.com/spf13/cobra"
)

func newPlotCmd() *cobra.Command {
	var (
		metric string
		sma    int
		width  int
		height int
	)
	c := &cobra.Command{
		Use:   "plot RUN_ID",
		Short: "Plot a metric series as an ASCII chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			points, err := s.GetSeries(cmd.Context(), args[0], metric)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				return fmt.Errorf("no data for run %s metric %s", args[0], metric)
			}

			samples := make([]plot.Sample, 0, len(points))
			for _, p := range points {
				samples = append(samples, plot.Sample{Step: p.Step, Value: p.Value})
			}
			// Series arrives in wall-clock order; charts read in step order.
			samples = plot.SortBySteps(samples)
			if sma > 1 {
				samples = plot.MovingAverage(samples, sma)
			}

			var renderer plot.Renderer = plot.ASCII{Width: width, Height: height}
			title := fmt.Sprintf("run=%s metric=%s", args[0], metric)
			return renderer.Render(os.Stdout, title, samples)
		},
	}
	c.Flags().StringVar(&metric, "metric", "", "Metric series to plot")
	c.Flags().IntVar(&sma, "sma", 1, "Simple moving average window (1 disables smoothing)")
	c.Flags().IntVar(&width, "width", 0, "Plot width in characters")
	c.Flags().IntVar(&height, "height", 0, "Plot height in characters")
	_ = c.MarkFlagRequired("metric")
	return c
}
