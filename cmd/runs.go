// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/exptrack-org/exptrack/internal/store"
	"github.com/spf13/cobra"
)

func newCreateRunCmd() *cobra.Command {
	var (
		name    string
		config  string
		tags    []string
		notes   string
		jsonOut bool
	)
	c := &cobra.Command{
		Use:   "create-run",
		Short: "Create a new run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config != "" && !json.Valid([]byte(config)) {
				return fmt.Errorf("--config must be a valid JSON document")
			}
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			run, err := s.CreateRun(cmd.Context(), name, json.RawMessage(config), tags, notes)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(run)
			}
			fmt.Printf("[OK] Created run id=%s name=%s\n", run.ID, run.Name)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "Human-readable run label")
	c.Flags().StringVar(&config, "config", "", `Run configuration as a JSON document (e.g. '{"lr":0.1}')`)
	c.Flags().StringArrayVar(&tags, "tag", nil, "Tag to attach (repeatable)")
	c.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	c.Flags().BoolVar(&jsonOut, "json", false, "Output the created run as JSON")
	_ = c.MarkFlagRequired("name")
	return c
}

func newListRunsCmd() *cobra.Command {
	var (
		tag     string
		status  string
		jsonOut bool
	)
	c := &cobra.Command{
		Use:   "list-runs",
		Short: "List runs, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(cmd.Context(), store.ListFilter{
				Tag:    tag,
				Status: store.Status(status),
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("(no runs)")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tNAME\tSTATUS\tTAGS")
			for _, run := range runs {
				tags := strings.Join(run.Tags, ",")
				if tags == "" {
					tags = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"), run.Name, run.Status, tags)
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVar(&tag, "tag", "", "Only runs carrying this tag")
	c.Flags().StringVar(&status, "status", "", "Only runs with this status (running|completed|failed)")
	c.Flags().BoolVar(&jsonOut, "json", false, "Output runs as JSON")
	return c
}

func newShowRunCmd() *cobra.Command {
	var jsonOut bool
	c := &cobra.Command{
		Use:   "show-run RUN_ID",
		Short: "Show run details and per-metric point counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			summary, err := s.RunSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(summary)
			}
			run := summary.Run
			fmt.Printf("id:         %s\n", run.ID)
			fmt.Printf("name:       %s\n", run.Name)
			fmt.Printf("status:     %s\n", run.Status)
			fmt.Printf("created_at: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("tags:       %s\n", orDash(strings.Join(run.Tags, ",")))
			fmt.Printf("notes:      %s\n", orDash(run.Notes))
			fmt.Printf("config:     %s\n", string(run.Config))
			if len(summary.PointCounts) == 0 {
				fmt.Println("metrics:    (none)")
				return nil
			}
			names, err := s.MetricNames(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			fmt.Println("metrics:")
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, name := range names {
				fmt.Fprintf(tw, "  %s\t%d points\n", name, summary.PointCounts[name])
			}
			return tw.Flush()
		},
	}
	c.Flags().BoolVar(&jsonOut, "json", false, "Output the summary as JSON")
	return c
}

func newDeleteRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-run RUN_ID",
		Short: "Delete a run and all of its metric points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("[OK] Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set-status RUN_ID (completed|failed)",
		Short:     "Finish a run",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(store.StatusCompleted), string(store.StatusFailed)},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetStatus(cmd.Context(), args[0], store.Status(args[1])); err != nil {
				return err
			}
			fmt.Printf("[OK] Run %s is now %s\n", args[0], args[1])
			return nil
		},
	}
}

func newAddTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-tags RUN_ID TAG...",
		Short: "Attach tags to a run",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.AddTags(cmd.Context(), args[0], args[1:]); err != nil {
				return err
			}
			fmt.Printf("[OK] Tagged run %s\n", args[0])
			return nil
		},
	}
}

func newUpdateNotesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-notes RUN_ID TEXT",
		Short: "Replace a run's notes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.UpdateNotes(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("[OK] Updated notes for run %s\n", args[0])
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
