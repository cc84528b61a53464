// SPDX-License-Identifier: AGPL-3.0-or-later
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/exptrack-org/exptrack/internal/configloader"
	"github.com/exptrack-org/exptrack/internal/paths"
	"github.com/exptrack-org/exptrack/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:           "exptrack",
	Short:         "Record experiment runs and their metrics in a single-file store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.PersistentFlags().String("db", "", "Path to the database file (default: platform data dir)")
	rootCmd.PersistentFlags().String("config", "", "Path to exptrack.yaml")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase verbosity")

	// Flags fall back to EXPTRACK_<FLAG> environment variables when unset.
	bindFlagEnv(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newInitCmd(),
		newCreateRunCmd(),
		newListRunsCmd(),
		newShowRunCmd(),
		newDeleteRunCmd(),
		newSetStatusCmd(),
		newAddTagsCmd(),
		newUpdateNotesCmd(),
		newLogMetricCmd(),
		newExportCSVCmd(),
		newPlotCmd(),
		newStatusCmd(),
		NewCompletionCmd(rootCmd),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[ERR] %s: %v\n", errorKind(err), err)
		os.Exit(1)
	}
}

func bindFlagEnv(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		env := "EXPTRACK_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if val, ok := os.LookupEnv(env); ok && val != "" {
			_ = f.Value.Set(val)
		}
	})
}

// errorKind maps store failures onto the short kinds printed before exit.
func errorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInvalidStatusTransition):
		return "invalid_status_transition"
	case errors.Is(err, store.ErrInvalidMetricValue):
		return "invalid_metric_value"
	case errors.Is(err, store.ErrSchemaVersionMismatch):
		return "schema_version_mismatch"
	case errors.Is(err, store.ErrStoreBusy):
		return "store_busy"
	case errors.Is(err, store.ErrStoreCorrupt):
		return "store_corrupt"
	default:
		return "error"
	}
}

// openStore resolves configuration precedence (flags > environment > config
// file > platform defaults) and opens the store.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := configloader.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = cfg.DB
	}
	if dbPath == "" {
		dbPath = paths.DefaultDBPath()
	}

	opts := store.Options{
		Path:   dbPath,
		Logger: newLogger(cmd),
	}
	if cfg.BusyTimeoutMS > 0 {
		opts.BusyTimeout = time.Duration(cfg.BusyTimeoutMS) * time.Millisecond
	}
	if cfg.WriteRetry.Attempts > 0 {
		opts.RetryAttempts = cfg.WriteRetry.Attempts
	}
	if cfg.WriteRetry.BaseDelayMS > 0 {
		opts.RetryBaseDelay = time.Duration(cfg.WriteRetry.BaseDelayMS) * time.Millisecond
	}
	if cfg.WriteRetry.MaxDelayMS > 0 {
		opts.RetryMaxDelay = time.Duration(cfg.WriteRetry.MaxDelayMS) * time.Millisecond
	}
	return store.Open(cmd.Context(), opts)
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
