// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store implements the experiment run and metric store: a single
// SQLite file shared by concurrent processes, holding run records and
// append-only metric observations.
//
// Writes are serialized at the storage layer (one logical writer at a time)
// and retried with bounded backoff under contention; reads operate against a
// consistent WAL snapshot and never block on in-flight writes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"

	defaultBusyTimeout       = 5 * time.Second
	defaultJournalMode       = "WAL"
	defaultSynchronous       = "FULL"
	defaultWalAutoCheckpoint = 1000

	defaultRetryAttempts  = 6
	defaultRetryBaseDelay = 10 * time.Millisecond
	defaultRetryMaxDelay  = 500 * time.Millisecond
)

// Options controls how the store is opened.
type Options struct {
	// Path is the location of the database file. Parent directories are
	// created as needed. Required.
	Path string
	// BusyTimeout bounds how long a single statement waits on the file lock
	// before failing with a busy error. Zero uses the default (5s).
	BusyTimeout time.Duration
	// RetryAttempts caps internal retries of a contended write transaction
	// before ErrStoreBusy surfaces. Zero uses the default.
	RetryAttempts uint
	// RetryBaseDelay is the initial backoff delay between write retries.
	// Zero uses the default.
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the per-attempt backoff delay. Zero uses the default.
	RetryMaxDelay time.Duration
	// Logger receives debug/warn diagnostics. Nil discards them.
	Logger *slog.Logger
	// nowFn overrides wall-clock reads in tests.
	nowFn func() time.Time
}

// Store wraps the SQLite connection backing a single experiment database.
type Store struct {
	sql    *sql.DB
	opts   Options
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open initialises the store at opts.Path: creates the file and schema when
// absent, applies pending migrations when the on-disk version is older, and
// fails with ErrSchemaVersionMismatch when it is newer than this build.
// Safe to call concurrently from independent processes; migration runs inside
// an exclusive transaction and later openers observe the migrated result.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store: path required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, fmt.Errorf("store: ensure data dir: %w", err)
	}

	resolved := opts
	if resolved.BusyTimeout <= 0 {
		resolved.BusyTimeout = defaultBusyTimeout
	}
	if resolved.RetryAttempts == 0 {
		resolved.RetryAttempts = defaultRetryAttempts
	}
	if resolved.RetryBaseDelay <= 0 {
		resolved.RetryBaseDelay = defaultRetryBaseDelay
	}
	if resolved.RetryMaxDelay <= 0 {
		resolved.RetryMaxDelay = defaultRetryMaxDelay
	}
	logger := resolved.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)",
		filepath.ToSlash(resolved.Path), int(resolved.BusyTimeout/time.Millisecond))
	conn, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	if err := configureConnection(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, classify("store: configure", err)
	}

	if err := migrate(ctx, conn, logger); err != nil {
		_ = conn.Close()
		return nil, err
	}

	nowFn := resolved.nowFn
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	logger.Debug("store: opened", "path", resolved.Path, "schema_version", schemaVersion)
	return &Store{sql: conn, opts: resolved, logger: logger, nowFn: nowFn}, nil
}

// Close shuts down the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// SQL exposes the raw connection for internal packages that need direct access.
func (s *Store) SQL() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sql
}

// Options returns the resolved options used when opening the store.
func (s *Store) Options() Options {
	if s == nil {
		return Options{}
	}
	return s.opts
}

func configureConnection(ctx context.Context, conn *sql.DB) error {
	// A single pooled connection keeps pragma state and transaction scope
	// predictable; cross-process serialization is SQLite's file lock.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	statements := []string{
		fmt.Sprintf("PRAGMA journal_mode=%s;", defaultJournalMode),
		fmt.Sprintf("PRAGMA synchronous=%s;", defaultSynchronous),
		"PRAGMA foreign_keys=ON;",
		fmt.Sprintf("PRAGMA wal_autocheckpoint=%d;", defaultWalAutoCheckpoint),
	}
	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute pragma %q: %w", stmt, err)
		}
	}
	return nil
}
