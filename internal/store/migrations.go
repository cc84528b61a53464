// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// migrations holds the ordered schema history. Entry i upgrades a database at
// user_version i to version i+1. Never reorder or edit shipped entries; append
// a new migration instead.
var migrations = [...][]string{
	// v1: runs and metric points.
	{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running'
				CHECK (status IN ('running','completed','failed')),
			config TEXT NOT NULL DEFAULT '{}',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at, id);`,
		`CREATE TABLE IF NOT EXISTS metric_points (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			metric_name TEXT NOT NULL,
			step INTEGER NOT NULL,
			value REAL NOT NULL,
			wall_clock_ns INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_points_run_metric
			ON metric_points(run_id, metric_name, wall_clock_ns);`,
	},
	// v2: tags move out of the run row into a child table so duplicates
	// collapse and tag filtering can use an index.
	{
		`CREATE TABLE IF NOT EXISTS run_tags (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			UNIQUE (run_id, tag)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_tags_tag ON run_tags(tag);`,
	},
}

// schemaVersion is the version this build writes and understands.
const schemaVersion = int64(len(migrations))

// migrate brings the database up to schemaVersion. The version check and any
// DDL run inside a single immediate transaction, so exactly one opener
// performs each upgrade and concurrent openers wait on the file lock and then
// observe the already-migrated result.
func migrate(ctx context.Context, conn *sql.DB, logger *slog.Logger) error {
	c, err := conn.Conn(ctx)
	if err != nil {
		return classify("store: migrate", err)
	}
	defer c.Close()

	// BEGIN IMMEDIATE takes the write lock up front; database/sql BeginTx
	// would only issue a deferred BEGIN.
	if _, err := c.ExecContext(ctx, "BEGIN IMMEDIATE;"); err != nil {
		return classify("store: migrate begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = c.ExecContext(ctx, "ROLLBACK;")
		}
	}()

	var current int64
	if err := c.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&current); err != nil {
		return classify("store: read schema version", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("store: on-disk schema v%d, build understands v%d: %w",
			current, schemaVersion, ErrSchemaVersionMismatch)
	}

	for v := current; v < schemaVersion; v++ {
		for _, stmt := range migrations[v] {
			if _, err := c.ExecContext(ctx, stmt); err != nil {
				return classify(fmt.Sprintf("store: apply migration v%d", v+1), err)
			}
		}
		logger.Debug("store: applied migration", "version", v+1)
	}
	if current < schemaVersion {
		if _, err := c.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d;", schemaVersion)); err != nil {
			return classify("store: set schema version", err)
		}
	}

	if _, err := c.ExecContext(ctx, "COMMIT;"); err != nil {
		return classify("store: migrate commit", err)
	}
	committed = true
	return nil
}
