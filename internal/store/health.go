// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StorageStats captures high-level information about the store file.
type StorageStats struct {
	Driver        string `json:"driver"`
	Path          string `json:"path"`
	BytesUsed     int64  `json:"bytes_used"`
	SchemaVersion int64  `json:"schema_version"`
	RunCount      int64  `json:"run_count"`
	PointCount    int64  `json:"point_count"`
}

// CollectStats inspects the backing SQLite database and returns aggregate
// statistics suitable for the status command.
func CollectStats(ctx context.Context, s *Store) (StorageStats, error) {
	if s == nil || s.sql == nil {
		return StorageStats{}, errors.New("store: not initialised")
	}
	stats := StorageStats{Driver: sqliteDriverName, Path: s.opts.Path}

	pageSize, err := querySingleInt(ctx, s.sql, "PRAGMA page_size;")
	if err != nil {
		return stats, classify("store: lookup page_size", err)
	}
	pageCount, err := querySingleInt(ctx, s.sql, "PRAGMA page_count;")
	if err != nil {
		return stats, classify("store: lookup page_count", err)
	}
	stats.BytesUsed = pageCount * pageSize

	userVersion, err := querySingleInt(ctx, s.sql, "PRAGMA user_version;")
	if err != nil {
		return stats, classify("store: lookup user_version", err)
	}
	stats.SchemaVersion = userVersion

	if err := s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&stats.RunCount); err != nil {
		return stats, classify("store: count runs", err)
	}
	if err := s.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM metric_points`).Scan(&stats.PointCount); err != nil {
		return stats, classify("store: count points", err)
	}
	return stats, nil
}

func querySingleInt(ctx context.Context, conn *sql.DB, stmt string) (int64, error) {
	var out sql.NullInt64
	if err := conn.QueryRowContext(ctx, stmt).Scan(&out); err != nil {
		return 0, fmt.Errorf("query %q: %w", stmt, err)
	}
	return out.Int64, nil
}
