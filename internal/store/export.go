// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// csvHeader is the fixed export header row.
var csvHeader = []string{"run_id", "metric_name", "step", "value", "wall_clock_time"}

// ExportCSV streams the run's metric points to w as CSV. With metricName
// empty all metrics are included, grouped by metric_name and ordered by wall
// clock within each group. Timestamps render as RFC 3339 with nanoseconds;
// steps and values use '.'-decimal, locale-independent formatting. The whole
// export reads from a single snapshot, so an export started during concurrent
// logging is internally consistent. ErrNotFound is returned for an unknown
// run; a known run with no points exports just the header.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, runID, metricName string) error {
	query := `
SELECT metric_name, step, value, wall_clock_ns
FROM metric_points
WHERE run_id = ?`
	args := []any{runID}
	if metricName != "" {
		query += ` AND metric_name = ?`
		args = append(args, metricName)
	}
	query += `
ORDER BY metric_name ASC, wall_clock_ns ASC, rowid ASC`

	// Existence check and row query share one read transaction (snapshot).
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return classify("store: export csv", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: export csv: %w", ErrNotFound)
	}
	if err != nil {
		return classify("store: export csv", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return classify("store: export csv", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("store: export csv: write header: %w", err)
	}
	for rows.Next() {
		var name string
		var step, ns int64
		var value float64
		if err := rows.Scan(&name, &step, &value, &ns); err != nil {
			return classify("store: export csv", fmt.Errorf("scan point: %w", err))
		}
		record := []string{
			runID,
			name,
			strconv.FormatInt(step, 10),
			strconv.FormatFloat(value, 'g', -1, 64),
			time.Unix(0, ns).UTC().Format(timeLayout),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("store: export csv: write row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return classify("store: export csv", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("store: export csv: flush: %w", err)
	}
	return nil
}
