// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Point is one series sample as returned by GetSeries.
type Point struct {
	Step      int64     `json:"step"`
	Value     float64   `json:"value"`
	WallClock time.Time `json:"wall_clock_time"`
}

// Summary is a run plus per-metric point counts.
type Summary struct {
	Run         Run              `json:"run"`
	PointCounts map[string]int64 `json:"point_counts"`
}

// GetSeries returns the series for one metric of one run, ordered by wall
// clock ascending (durable write order), with insert order as tiebreak for
// equal clocks. Steps are not guaranteed unique or monotonic; callers that
// need step order sort explicitly. An unknown run or metric yields an empty
// series, not an error.
func (s *Store) GetSeries(ctx context.Context, runID, metricName string) ([]Point, error) {
	rows, err := s.sql.QueryContext(ctx, `
SELECT step, value, wall_clock_ns
FROM metric_points
WHERE run_id = ? AND metric_name = ?
ORDER BY wall_clock_ns ASC, rowid ASC
`, runID, metricName)
	if err != nil {
		return nil, classify("store: get series", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var ns int64
		if err := rows.Scan(&p.Step, &p.Value, &ns); err != nil {
			return nil, classify("store: get series", fmt.Errorf("scan point: %w", err))
		}
		p.WallClock = time.Unix(0, ns).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("store: get series", err)
	}
	return points, nil
}

// MetricNames returns the distinct metric names recorded for the run, sorted.
func (s *Store) MetricNames(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.sql.QueryContext(ctx, `
SELECT DISTINCT metric_name FROM metric_points WHERE run_id = ? ORDER BY metric_name ASC
`, runID)
	if err != nil {
		return nil, classify("store: metric names", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, classify("store: metric names", fmt.Errorf("scan name: %w", err))
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("store: metric names", err)
	}
	return names, nil
}

// RunSummary returns the run together with a per-metric point count. Both are
// read from the same snapshot.
func (s *Store) RunSummary(ctx context.Context, runID string) (Summary, error) {
	summary := Summary{PointCounts: make(map[string]int64)}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		run, err := scanRun(ctx, tx, runID)
		if err != nil {
			return err
		}
		summary.Run = run

		rows, err := tx.QueryContext(ctx, `
SELECT metric_name, COUNT(*) FROM metric_points WHERE run_id = ? GROUP BY metric_name
`, runID)
		if err != nil {
			return fmt.Errorf("query point counts: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			var count int64
			if err := rows.Scan(&name, &count); err != nil {
				return fmt.Errorf("scan point count: %w", err)
			}
			summary.PointCounts[name] = count
		}
		return rows.Err()
	})
	if err != nil {
		return Summary{}, classify("store: run summary", err)
	}
	return summary, nil
}
