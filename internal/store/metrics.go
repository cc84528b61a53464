// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"
)

// Observation is one caller-supplied metric sample for batch appends.
type Observation struct {
	MetricName string  `json:"metric_name"`
	Step       int64   `json:"step"`
	Value      float64 `json:"value"`
}

// MetricPoint is one immutable, timestamped scalar observation belonging to a
// run and a named series. WallClock is assigned by the store at append time
// and is the durable write-order tiebreaker.
type MetricPoint struct {
	RunID      string    `json:"run_id"`
	MetricName string    `json:"metric_name"`
	Step       int64     `json:"step"`
	Value      float64   `json:"value"`
	WallClock  time.Time `json:"wall_clock_time"`
}

// LogMetric appends a single metric point. The value must be finite; the run
// must exist. Repeated or out-of-order steps are retained as distinct
// observations, never deduplicated.
func (s *Store) LogMetric(ctx context.Context, runID, metricName string, step int64, value float64) error {
	return s.LogMetricsBatch(ctx, runID, []Observation{{MetricName: metricName, Step: step, Value: value}})
}

// LogMetricsBatch appends all observations as one atomic unit: either every
// point becomes durably visible or none does, under any interleaving with
// concurrent readers and writers. Every value is validated before any write.
// An empty batch is a no-op and returns nil without checking that the run
// exists.
func (s *Store) LogMetricsBatch(ctx context.Context, runID string, obs []Observation) error {
	if len(obs) == 0 {
		return nil
	}
	for _, o := range obs {
		if o.MetricName == "" {
			return fmt.Errorf("store: log metric: metric name required")
		}
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return fmt.Errorf("store: log metric %q step %d: %w: %v",
				o.MetricName, o.Step, ErrInvalidMetricValue, o.Value)
		}
	}

	err := s.withWriteRetry(ctx, "store: log metrics", func() error {
		// Wall clock is assigned inside the retried unit so a retried batch
		// still reflects its actual append time.
		now := s.nowFn().UnixNano()
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("check run: %w", err)
			}
			stmt, err := tx.PrepareContext(ctx, `
INSERT INTO metric_points (run_id, metric_name, step, value, wall_clock_ns)
VALUES (?, ?, ?, ?, ?)
`)
			if err != nil {
				return fmt.Errorf("prepare insert: %w", err)
			}
			defer stmt.Close()
			for _, o := range obs {
				if _, err := stmt.ExecContext(ctx, runID, o.MetricName, o.Step, o.Value, now); err != nil {
					return fmt.Errorf("insert point %q step %d: %w", o.MetricName, o.Step, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.logger.Debug("store: appended metrics", "run_id", runID, "points", len(obs))
	return nil
}
