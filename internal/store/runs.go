// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout is a fixed-width UTC timestamp so stored text sorts
// lexicographically in write order. RFC3339Nano trims trailing zeros and
// loses that property.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Status is the lifecycle state of a run. Transitions are one-way:
// running → completed or running → failed.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) valid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is one tracked execution of an experiment.
type Run struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    Status          `json:"status"`
	Config    json.RawMessage `json:"config"`
	Tags      []string        `json:"tags,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListFilter narrows ListRuns results. Zero values match everything.
type ListFilter struct {
	Tag    string
	Status Status
}

// CreateRun inserts a new run with a fresh id and status running. Duplicate
// names are fine; duplicate tags collapse. A nil config is stored as {}.
func (s *Store) CreateRun(ctx context.Context, name string, config json.RawMessage, tags []string, notes string) (Run, error) {
	run := Run{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    StatusRunning,
		Config:    config,
		Tags:      normalizeTags(tags),
		Notes:     notes,
		CreatedAt: s.nowFn(),
	}
	if len(run.Config) == 0 {
		run.Config = json.RawMessage("{}")
	}

	err := s.withWriteRetry(ctx, "store: create run", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, name, status, config, notes, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, run.ID, run.Name, string(run.Status), string(run.Config), run.Notes, run.CreatedAt.Format(timeLayout)); err != nil {
				return fmt.Errorf("insert run: %w", err)
			}
			return insertTags(ctx, tx, run.ID, run.Tags)
		})
	})
	if err != nil {
		return Run{}, err
	}
	s.logger.Debug("store: created run", "run_id", run.ID, "name", run.Name)
	return run, nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		got, err := scanRun(ctx, tx, id)
		if err != nil {
			return err
		}
		run = got
		return nil
	})
	if err != nil {
		return Run{}, classify("store: get run", err)
	}
	return run, nil
}

// ListRuns returns runs matching the filter, ordered by created_at ascending
// with id as tiebreak for equal timestamps.
func (s *Store) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	if filter.Status != "" && !filter.Status.valid() {
		return nil, fmt.Errorf("store: list runs: unknown status %q", filter.Status)
	}

	query := `SELECT id, name, status, config, notes, created_at FROM runs`
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.Tag != "" {
		clauses = append(clauses, `EXISTS (SELECT 1 FROM run_tags WHERE run_tags.run_id = runs.id AND run_tags.tag = ?)`)
		args = append(args, filter.Tag)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	var runs []Run
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query runs: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			run, err := scanRunRow(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate runs: %w", err)
		}
		for i := range runs {
			tags, err := loadTags(ctx, tx, runs[i].ID)
			if err != nil {
				return err
			}
			runs[i].Tags = tags
		}
		return nil
	})
	if err != nil {
		return nil, classify("store: list runs", err)
	}
	return runs, nil
}

// SetStatus applies a status transition. Setting the current status again is
// a no-op; any transition out of a terminal state fails with
// ErrInvalidStatusTransition and leaves the stored state unchanged.
func (s *Store) SetStatus(ctx context.Context, id string, next Status) error {
	if !next.valid() {
		return fmt.Errorf("store: set status: unknown status %q", next)
	}
	return s.withWriteRetry(ctx, "store: set status", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var current Status
			err := tx.QueryRowContext(ctx, `SELECT status FROM runs WHERE id = ?`, id).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("read status: %w", err)
			}
			if current == next {
				return nil
			}
			if current.terminal() {
				return fmt.Errorf("%w: %s → %s", ErrInvalidStatusTransition, current, next)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, string(next), id); err != nil {
				return fmt.Errorf("update status: %w", err)
			}
			return nil
		})
	})
}

// UpdateNotes replaces the run's notes.
func (s *Store) UpdateNotes(ctx context.Context, id, notes string) error {
	return s.withWriteRetry(ctx, "store: update notes", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `UPDATE runs SET notes = ? WHERE id = ?`, notes, id)
			if err != nil {
				return fmt.Errorf("update notes: %w", err)
			}
			return requireRow(res)
		})
	})
}

// AddTags attaches tags to the run. Already-present tags are ignored.
func (s *Store) AddTags(ctx context.Context, id string, tags []string) error {
	tags = normalizeTags(tags)
	return s.withWriteRetry(ctx, "store: add tags", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, id).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("check run: %w", err)
			}
			return insertTags(ctx, tx, id, tags)
		})
	})
}

// DeleteRun removes the run and all of its metric points in one transaction.
// Partial deletion is never observable.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	err := s.withWriteRetry(ctx, "store: delete run", func() error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			// run_tags and metric_points cascade via foreign keys.
			res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
			if err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
			return requireRow(res)
		})
	})
	if err == nil {
		s.logger.Debug("store: deleted run", "run_id", id)
	}
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func insertTags(ctx context.Context, tx *sql.Tx, runID string, tags []string) error {
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO run_tags (run_id, tag) VALUES (?, ?)
ON CONFLICT (run_id, tag) DO NOTHING
`, runID, tag); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

func loadTags(ctx context.Context, tx *sql.Tx, runID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT tag FROM run_tags WHERE run_id = ? ORDER BY tag ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(ctx context.Context, tx *sql.Tx, id string) (Run, error) {
	row := tx.QueryRowContext(ctx, `
SELECT id, name, status, config, notes, created_at FROM runs WHERE id = ?
`, id)
	run, err := scanRunRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	tags, err := loadTags(ctx, tx, id)
	if err != nil {
		return Run{}, err
	}
	run.Tags = tags
	return run, nil
}

func scanRunRow(row rowScanner) (Run, error) {
	var run Run
	var status, config, createdAt string
	if err := row.Scan(&run.ID, &run.Name, &status, &config, &run.Notes, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	run.Config = json.RawMessage(config)
	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	run.CreatedAt = ts
	return run, nil
}
