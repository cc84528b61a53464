package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestCreateRunRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	config := json.RawMessage(`{"lr":0.1,"layers":[64,64]}`)
	run, err := s.CreateRun(ctx, "baseline", config, []string{"vision", "baseline", "vision", " "}, "first attempt")
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.ID == "" {
		t.Fatalf("expected assigned id")
	}
	if run.Status != StatusRunning {
		t.Fatalf("expected status running, got %s", run.Status)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if string(got.Config) != string(config) {
		t.Fatalf("config not stored verbatim: %s", got.Config)
	}
	if !reflect.DeepEqual(got.Tags, []string{"baseline", "vision"}) {
		t.Fatalf("expected deduplicated sorted tags, got %v", got.Tags)
	}
	if got.Notes != "first attempt" {
		t.Fatalf("unexpected notes %q", got.Notes)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, run.CreatedAt)
	}
}

func TestCreateRunAllowsDuplicateNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.CreateRun(ctx, "same-name", nil, nil, ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	runs, err := s.ListRuns(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	if _, err := s.GetRun(context.Background(), "no-such-run"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListRunsOrderAndFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.CreateRun(ctx, "first", nil, []string{"baseline"}, "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := s.CreateRun(ctx, "second", nil, []string{"ablation"}, "")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := s.SetStatus(ctx, second.ID, StatusCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	runs, err := s.ListRuns(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != first.ID || runs[1].ID != second.ID {
		t.Fatalf("expected created_at ascending order, got %+v", runs)
	}

	tagged, err := s.ListRuns(ctx, ListFilter{Tag: "baseline"})
	if err != nil {
		t.Fatalf("list by tag: %v", err)
	}
	if len(tagged) != 1 || tagged[0].ID != first.ID {
		t.Fatalf("expected only first run, got %+v", tagged)
	}

	completed, err := s.ListRuns(ctx, ListFilter{Status: StatusCompleted})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != second.ID {
		t.Fatalf("expected only second run, got %+v", completed)
	}

	if _, err := s.ListRuns(ctx, ListFilter{Status: "paused"}); err == nil {
		t.Fatalf("expected error for unknown status filter")
	}
}

func TestListRunsEqualTimestampsTieBreakByID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fixed := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	s, err := Open(ctx, Options{
		Path:  filepath.Join(t.TempDir(), "exptrack.db"),
		nowFn: func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for i := 0; i < 5; i++ {
		if _, err := s.CreateRun(ctx, "same-instant", nil, nil, ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	runs, err := s.ListRuns(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(runs); i++ {
		if runs[i-1].ID >= runs[i].ID {
			t.Fatalf("expected id tiebreak ascending, got %s before %s", runs[i-1].ID, runs[i].ID)
		}
	}
}

func TestSetStatusTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	run, err := s.CreateRun(ctx, "exp", nil, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Self-transition is a no-op, not an error.
	if err := s.SetStatus(ctx, run.ID, StatusRunning); err != nil {
		t.Fatalf("running → running: %v", err)
	}
	if err := s.SetStatus(ctx, run.ID, StatusCompleted); err != nil {
		t.Fatalf("running → completed: %v", err)
	}
	if err := s.SetStatus(ctx, run.ID, StatusCompleted); err != nil {
		t.Fatalf("completed → completed should be a no-op: %v", err)
	}

	err = s.SetStatus(ctx, run.ID, StatusRunning)
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
	err = s.SetStatus(ctx, run.ID, StatusFailed)
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition for completed → failed, got %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("state must remain completed, got %s", got.Status)
	}

	if err := s.SetStatus(ctx, "missing", StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetStatus(ctx, run.ID, Status("paused")); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestUpdateNotesAndAddTags(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	run, err := s.CreateRun(ctx, "exp", nil, []string{"a"}, "old")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.UpdateNotes(ctx, run.ID, "new notes"); err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if err := s.AddTags(ctx, run.ID, []string{"b", "a", "b"}); err != nil {
		t.Fatalf("add tags: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Notes != "new notes" {
		t.Fatalf("unexpected notes %q", got.Notes)
	}
	if !reflect.DeepEqual(got.Tags, []string{"a", "b"}) {
		t.Fatalf("expected collapsed tags [a b], got %v", got.Tags)
	}

	if err := s.UpdateNotes(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.AddTags(ctx, "missing", []string{"x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRunCascades(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	run, err := s.CreateRun(ctx, "doomed", nil, []string{"tmp"}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.LogMetric(ctx, run.ID, "loss", 0, 1.0); err != nil {
		t.Fatalf("log: %v", err)
	}

	if err := s.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	series, err := s.GetSeries(ctx, run.ID, "loss")
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if len(series) != 0 {
		t.Fatalf("expected empty series after cascade delete, got %d points", len(series))
	}

	if err := s.DeleteRun(ctx, run.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}
