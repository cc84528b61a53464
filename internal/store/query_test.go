package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRunSummary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	run, err := s.CreateRun(ctx, "exp", nil, []string{"x"}, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.LogMetricsBatch(ctx, run.ID, []Observation{
		{MetricName: "loss", Step: 0, Value: 1.0},
		{MetricName: "loss", Step: 1, Value: 0.5},
		{MetricName: "acc", Step: 0, Value: 0.9},
	}); err != nil {
		t.Fatalf("batch: %v", err)
	}

	summary, err := s.RunSummary(ctx, run.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Run.ID != run.ID {
		t.Fatalf("unexpected run %s", summary.Run.ID)
	}
	if summary.PointCounts["loss"] != 2 || summary.PointCounts["acc"] != 1 {
		t.Fatalf("unexpected counts %+v", summary.PointCounts)
	}

	if _, err := s.RunSummary(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMetricNamesSorted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	run, err := s.CreateRun(ctx, "exp", nil, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, name := range []string{"loss", "acc", "loss", "lr"} {
		if err := s.LogMetric(ctx, run.ID, name, 0, 1.0); err != nil {
			t.Fatalf("log %s: %v", name, err)
		}
	}
	names, err := s.MetricNames(ctx, run.ID)
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"acc", "loss", "lr"}) {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestGetSeriesEmptyForUnknownRunOrMetric(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	series, err := s.GetSeries(ctx, "missing", "loss")
	if err != nil {
		t.Fatalf("unknown run must yield empty series, got error %v", err)
	}
	if len(series) != 0 {
		t.Fatalf("expected empty series, got %d points", len(series))
	}
}

// Appending metrics to a finished run stays legal; no invariant forbids
// post-completion observations (e.g. a final evaluation pass).
func TestLogMetricAfterCompletionIsLegal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	run, err := s.CreateRun(ctx, "exp", nil, nil, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetStatus(ctx, run.ID, StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := s.LogMetric(ctx, run.ID, "final_acc", 0, 0.97); err != nil {
		t.Fatalf("log after completion: %v", err)
	}
	series, err := s.GetSeries(ctx, run.ID, "final_acc")
	if err != nil || len(series) != 1 {
		t.Fatalf("expected 1 point, got %d (err %v)", len(series), err)
	}
}
