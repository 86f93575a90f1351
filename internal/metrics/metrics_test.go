package metrics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hadronlab/orbit/internal/store"
)

var asOf = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "orbit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedProject builds a project with four todos: two completed inside the
// velocity window, one open and overdue, one blocked with an upcoming due
// date.
func seedProject(t *testing.T, s *store.Store) store.Project {
	t.Helper()
	ctx := context.Background()
	p, err := s.CreateProject(ctx, store.Project{
		Name: "metrics", Path: "/tmp/metrics", Status: store.ProjectActive, Priority: 50,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	mk := func(title string, status store.TodoStatus, due time.Time) store.Todo {
		td, err := s.CreateTodo(ctx, store.Todo{
			ProjectID: p.ID, Title: title, Status: store.TodoOpen, DueDate: due,
		})
		if err != nil {
			t.Fatalf("CreateTodo(%s): %v", title, err)
		}
		if status == store.TodoBlocked {
			if err := s.SetTodoStatus(ctx, td.ID, store.TodoBlocked); err != nil {
				t.Fatalf("SetTodoStatus: %v", err)
			}
		}
		return td
	}

	done1 := mk("done early", store.TodoOpen, time.Time{})
	done2 := mk("done late", store.TodoOpen, time.Time{})
	mk("overdue work", store.TodoOpen, asOf.AddDate(0, 0, -3))
	mk("upcoming work", store.TodoBlocked, asOf.AddDate(0, 0, 5))

	if err := s.MarkTodoCompleted(ctx, done1.ID, asOf.AddDate(0, 0, -20)); err != nil {
		t.Fatalf("MarkTodoCompleted: %v", err)
	}
	if err := s.MarkTodoCompleted(ctx, done2.ID, asOf.AddDate(0, 0, -2)); err != nil {
		t.Fatalf("MarkTodoCompleted: %v", err)
	}
	if err := s.TouchProjectActivity(ctx, p.ID, asOf.AddDate(0, 0, -1)); err != nil {
		t.Fatalf("TouchProjectActivity: %v", err)
	}

	// One commit inside the trailing window, one long before it.
	for hash, at := range map[string]time.Time{
		"aaa1111": asOf.AddDate(0, 0, -5),
		"bbb2222": asOf.AddDate(0, 0, -40),
	} {
		if _, _, err := s.UpsertCommit(ctx, store.Commit{
			ProjectID: p.ID, Hash: hash, Author: "dev", CommittedAt: at,
		}); err != nil {
			t.Fatalf("UpsertCommit(%s): %v", hash, err)
		}
	}
	return p
}

func TestReport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProject(t, s)

	r, err := Report(ctx, &s.Queries, p.ID, asOf)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if r.CompletionRate != 0.5 {
		t.Errorf("CompletionRate = %v, want 0.5", r.CompletionRate)
	}
	wantVelocity := 2.0 / velocityWindowDays
	if r.Velocity != wantVelocity {
		t.Errorf("Velocity = %v, want %v", r.Velocity, wantVelocity)
	}
	if r.RecentCommits != 1 {
		t.Errorf("RecentCommits = %d, want 1 (the out-of-window commit must not count)", r.RecentCommits)
	}
	if len(r.VelocityTrend) != trendBuckets {
		t.Fatalf("VelocityTrend has %d buckets, want %d", len(r.VelocityTrend), trendBuckets)
	}
	// One completion fell in the most recent weekly bucket.
	if r.VelocityTrend[trendBuckets-1] != 1.0/trendBucketDays {
		t.Errorf("latest trend bucket = %v, want %v", r.VelocityTrend[trendBuckets-1], 1.0/trendBucketDays)
	}

	if len(r.Overdue) != 1 || r.Overdue[0].Title != "overdue work" {
		t.Errorf("Overdue = %v", r.Overdue)
	}
	if len(r.Upcoming) != 1 || r.Upcoming[0].Title != "upcoming work" {
		t.Errorf("Upcoming = %v", r.Upcoming)
	}
	if r.TodoCounts[store.TodoCompleted] != 2 || r.TodoCounts[store.TodoBlocked] != 1 {
		t.Errorf("TodoCounts = %v", r.TodoCounts)
	}
	if r.HealthScore <= 0 || r.HealthScore > 100 {
		t.Errorf("HealthScore = %v, want (0, 100]", r.HealthScore)
	}
	if r.HealthBand != HealthLabel(r.HealthScore) {
		t.Errorf("HealthBand = %q inconsistent with score %v", r.HealthBand, r.HealthScore)
	}
}

func TestHealthLabelBands(t *testing.T) {
	t.Parallel()
	cases := []struct {
		score float64
		want  string
	}{
		{100, "Excellent"},
		{85, "Excellent"},
		{84.9, "Good"},
		{70, "Good"},
		{69.9, "Fair"},
		{50, "Fair"},
		{49.9, "Poor"},
		{30, "Poor"},
		{29.9, "Critical"},
		{0, "Critical"},
	}
	for _, tc := range cases {
		if got := HealthLabel(tc.score); got != tc.want {
			t.Errorf("HealthLabel(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestPartitionByDueTiebreak(t *testing.T) {
	t.Parallel()
	due := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	todos := []store.Todo{
		{Title: "later", Status: store.TodoOpen, DueDate: due.AddDate(0, 0, 1), PriorityScore: 99},
		{Title: "same day low", Status: store.TodoOpen, DueDate: due, PriorityScore: 10},
		{Title: "same day high", Status: store.TodoOpen, DueDate: due, PriorityScore: 80},
		{Title: "completed ignored", Status: store.TodoCompleted, DueDate: due},
		{Title: "undated ignored", Status: store.TodoOpen},
	}
	overdue, upcoming := partitionByDue(todos, asOf)
	if len(upcoming) != 0 {
		t.Errorf("upcoming = %v, want empty", upcoming)
	}
	want := []string{"same day high", "same day low", "later"}
	if len(overdue) != len(want) {
		t.Fatalf("overdue = %v", overdue)
	}
	for i := range want {
		if overdue[i].Title != want[i] {
			t.Errorf("overdue[%d] = %q, want %q", i, overdue[i].Title, want[i])
		}
	}
}

func TestBurnDownMonotonic(t *testing.T) {
	t.Parallel()
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	completions := []time.Time{
		start.AddDate(0, 0, 10),
		start.AddDate(0, 0, 3), // out of order on purpose
		start.AddDate(0, 0, 7),
	}
	series := burnDown(start, 5, completions)
	if len(series) != 4 {
		t.Fatalf("series length = %d, want 4", len(series))
	}
	if series[0].Remaining != 5 || series[len(series)-1].Remaining != 2 {
		t.Errorf("series endpoints = %d..%d, want 5..2", series[0].Remaining, series[len(series)-1].Remaining)
	}
	for i := 1; i < len(series); i++ {
		if series[i].Remaining > series[i-1].Remaining {
			t.Errorf("series not non-increasing at %d: %v", i, series)
		}
		if series[i].Date.Before(series[i-1].Date) {
			t.Errorf("series dates not sorted at %d: %v", i, series)
		}
	}
}

func TestGoalOnTrack(t *testing.T) {
	t.Parallel()
	goal := store.Goal{ID: 1, Status: store.GoalActive, TargetDate: asOf.AddDate(0, 0, 30)}
	todos := []store.Todo{
		{GoalID: 1, Status: store.TodoCompleted, CompletedAt: asOf.AddDate(0, 0, -1)},
		{GoalID: 1, Status: store.TodoOpen},
		{GoalID: 2, Status: store.TodoOpen}, // other goal, ignored
	}

	t.Run("healthy velocity", func(t *testing.T) {
		t.Parallel()
		rep := goalReport(goal, todos, asOf, 0.5)
		if rep.TotalTodo != 2 || rep.CompletedTodo != 1 {
			t.Fatalf("counts = %d/%d", rep.CompletedTodo, rep.TotalTodo)
		}
		if !rep.OnTrack {
			t.Error("OnTrack = false with 1 todo left and 30 days")
		}
	})

	t.Run("zero velocity with remaining work", func(t *testing.T) {
		t.Parallel()
		rep := goalReport(goal, todos, asOf, 0)
		if rep.OnTrack {
			t.Error("OnTrack = true with zero velocity")
		}
	})

	t.Run("undated goal is never at risk", func(t *testing.T) {
		t.Parallel()
		undated := goal
		undated.TargetDate = time.Time{}
		rep := goalReport(undated, todos, asOf, 0)
		if !rep.OnTrack {
			t.Error("OnTrack = false for undated goal")
		}
	})
}

func TestSnapshotIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProject(t, s)

	r, err := Report(ctx, &s.Queries, p.ID, asOf)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := Snapshot(ctx, &s.Queries, r); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := Snapshot(ctx, &s.Queries, r); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	since := asOf.AddDate(0, 0, -1)
	for _, kind := range []string{
		store.MetricVelocity, store.MetricCompletionRate, store.MetricHealthScore,
		store.MetricTodosOpen, store.MetricTodosCompleted,
	} {
		history, err := s.MetricHistory(ctx, p.ID, kind, since)
		if err != nil {
			t.Fatalf("MetricHistory(%s): %v", kind, err)
		}
		if len(history) != 1 {
			t.Errorf("history(%s) has %d samples, want 1", kind, len(history))
		}
	}
}
