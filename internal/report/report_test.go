package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hadronlab/orbit/internal/metrics"
	"github.com/hadronlab/orbit/internal/store"
)

func sampleReports(asOf time.Time) []*metrics.ProjectReport {
	return []*metrics.ProjectReport{
		{
			Project:        store.Project{ID: 1, Name: "alpha"},
			AsOf:           asOf,
			CompletionRate: 0.5,
			Velocity:       0.2,
			VelocityTrend:  []float64{0, 0.1, 0.1, 0.2},
			HealthScore:    72,
			HealthBand:     "Good",
			TodoCounts: map[store.TodoStatus]int{
				store.TodoOpen:      3,
				store.TodoBlocked:   1,
				store.TodoCompleted: 4,
			},
		},
	}
}

func TestSaveAndHistoryRotation(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "report.toml")
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	// First save: no history yet.
	if err := Save(path, sampleReports(base), base); err != nil {
		t.Fatalf("Save: %v", err)
	}
	history, err := History(path)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history after first save = %d entries, want 0", len(history))
	}

	// Each subsequent save rotates the previous current into history.
	for i := 1; i <= 14; i++ {
		at := base.AddDate(0, 0, i)
		if err := Save(path, sampleReports(at), at); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}
	history, err = History(path)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != maxHistoryEntries {
		t.Fatalf("history = %d entries, want capped at %d", len(history), maxHistoryEntries)
	}
	// Oldest entries were dropped; the newest summary is yesterday's.
	last := history[len(history)-1]
	if !last.GeneratedAt.Equal(base.AddDate(0, 0, 13)) {
		t.Errorf("newest history entry = %v", last.GeneratedAt)
	}
	if last.Projects != 1 || last.MeanHealth != 72 {
		t.Errorf("summary = %+v", last)
	}
	if last.TodosOpen != 4 || last.TodosCompleted != 4 {
		t.Errorf("summary counts = open %d, completed %d", last.TodosOpen, last.TodosCompleted)
	}
}

func TestSaveAtomic(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "report.toml")
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	if err := Save(path, sampleReports(at), at); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestHistoryMissingFile(t *testing.T) {
	t.Parallel()
	history, err := History(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %v, want empty", history)
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	reports := sampleReports(at)
	reports[0].Overdue = []store.Todo{
		{ID: 9, Title: "late thing", DueDate: at.AddDate(0, 0, -2)},
	}
	reports[0].Goals = []metrics.GoalReport{
		{
			Goal:          store.Goal{Title: "launch", Status: store.GoalActive, TargetDate: at.AddDate(0, 0, 20)},
			CompletedTodo: 1, TotalTodo: 4, ProgressPct: 25, OnTrack: true, DaysRemaining: 20,
		},
	}

	md := Markdown(reports)
	for _, want := range []string{
		"# Workspace Report",
		"| alpha |",
		"## alpha",
		"late thing",
		"launch: 1/4 (25%)",
		"on track, 20 days left",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown output missing %q", want)
		}
	}
}
