package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/hadronlab/orbit/internal/store"
)

func TestParseID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"#12", 12, false},
		{"#T", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := parseID(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseID(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("parseID(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseDateFlag(t *testing.T) {
	t.Parallel()
	got, err := parseDateFlag("2025-06-01")
	if err != nil {
		t.Fatalf("parseDateFlag: %v", err)
	}
	if want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("parseDateFlag = %v, want %v", got, want)
	}
	if got, err := parseDateFlag(""); err != nil || !got.IsZero() {
		t.Errorf("parseDateFlag(\"\") = %v, %v, want zero time", got, err)
	}
	if _, err := parseDateFlag("06/01/2025"); err == nil {
		t.Error("parseDateFlag accepted a non-ISO date")
	}
}

// TestCommandsEndToEnd drives the command tree against a temp database
// the way an operator would: register a project, work some todos through
// blocking and completion, rescore, and write a report.
func TestCommandsEndToEnd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	viper.Reset()

	work := t.TempDir()
	db := filepath.Join(work, "orbit.db")
	proj := filepath.Join(work, "demo")
	if err := os.Mkdir(proj, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	run := func(args ...string) error {
		t.Helper()
		rootCmd.SetArgs(append(args, "--db", db))
		return rootCmd.Execute()
	}

	steps := [][]string{
		{"project", "add", "demo", proj},
		{"todo", "add", "demo", "ship the first cut"},
		{"todo", "add", "demo", "write release notes"},
		{"todo", "block", "2", "1"},
		{"todo", "show", "2"},
		{"project", "show", "demo"},
		{"prioritize", "demo"},
		{"todo", "complete", "1"},
		{"report"},
		{"report", "--history"},
	}
	for _, step := range steps {
		if err := run(step...); err != nil {
			t.Fatalf("orbit %s: %v", strings.Join(step, " "), err)
		}
	}

	ctx := context.Background()
	s, err := store.Open(ctx, db)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	done, err := s.TodoByID(ctx, 1)
	if err != nil {
		t.Fatalf("TodoByID: %v", err)
	}
	if done.Status != store.TodoCompleted || done.CompletedAt.IsZero() {
		t.Errorf("todo 1 = %v, want completed", done)
	}
	// Completing the blocker auto-opens its dependent.
	dep, err := s.TodoByID(ctx, 2)
	if err != nil {
		t.Fatalf("TodoByID: %v", err)
	}
	if dep.Status != store.TodoOpen {
		t.Errorf("todo 2 status = %s, want open after its blocker completed", dep.Status)
	}
	// The report run recorded the day's health sample.
	samples, err := s.MetricHistory(ctx, 1, store.MetricHealthScore, time.Now().UTC().AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("MetricHistory: %v", err)
	}
	if len(samples) != 1 {
		t.Errorf("health history has %d samples, want 1", len(samples))
	}
}
