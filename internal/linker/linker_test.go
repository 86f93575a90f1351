package linker

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/hadronlab/orbit/internal/config"
	"github.com/hadronlab/orbit/internal/gitlog"
	"github.com/hadronlab/orbit/internal/priority"
	"github.com/hadronlab/orbit/internal/store"
)

func TestParseMessage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		msg  string
		want []Ref
	}{
		{"bare hash ref", "work on #42", []Ref{{42, false}}},
		{"bare T ref", "work on #T42", []Ref{{42, false}}},
		{"completion verb", "fixes #42", []Ref{{42, true}}},
		{"verb with todo prefix", "closes todo: #7", []Ref{{7, true}}},
		{"verb case insensitive", "Fixes #42 and RESOLVES #T9", []Ref{{42, true}, {9, true}}},
		{
			"verb binds to its own ref only",
			"fixes #1 and touches #2",
			[]Ref{{1, true}, {2, false}},
		},
		{
			"duplicate refs merge completion",
			"see #5, then fixes #5",
			[]Ref{{5, true}},
		},
		{"no refs", "refactor the parser", nil},
		{"verb without ref", "fix the build", nil},
		{"all verbs", "fix #1 close #2 resolve #3 complete #4", []Ref{{1, true}, {2, true}, {3, true}, {4, true}}},
		{"plural verbs", "fixes #1 closes #2 resolves #3 completes #4", []Ref{{1, true}, {2, true}, {3, true}, {4, true}}},
		{"past tense is not a verb", "fixed #42", []Ref{{42, false}}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParseMessage(tc.msg)
			if len(got) != len(tc.want) {
				t.Fatalf("ParseMessage(%q) = %v, want %v", tc.msg, got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("ParseMessage(%q)[%d] = %v, want %v", tc.msg, i, got[i], tc.want[i])
				}
			}
		})
	}
}

func newTestLinker(t *testing.T) (*Linker, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "orbit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	calc, err := priority.New(config.DefaultWeights(), config.DefaultTuning())
	if err != nil {
		t.Fatalf("priority.New: %v", err)
	}
	return New(s, calc, nil), s
}

func TestIngest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, s := newTestLinker(t)

	p, err := s.CreateProject(ctx, store.Project{
		Name: "repo", Path: "/tmp/repo", Status: store.ProjectActive, Priority: 50, HasGit: true,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	var todos []store.Todo
	for _, title := range []string{"first", "second"} {
		td, err := s.CreateTodo(ctx, store.Todo{ProjectID: p.ID, Title: title, Status: store.TodoOpen})
		if err != nil {
			t.Fatalf("CreateTodo: %v", err)
		}
		todos = append(todos, td)
	}

	base := time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)
	records := []gitlog.Record{
		{Hash: "bbb", Message: "mention #" + itoa(todos[1].ID) + " and dangling #9999", CommittedAt: base.Add(time.Hour)},
		{Hash: "aaa", Message: "fixes #" + itoa(todos[0].ID), CommittedAt: base},
	}

	res, err := l.Ingest(ctx, p, records, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.NewCommits != 2 || res.Linked != 2 || res.Completed != 1 || res.SkippedRefs != 1 {
		t.Errorf("Ingest result = %+v", res)
	}

	t.Run("verb ref completed the todo", func(t *testing.T) {
		got, _ := s.TodoByID(ctx, todos[0].ID)
		if got.Status != store.TodoCompleted {
			t.Errorf("status = %v, want completed", got.Status)
		}
		// Completion stamp comes from the commit, not the wall clock.
		if !got.CompletedAt.Equal(base) {
			t.Errorf("completed_at = %v, want commit time %v", got.CompletedAt, base)
		}
	})

	t.Run("bare ref linked without completing", func(t *testing.T) {
		got, _ := s.TodoByID(ctx, todos[1].ID)
		if got.Status != store.TodoOpen {
			t.Errorf("status = %v, want open", got.Status)
		}
		hashes, _ := s.CommitsForTodo(ctx, todos[1].ID)
		if len(hashes) != 1 || hashes[0] != "bbb" {
			t.Errorf("commits for todo = %v", hashes)
		}
	})

	t.Run("project activity advanced to newest commit", func(t *testing.T) {
		got, _ := s.ProjectByID(ctx, p.ID)
		if !got.LastActivityAt.Equal(base.Add(time.Hour)) {
			t.Errorf("last_activity_at = %v, want %v", got.LastActivityAt, base.Add(time.Hour))
		}
	})

	t.Run("scores recalculated", func(t *testing.T) {
		got, _ := s.TodoByID(ctx, todos[1].ID)
		if got.PriorityScore <= 0 {
			t.Errorf("score = %v, want > 0", got.PriorityScore)
		}
	})

	t.Run("re-ingest is a no-op", func(t *testing.T) {
		again, err := l.Ingest(ctx, p, records, base.Add(3*time.Hour))
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if again.NewCommits != 0 || again.Linked != 0 || again.Completed != 0 {
			t.Errorf("re-ingest result = %+v, want all zero", again)
		}
		got, _ := s.CommitByHash(ctx, p.ID, "aaa")
		if len(got.LinkedTodoIDs) != 1 {
			t.Errorf("re-ingest duplicated links: %v", got.LinkedTodoIDs)
		}
	})
}

func TestIngestForeignRefSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, s := newTestLinker(t)

	p1, err := s.CreateProject(ctx, store.Project{
		Name: "one", Path: "/tmp/one", Status: store.ProjectActive, HasGit: true,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	p2, err := s.CreateProject(ctx, store.Project{
		Name: "two", Path: "/tmp/two", Status: store.ProjectActive, HasGit: true,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	foreign, err := s.CreateTodo(ctx, store.Todo{ProjectID: p2.ID, Title: "elsewhere", Status: store.TodoOpen})
	if err != nil {
		t.Fatalf("CreateTodo: %v", err)
	}

	res, err := l.Ingest(ctx, p1, []gitlog.Record{
		{Hash: "ccc", Message: "fixes #" + itoa(foreign.ID), CommittedAt: time.Now().UTC()},
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.SkippedRefs != 1 || res.Linked != 0 || res.Completed != 0 {
		t.Errorf("result = %+v, want one skipped ref", res)
	}
	got, _ := s.TodoByID(ctx, foreign.ID)
	if got.Status != store.TodoOpen {
		t.Errorf("foreign todo mutated: %v", got.Status)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
