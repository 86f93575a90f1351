package graph

import (
	"errors"
	"testing"
)

func TestAddEdge(t *testing.T) {
	t.Parallel()

	t.Run("basic add", func(t *testing.T) {
		t.Parallel()
		g := New()
		if err := g.AddEdge(1, 2); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
		if !g.HasPath(1, 2) {
			t.Error("HasPath(1, 2) = false after AddEdge(1, 2)")
		}
	})

	t.Run("duplicate edge is a no-op", func(t *testing.T) {
		t.Parallel()
		g := New()
		if err := g.AddEdge(1, 2); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
		if err := g.AddEdge(1, 2); err != nil {
			t.Errorf("duplicate AddEdge: %v", err)
		}
	})

	t.Run("self edge rejected", func(t *testing.T) {
		t.Parallel()
		g := New()
		if err := g.AddEdge(1, 1); !errors.Is(err, ErrSelfEdge) {
			t.Errorf("AddEdge(1, 1) = %v, want ErrSelfEdge", err)
		}
	})

	t.Run("direct cycle rejected", func(t *testing.T) {
		t.Parallel()
		g := New()
		if err := g.AddEdge(1, 2); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
		if err := g.AddEdge(2, 1); !errors.Is(err, ErrCycle) {
			t.Errorf("AddEdge(2, 1) = %v, want ErrCycle", err)
		}
	})

	t.Run("transitive cycle rejected", func(t *testing.T) {
		t.Parallel()
		g := New()
		for _, e := range [][2]int64{{1, 2}, {2, 3}, {3, 4}} {
			if err := g.AddEdge(e[0], e[1]); err != nil {
				t.Fatalf("AddEdge(%d, %d): %v", e[0], e[1], err)
			}
		}
		if err := g.AddEdge(4, 1); !errors.Is(err, ErrCycle) {
			t.Errorf("AddEdge(4, 1) = %v, want ErrCycle", err)
		}
		// Rejection must leave the graph unchanged.
		if g.HasPath(4, 1) {
			t.Error("rejected edge was recorded")
		}
	})
}

func TestDependents(t *testing.T) {
	t.Parallel()
	g := New()
	// 2 and 3 depend on 1; 4 depends on 2 (transitively on 1).
	for _, e := range [][2]int64{{2, 1}, {3, 1}, {4, 2}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%d, %d): %v", e[0], e[1], err)
		}
	}
	got := g.Dependents(1)
	want := []int64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("Dependents(1) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Dependents(1) = %v, want %v", got, want)
			break
		}
	}
}

func TestBlockers(t *testing.T) {
	t.Parallel()
	g := New()
	for _, e := range [][2]int64{{1, 2}, {2, 3}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%d, %d): %v", e[0], e[1], err)
		}
	}
	got := g.Blockers(1)
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Blockers(1) = %v, want [2 3]", got)
	}
}
