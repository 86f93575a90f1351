// Package lifecycle implements the status state machines for todos and
// goals. Todo transitions (start, complete, block, unblock) run inside a
// single store transaction together with their side effects: activity
// touches, blocker-graph edits and the project-scoped priority
// recalculation that completion triggers. Goal transitions are
// operator-driven status updates; goal progress is computed on read and
// never auto-completes a goal.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hadronlab/orbit/internal/activity"
	"github.com/hadronlab/orbit/internal/graph"
	"github.com/hadronlab/orbit/internal/priority"
	"github.com/hadronlab/orbit/internal/store"
)

// ErrCompleted is returned when a transition is not allowed on a
// completed todo.
var ErrCompleted = errors.New("todo is completed")

// ErrCrossProject is returned when a blocker belongs to a different
// project than the todo it would block.
var ErrCrossProject = errors.New("blocker belongs to a different project")

// Engine applies state transitions against the store.
type Engine struct {
	store *store.Store
	calc  *priority.Calculator
	log   *activity.Log // nil disables audit events
}

// NewEngine builds a transition engine. log may be nil.
func NewEngine(s *store.Store, calc *priority.Calculator, log *activity.Log) *Engine {
	return &Engine{store: s, calc: calc, log: log}
}

// StartTodo moves an open or blocked todo to in_progress. Starting an
// already in-progress todo is a no-op; starting a completed todo is an
// error.
func (e *Engine) StartTodo(ctx context.Context, id int64, at time.Time) (store.Todo, error) {
	var out store.Todo
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := tx.TodoByID(ctx, id)
		if err != nil {
			return err
		}
		switch t.Status {
		case store.TodoCompleted:
			return fmt.Errorf("lifecycle: start todo %d: %w", id, ErrCompleted)
		case store.TodoInProgress:
			out = t
			return nil
		}
		if err := tx.MarkTodoStarted(ctx, id, at); err != nil {
			return err
		}
		if err := tx.TouchProjectActivity(ctx, t.ProjectID, at); err != nil {
			return err
		}
		out, err = tx.TodoByID(ctx, id)
		return err
	})
	if err != nil {
		return store.Todo{}, err
	}
	e.log.Record(activity.KindTodoStarted, out.ProjectID, id, nil)
	return out, nil
}

// CompleteTodo moves a todo from any non-completed state to completed.
// completed_at is set exactly once; completing an already-completed todo
// is a no-op. Completion removes the todo from every other todo's
// blocked_by set (auto-opening dependents left with no blockers), touches
// the project's last activity, and runs one project-scoped priority
// recalculation, all in the same transaction.
func (e *Engine) CompleteTodo(ctx context.Context, id int64, at time.Time) (store.Todo, error) {
	var out store.Todo
	completed := false
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := tx.TodoByID(ctx, id)
		if err != nil {
			return err
		}
		if t.Status == store.TodoCompleted {
			out = t
			return nil
		}
		if err := completeTodoTx(ctx, &tx.Queries, t, at); err != nil {
			return err
		}
		if _, err := e.calc.RecalculateIn(ctx, &tx.Queries, t.ProjectID, at); err != nil {
			return err
		}
		completed = true
		out, err = tx.TodoByID(ctx, id)
		return err
	})
	if err != nil {
		return store.Todo{}, err
	}
	if completed {
		e.log.Record(activity.KindTodoCompleted, out.ProjectID, id, nil)
	}
	return out, nil
}

// completeTodoTx performs the completion side effects shared by operator
// completion and commit-triggered auto-completion. The caller is
// responsible for the recalculation pass.
func completeTodoTx(ctx context.Context, q *store.Queries, t store.Todo, at time.Time) error {
	if err := q.MarkTodoCompleted(ctx, t.ID, at); err != nil {
		return err
	}

	// Drop this todo from every dependent's blocked_by; dependents left
	// with no blockers open up automatically.
	dependents, err := q.DependentsOf(ctx, t.ID)
	if err != nil {
		return err
	}
	for _, depID := range dependents {
		if err := q.RemoveTodoBlocker(ctx, depID, t.ID); err != nil {
			return err
		}
		remaining, err := q.TodoBlockers(ctx, depID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			continue
		}
		dep, err := q.TodoByID(ctx, depID)
		if err != nil {
			return err
		}
		if dep.Status == store.TodoBlocked {
			if err := q.SetTodoStatus(ctx, depID, store.TodoOpen); err != nil {
				return err
			}
		}
	}

	return q.TouchProjectActivity(ctx, t.ProjectID, at)
}

// CompleteInTx exposes the completion side effects for callers that manage
// their own transaction (commit ingestion). It is idempotent.
func CompleteInTx(ctx context.Context, q *store.Queries, id int64, at time.Time) (bool, error) {
	t, err := q.TodoByID(ctx, id)
	if err != nil {
		return false, err
	}
	if t.Status == store.TodoCompleted {
		return false, nil
	}
	if err := completeTodoTx(ctx, q, t, at); err != nil {
		return false, err
	}
	return true, nil
}

// BlockTodo adds blockerID to the todo's blocked_by set and moves it to
// blocked. It rejects missing ids, self-reference, cross-project blockers
// and edges that would close a cycle in the blocking graph; on rejection
// the store is unchanged.
func (e *Engine) BlockTodo(ctx context.Context, id, blockerID int64, at time.Time) (store.Todo, error) {
	var out store.Todo
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := tx.TodoByID(ctx, id)
		if err != nil {
			return err
		}
		if t.Status == store.TodoCompleted {
			return fmt.Errorf("lifecycle: block todo %d: %w", id, ErrCompleted)
		}
		blocker, err := tx.TodoByID(ctx, blockerID)
		if err != nil {
			return err
		}
		if blocker.ProjectID != t.ProjectID {
			return fmt.Errorf("lifecycle: block todo %d by %d: %w", id, blockerID, ErrCrossProject)
		}

		g, err := blockingGraph(ctx, &tx.Queries, t.ProjectID)
		if err != nil {
			return err
		}
		if err := g.AddEdge(id, blockerID); err != nil {
			return fmt.Errorf("lifecycle: block todo %d by %d: %w", id, blockerID, err)
		}

		if err := tx.AddTodoBlocker(ctx, id, blockerID); err != nil {
			return err
		}
		if err := tx.SetTodoStatus(ctx, id, store.TodoBlocked); err != nil {
			return err
		}
		out, err = tx.TodoByID(ctx, id)
		return err
	})
	if err != nil {
		return store.Todo{}, err
	}
	e.log.Record(activity.KindTodoBlocked, out.ProjectID, id, map[string]int64{"by": blockerID})
	return out, nil
}

// UnblockTodo removes one blocker (or all, when blockerID is 0). A
// blocked todo whose blocked_by set becomes empty transitions back to
// open automatically.
func (e *Engine) UnblockTodo(ctx context.Context, id, blockerID int64) (store.Todo, error) {
	var out store.Todo
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := tx.TodoByID(ctx, id)
		if err != nil {
			return err
		}
		if blockerID == 0 {
			if err := tx.ClearTodoBlockers(ctx, id); err != nil {
				return err
			}
		} else {
			if err := tx.RemoveTodoBlocker(ctx, id, blockerID); err != nil {
				return err
			}
		}
		remaining, err := tx.TodoBlockers(ctx, id)
		if err != nil {
			return err
		}
		if len(remaining) == 0 && t.Status == store.TodoBlocked {
			if err := tx.SetTodoStatus(ctx, id, store.TodoOpen); err != nil {
				return err
			}
		}
		out, err = tx.TodoByID(ctx, id)
		return err
	})
	if err != nil {
		return store.Todo{}, err
	}
	e.log.Record(activity.KindTodoUnblocked, out.ProjectID, id, nil)
	return out, nil
}

// UpdateGoal applies an operator-driven goal update. Parent changes are
// checked against the goal tree: an edge that would make the hierarchy
// cyclic is rejected with the store unchanged.
func (e *Engine) UpdateGoal(ctx context.Context, g store.Goal) error {
	err := e.store.InTx(ctx, func(tx *store.Tx) error {
		if g.ParentID != 0 {
			if _, err := tx.GoalByID(ctx, g.ParentID); err != nil {
				return err
			}
			tree, err := goalTree(ctx, &tx.Queries, g.ProjectID)
			if err != nil {
				return err
			}
			if err := tree.AddEdge(g.ID, g.ParentID); err != nil {
				return fmt.Errorf("lifecycle: set goal %d parent %d: %w", g.ID, g.ParentID, err)
			}
		}
		return tx.UpdateGoal(ctx, g)
	})
	if err != nil {
		return err
	}
	e.log.Record(activity.KindGoalUpdated, g.ProjectID, g.ID, map[string]string{"status": string(g.Status)})
	return nil
}

// GoalProgress reports completed and total linked todo counts for a goal.
// Advisory only: completing every linked todo never auto-completes the
// goal.
func GoalProgress(ctx context.Context, q *store.Queries, goalID int64) (completed, total int, err error) {
	todos, err := q.Todos(ctx, store.TodoFilter{GoalID: goalID})
	if err != nil {
		return 0, 0, err
	}
	for _, t := range todos {
		if t.Status == store.TodoCompleted {
			completed++
		}
	}
	return completed, len(todos), nil
}

// blockingGraph loads a project's blocker edges into a graph for cycle
// probing.
func blockingGraph(ctx context.Context, q *store.Queries, projectID int64) (*graph.Graph, error) {
	edges, err := q.BlockerEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	for _, e := range edges {
		if err := g.AddEdge(e.TodoID, e.BlockerID); err != nil {
			// Stored edges were cycle-checked on insert; a failure here
			// means the store was edited out-of-band.
			return nil, fmt.Errorf("lifecycle: stored blocking graph invalid: %w", err)
		}
	}
	return g, nil
}

// goalTree loads a project's goal parent edges (child → parent).
func goalTree(ctx context.Context, q *store.Queries, projectID int64) (*graph.Graph, error) {
	goals, err := q.Goals(ctx, store.GoalFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	g := graph.New()
	for _, goal := range goals {
		if goal.ParentID == 0 || goal.ID == goal.ParentID {
			continue
		}
		if err := g.AddEdge(goal.ID, goal.ParentID); err != nil {
			return nil, fmt.Errorf("lifecycle: stored goal tree invalid: %w", err)
		}
	}
	return g, nil
}
