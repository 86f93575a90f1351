// Package priority implements the multi-factor priority scoring
// algorithm. Scoring is a pure function over a snapshot of a todo, its
// goal and project, recent commit activity, and the blocking graph; the
// recalculation pass applies it to every eligible todo inside one
// transaction so re-running with unchanged state yields identical scores.
package priority

import (
	"context"
	"fmt"
	"time"

	"github.com/hadronlab/orbit/internal/config"
	"github.com/hadronlab/orbit/internal/store"
)

// Multiplicative status adjustments, applied after the weighted sum.
const (
	blockedMultiplier    = 0.5
	inProgressMultiplier = 1.2 // sticky priority: keeps in-flight work on top
)

// gitActivityPerCommit is the maximum contribution of a single commit to
// the git activity sub-score. A commit at the edge of the lookback window
// contributes nearly nothing; one made just now contributes the full value.
const gitActivityPerCommit = 25.0

// neutralScore is used when a factor has no signal (no linked goal with
// the configured default, unestimated effort, project without git).
const neutralScore = 50.0

// Calculator scores todos using configured weights and curve parameters.
type Calculator struct {
	weights config.Weights
	tuning  config.Tuning
}

// New builds a Calculator, failing fast on an invalid weight set.
func New(w config.Weights, t config.Tuning) (*Calculator, error) {
	if err := config.ValidateWeights(w); err != nil {
		return nil, err
	}
	return &Calculator{weights: w, tuning: t}, nil
}

// Input is the snapshot a single score is computed from. Goal is nil when
// the todo has no linked goal. CommitTimes holds the owning project's
// commit timestamps within the lookback window ending at AsOf.
// Dependents is the number of non-completed todos that list this todo as
// a blocker.
type Input struct {
	Todo        store.Todo
	Goal        *store.Goal
	Project     store.Project
	CommitTimes []time.Time
	Dependents  int
	AsOf        time.Time
}

// Score computes the priority score for one todo, in [0, 100].
func (c *Calculator) Score(in Input) float64 {
	w := c.weights
	score := c.goalPriority(in)*w.GoalPriority +
		float64(in.Project.Priority)*w.ProjectPriority +
		c.ageUrgency(in)*w.AgeUrgency +
		c.deadlinePressure(in)*w.DeadlinePressure +
		c.effortValue(in.Todo.Effort)*w.EffortValue +
		c.gitActivity(in)*w.GitActivity +
		c.blockingImpact(in.Dependents)*w.BlockingImpact

	switch in.Todo.Status {
	case store.TodoBlocked:
		score *= blockedMultiplier
	case store.TodoInProgress:
		score *= inProgressMultiplier
	}

	return clamp(score)
}

// goalPriority is the linked goal's priority, or the configured default
// when no goal is linked.
func (c *Calculator) goalPriority(in Input) float64 {
	if in.Goal == nil {
		return float64(c.tuning.DefaultPriority)
	}
	return float64(in.Goal.Priority)
}

// ageUrgency ramps linearly from 0 at creation to 100 at the configured
// ceiling, then saturates.
func (c *Calculator) ageUrgency(in Input) float64 {
	if in.Todo.CreatedAt.IsZero() {
		return c.tuning.NoDueDatePressure
	}
	ageDays := in.AsOf.Sub(in.Todo.CreatedAt).Hours() / 24
	if ageDays <= 0 {
		return 0
	}
	return clamp(100 * ageDays / c.tuning.AgeCeilingDays)
}

// deadlinePressure is 100 for anything due today or overdue, decreasing
// linearly to 0 at the configured horizon. Undated todos get a fixed
// neutral value.
func (c *Calculator) deadlinePressure(in Input) float64 {
	if in.Todo.DueDate.IsZero() {
		return c.tuning.NoDueDatePressure
	}
	daysUntil := daysBetween(dateOf(in.AsOf), in.Todo.DueDate)
	return clamp(100 * (1 - float64(daysUntil)/c.tuning.DeadlineHorizonDays))
}

// effortScores biases toward quick wins: small todos score high.
var effortScores = map[store.Effort]float64{
	store.EffortS:  80,
	store.EffortM:  60,
	store.EffortL:  40,
	store.EffortXL: 20,
}

func (c *Calculator) effortValue(e store.Effort) float64 {
	if s, ok := effortScores[e]; ok {
		return s
	}
	return neutralScore
}

// gitActivity rewards recent commit volume on the owning project. Each
// commit contributes up to gitActivityPerCommit points, decayed linearly
// by its age within the lookback window; the sum saturates at 100.
// Projects without git score neutral so the factor neither rewards nor
// penalizes them.
func (c *Calculator) gitActivity(in Input) float64 {
	if !in.Project.HasGit {
		return neutralScore
	}
	lookback := c.tuning.GitLookbackDays
	var total float64
	for _, t := range in.CommitTimes {
		ageDays := in.AsOf.Sub(t).Hours() / 24
		if ageDays < 0 || ageDays > lookback {
			continue
		}
		total += gitActivityPerCommit * (1 - ageDays/lookback)
	}
	return clamp(total)
}

// blockingImpact rewards todos whose completion would unblock others,
// saturating at 100.
func (c *Calculator) blockingImpact(dependents int) float64 {
	if dependents <= 0 {
		return 0
	}
	return clamp(float64(dependents) * c.tuning.BlockingImpactPoints)
}

// Recalculate recomputes the priority score of every non-completed todo in
// the given project (or all projects when projectID is 0) inside a single
// transaction. Completed todos keep the score frozen at completion time.
// The pass is deterministic for a fixed asOf and returns the number of
// todos scored.
func (c *Calculator) Recalculate(ctx context.Context, s *store.Store, projectID int64, asOf time.Time) (int, error) {
	count := 0
	err := s.InTx(ctx, func(tx *store.Tx) error {
		var err error
		count, err = c.recalculateTx(ctx, &tx.Queries, projectID, asOf)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RecalculateIn runs the recalculation pass on an already-open transaction,
// for callers (commit ingestion, todo completion) that fold it into their
// own atomic operation.
func (c *Calculator) RecalculateIn(ctx context.Context, q *store.Queries, projectID int64, asOf time.Time) (int, error) {
	return c.recalculateTx(ctx, q, projectID, asOf)
}

func (c *Calculator) recalculateTx(ctx context.Context, q *store.Queries, projectID int64, asOf time.Time) (int, error) {
	var projects []store.Project
	if projectID != 0 {
		p, err := q.ProjectByID(ctx, projectID)
		if err != nil {
			return 0, err
		}
		projects = []store.Project{p}
	} else {
		var err error
		projects, err = q.Projects(ctx, store.ProjectFilter{})
		if err != nil {
			return 0, err
		}
	}

	count := 0
	for _, p := range projects {
		n, err := c.recalculateProject(ctx, q, p, asOf)
		if err != nil {
			return 0, fmt.Errorf("priority: recalculate project %q: %w", p.Name, err)
		}
		count += n
	}
	return count, nil
}

func (c *Calculator) recalculateProject(ctx context.Context, q *store.Queries, p store.Project, asOf time.Time) (int, error) {
	todos, err := q.Todos(ctx, store.TodoFilter{
		ProjectID: p.ID,
		Statuses:  []store.TodoStatus{store.TodoOpen, store.TodoInProgress, store.TodoBlocked},
	})
	if err != nil {
		return 0, err
	}
	if len(todos) == 0 {
		return 0, nil
	}

	goals, err := q.Goals(ctx, store.GoalFilter{ProjectID: p.ID})
	if err != nil {
		return 0, err
	}
	goalByID := make(map[int64]store.Goal, len(goals))
	for _, g := range goals {
		goalByID[g.ID] = g
	}

	dependents, err := q.DependentCounts(ctx, p.ID)
	if err != nil {
		return 0, err
	}

	lookback := asOf.Add(-time.Duration(c.tuning.GitLookbackDays * 24 * float64(time.Hour)))
	commitTimes, err := q.CommitTimes(ctx, p.ID, lookback)
	if err != nil {
		return 0, err
	}

	for _, t := range todos {
		in := Input{
			Todo:        t,
			Project:     p,
			CommitTimes: commitTimes,
			Dependents:  dependents[t.ID],
			AsOf:        asOf,
		}
		if g, ok := goalByID[t.GoalID]; ok {
			in.Goal = &g
		}
		if err := q.UpdateTodoScore(ctx, t.ID, c.Score(in)); err != nil {
			return 0, err
		}
	}
	return len(todos), nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// dateOf truncates a timestamp to its UTC date, matching how due dates
// are stored.
func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole-day difference b - a between two
// date-granularity values.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
