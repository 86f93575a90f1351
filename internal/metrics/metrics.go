// Package metrics computes read-only projections over a project's
// entities and commit history: completion rate, velocity and its weekly
// trend, a banded health score, deadline partitions and per-goal
// burn-down series. Nothing in this package mutates entity state.
package metrics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/hadronlab/orbit/internal/store"
)

// Trailing windows used by the rate metrics.
const (
	velocityWindowDays = 30
	trendBuckets       = 4
	trendBucketDays    = 7
)

// Health score composition. The five components sum to 100; the overdue
// and blocked components are awarded in full when the respective ratio
// is zero and shrink as it grows.
const (
	healthRecencyPoints    = 25.0
	healthCompletionPoints = 25.0
	healthOverduePoints    = 20.0
	healthBlockedPoints    = 15.0
	healthVelocityPoints   = 15.0

	// recencyHorizonDays is where the recency component reaches zero.
	recencyHorizonDays = 14.0

	// velocityTarget is the completions-per-day rate that earns the full
	// velocity component.
	velocityTarget = 0.5
)

// Health bands, highest threshold first.
var healthBands = []struct {
	min   float64
	label string
}{
	{85, "Excellent"},
	{70, "Good"},
	{50, "Fair"},
	{30, "Poor"},
	{0, "Critical"},
}

// HealthLabel maps a health score to its band.
func HealthLabel(score float64) string {
	for _, b := range healthBands {
		if score >= b.min {
			return b.label
		}
	}
	return "Critical"
}

// BurnPoint is one step of a goal's burn-down series.
type BurnPoint struct {
	Date      time.Time
	Remaining int
}

// GoalReport is the per-goal projection: advisory progress plus a
// burn-down derived from linked todos' completion timestamps.
type GoalReport struct {
	Goal          store.Goal
	CompletedTodo int
	TotalTodo     int
	ProgressPct   float64
	BurnDown      []BurnPoint // monotonically non-increasing
	DaysRemaining int         // until target date; 0 when undated
	OnTrack       bool        // remaining work fits before the target at current velocity
}

// ProjectReport is the full metrics projection for one project.
type ProjectReport struct {
	Project        store.Project
	AsOf           time.Time
	CompletionRate float64 // completed / total, 0 when no todos
	Velocity       float64 // completions per day over the trailing window
	VelocityTrend  []float64
	RecentCommits  int // commits inside the trailing velocity window
	HealthScore    float64
	HealthBand     string
	TodoCounts     map[store.TodoStatus]int
	GoalCounts     map[store.GoalStatus]int
	Overdue        []store.Todo
	Upcoming       []store.Todo
	Goals          []GoalReport
}

// Report builds the metrics projection for a project at asOf.
func Report(ctx context.Context, q *store.Queries, projectID int64, asOf time.Time) (*ProjectReport, error) {
	p, err := q.ProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	r := &ProjectReport{Project: p, AsOf: asOf}

	if r.TodoCounts, err = q.TodoStatusCounts(ctx, projectID); err != nil {
		return nil, err
	}
	if r.GoalCounts, err = q.GoalStatusCounts(ctx, projectID); err != nil {
		return nil, err
	}

	total := 0
	for _, n := range r.TodoCounts {
		total += n
	}
	if total > 0 {
		r.CompletionRate = float64(r.TodoCounts[store.TodoCompleted]) / float64(total)
	}

	windowStart := asOf.AddDate(0, 0, -velocityWindowDays)
	completed, err := q.CompletedTodoCount(ctx, projectID, windowStart, asOf)
	if err != nil {
		return nil, err
	}
	r.Velocity = float64(completed) / velocityWindowDays

	if r.RecentCommits, err = q.CommitCount(ctx, projectID, windowStart); err != nil {
		return nil, err
	}

	if r.VelocityTrend, err = velocityTrend(ctx, q, projectID, asOf); err != nil {
		return nil, err
	}

	todos, err := q.Todos(ctx, store.TodoFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	r.Overdue, r.Upcoming = partitionByDue(todos, asOf)

	goals, err := q.Goals(ctx, store.GoalFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		r.Goals = append(r.Goals, goalReport(g, todos, asOf, r.Velocity))
	}

	r.HealthScore = healthScore(r, asOf)
	r.HealthBand = HealthLabel(r.HealthScore)
	return r, nil
}

// velocityTrend returns completions-per-day for four consecutive,
// non-overlapping weekly buckets ending at asOf, oldest first.
func velocityTrend(ctx context.Context, q *store.Queries, projectID int64, asOf time.Time) ([]float64, error) {
	trend := make([]float64, trendBuckets)
	for i := 0; i < trendBuckets; i++ {
		to := asOf.AddDate(0, 0, -trendBucketDays*(trendBuckets-1-i))
		from := to.AddDate(0, 0, -trendBucketDays)
		n, err := q.CompletedTodoCount(ctx, projectID, from, to)
		if err != nil {
			return nil, err
		}
		trend[i] = float64(n) / trendBucketDays
	}
	return trend, nil
}

// partitionByDue splits non-completed dated todos into overdue and
// upcoming, each sorted by due date ascending with priority score
// descending breaking ties.
func partitionByDue(todos []store.Todo, asOf time.Time) (overdue, upcoming []store.Todo) {
	today := dateOf(asOf)
	for _, t := range todos {
		if t.Status == store.TodoCompleted || t.DueDate.IsZero() {
			continue
		}
		if t.DueDate.Before(today) {
			overdue = append(overdue, t)
		} else {
			upcoming = append(upcoming, t)
		}
	}
	sortByDue(overdue)
	sortByDue(upcoming)
	return overdue, upcoming
}

func sortByDue(todos []store.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if !todos[i].DueDate.Equal(todos[j].DueDate) {
			return todos[i].DueDate.Before(todos[j].DueDate)
		}
		return todos[i].PriorityScore > todos[j].PriorityScore
	})
}

// goalReport builds the per-goal projection from the project's todo set.
func goalReport(g store.Goal, todos []store.Todo, asOf time.Time, velocity float64) GoalReport {
	rep := GoalReport{Goal: g, OnTrack: true}

	var completions []time.Time
	for _, t := range todos {
		if t.GoalID != g.ID {
			continue
		}
		rep.TotalTodo++
		if t.Status == store.TodoCompleted {
			rep.CompletedTodo++
			if !t.CompletedAt.IsZero() {
				completions = append(completions, t.CompletedAt)
			}
		}
	}
	if rep.TotalTodo > 0 {
		rep.ProgressPct = 100 * float64(rep.CompletedTodo) / float64(rep.TotalTodo)
	}
	rep.BurnDown = burnDown(g.CreatedAt, rep.TotalTodo, completions)

	if g.TargetDate.IsZero() {
		return rep
	}
	rep.DaysRemaining = int(math.Ceil(g.TargetDate.Sub(asOf).Hours() / 24))
	remaining := rep.TotalTodo - rep.CompletedTodo
	if remaining == 0 {
		return rep
	}
	if velocity <= 0 {
		rep.OnTrack = false
		return rep
	}
	rep.OnTrack = float64(remaining)/velocity <= float64(rep.DaysRemaining)
	return rep
}

// burnDown builds the remaining-work step series: the full count at the
// goal's creation, then one step down per completion timestamp.
func burnDown(start time.Time, total int, completions []time.Time) []BurnPoint {
	if total == 0 {
		return nil
	}
	sort.Slice(completions, func(i, j int) bool { return completions[i].Before(completions[j]) })

	series := []BurnPoint{{Date: start, Remaining: total}}
	remaining := total
	for _, at := range completions {
		remaining--
		series = append(series, BurnPoint{Date: at, Remaining: remaining})
	}
	return series
}

// healthScore combines the projection into one 0-100 wellness value.
// Recency and completion reward activity and progress; overdue and
// blocked shrink with the respective ratio over non-completed todos;
// velocity is normalized against the target rate.
func healthScore(r *ProjectReport, asOf time.Time) float64 {
	score := healthCompletionPoints * r.CompletionRate

	if !r.Project.LastActivityAt.IsZero() {
		idleDays := asOf.Sub(r.Project.LastActivityAt).Hours() / 24
		score += healthRecencyPoints * clamp01(1-idleDays/recencyHorizonDays)
	}

	active := 0
	for status, n := range r.TodoCounts {
		if status != store.TodoCompleted {
			active += n
		}
	}
	overdueRatio, blockedRatio := 0.0, 0.0
	if active > 0 {
		overdueRatio = float64(len(r.Overdue)) / float64(active)
		blockedRatio = float64(r.TodoCounts[store.TodoBlocked]) / float64(active)
	}
	score += healthOverduePoints * (1 - overdueRatio)
	score += healthBlockedPoints * (1 - blockedRatio)

	score += healthVelocityPoints * clamp01(r.Velocity/velocityTarget)

	return clamp100(score)
}

// Snapshot records the day's metric samples for a project. One sample per
// kind per day; re-running on the same day is a no-op.
func Snapshot(ctx context.Context, q *store.Queries, r *ProjectReport) error {
	day := dateOf(r.AsOf)
	open := r.TodoCounts[store.TodoOpen] + r.TodoCounts[store.TodoInProgress] + r.TodoCounts[store.TodoBlocked]
	samples := []store.MetricSample{
		{Kind: store.MetricVelocity, Value: r.Velocity},
		{Kind: store.MetricCompletionRate, Value: r.CompletionRate},
		{Kind: store.MetricHealthScore, Value: r.HealthScore},
		{Kind: store.MetricTodosOpen, Value: float64(open)},
		{Kind: store.MetricTodosCompleted, Value: float64(r.TodoCounts[store.TodoCompleted])},
	}
	for _, s := range samples {
		s.ProjectID = r.Project.ID
		s.RecordedOn = day
		if err := q.RecordMetric(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
