package store

import (
	"fmt"
	"time"
)

// ProjectStatus is the lifecycle state of a tracked project.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectPaused   ProjectStatus = "paused"
	ProjectArchived ProjectStatus = "archived"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectPaused, ProjectArchived:
		return true
	}
	return false
}

// GoalStatus is the lifecycle state of a goal. Goal transitions are
// operator-driven; there is no automatic completion.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalPaused    GoalStatus = "paused"
	GoalArchived  GoalStatus = "archived"
)

// Valid reports whether s is a known goal status.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalCompleted, GoalPaused, GoalArchived:
		return true
	}
	return false
}

// GoalCategory classifies what kind of work a goal represents.
type GoalCategory string

const (
	CategoryFeature  GoalCategory = "feature"
	CategoryBugfix   GoalCategory = "bugfix"
	CategoryRefactor GoalCategory = "refactor"
	CategoryDocs     GoalCategory = "docs"
	CategoryOps      GoalCategory = "ops"
)

// Valid reports whether c is a known goal category.
func (c GoalCategory) Valid() bool {
	switch c {
	case CategoryFeature, CategoryBugfix, CategoryRefactor, CategoryDocs, CategoryOps:
		return true
	}
	return false
}

// TodoStatus is the lifecycle state of a todo.
type TodoStatus string

const (
	TodoOpen       TodoStatus = "open"
	TodoInProgress TodoStatus = "in_progress"
	TodoBlocked    TodoStatus = "blocked"
	TodoCompleted  TodoStatus = "completed"
)

// Valid reports whether s is a known todo status.
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoOpen, TodoInProgress, TodoBlocked, TodoCompleted:
		return true
	}
	return false
}

// Effort is a T-shirt size estimate for a todo.
type Effort string

const (
	EffortS  Effort = "S"
	EffortM  Effort = "M"
	EffortL  Effort = "L"
	EffortXL Effort = "XL"
)

// Valid reports whether e is a known effort size. The empty value is
// allowed and means "unestimated".
func (e Effort) Valid() bool {
	switch e {
	case "", EffortS, EffortM, EffortL, EffortXL:
		return true
	}
	return false
}

// ClampPriority clamps an operator-assigned priority to [0, 100].
func ClampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Project is a directory the operator works in. Projects own goals, todos
// and commits; deleting a project cascades to all of them.
type Project struct {
	ID             int64
	Name           string
	Path           string
	Status         ProjectStatus
	Priority       int // operator-assigned, 0-100
	HasGit         bool
	LastActivityAt time.Time // zero value means no recorded activity
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Goal is a strategic objective within a project. Goals may nest via
// ParentID (a tree; cycle creation is rejected at the mutation boundary).
type Goal struct {
	ID         int64
	ProjectID  int64
	ParentID   int64 // 0 means top-level
	Title      string
	Descr      string
	Category   GoalCategory
	Priority   int // 0-100
	Status     GoalStatus
	TargetDate time.Time // zero value means no target
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Todo is an actionable work item. PriorityScore is computed by the
// priority calculator and never hand-edited.
type Todo struct {
	ID            int64
	ProjectID     int64
	GoalID        int64 // 0 means no linked goal
	Title         string
	Descr         string
	Tags          []string
	Status        TodoStatus
	Effort        Effort
	PriorityScore float64 // computed, 0-100
	DueDate       time.Time // zero value means no deadline
	BlockedBy     []int64   // ordered; todo ids that block this one
	StartedAt     time.Time
	CompletedAt   time.Time // set exactly once, on transition to completed
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Commit is an immutable record of a version-control commit, keyed by hash
// within its project. LinkedTodoIDs is derived from message parsing at
// ingest time and fixed thereafter.
type Commit struct {
	ID            int64
	ProjectID     int64
	Hash          string
	Author        string
	Message       string
	CommittedAt   time.Time
	FilesChanged  int
	Insertions    int
	Deletions     int
	LinkedTodoIDs []int64
	CreatedAt     time.Time
}

// ShortHash returns the abbreviated commit hash for display.
func (c Commit) ShortHash() string {
	if len(c.Hash) < 7 {
		return c.Hash
	}
	return c.Hash[:7]
}

// MetricSample is one point in a per-project metric time series.
type MetricSample struct {
	ID         int64
	ProjectID  int64
	Kind       string // velocity, completion_rate, health_score, ...
	Value      float64
	RecordedOn time.Time // date granularity, one sample per kind per day
}

// Metric kinds stored by the daily snapshot.
const (
	MetricVelocity       = "velocity"
	MetricCompletionRate = "completion_rate"
	MetricHealthScore    = "health_score"
	MetricTodosOpen      = "todos_open"
	MetricTodosCompleted = "todos_completed"
)

func (t Todo) String() string {
	return fmt.Sprintf("#%d %s [%s %.1f]", t.ID, t.Title, t.Status, t.PriorityScore)
}
