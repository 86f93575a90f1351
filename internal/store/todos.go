package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TodoFilter narrows todo listings.
type TodoFilter struct {
	ProjectID int64        // 0 matches all projects
	GoalID    int64        // 0 matches all goals
	Statuses  []TodoStatus // empty matches all
	DueAfter  time.Time    // inclusive lower bound on due_date
	DueBefore time.Time    // exclusive upper bound on due_date
	MinScore  float64      // minimum priority_score; 0 matches all
	Tag       string       // matches todos carrying this tag
	Limit     int          // 0 means no limit
}

// CreateTodo inserts a todo and returns it with its assigned id. The
// initial priority score is whatever the caller set; recalculation owns
// it afterwards.
func (q *Queries) CreateTodo(ctx context.Context, t Todo) (Todo, error) {
	if !t.Status.Valid() {
		return Todo{}, fmt.Errorf("store: invalid todo status %q", t.Status)
	}
	if !t.Effort.Valid() {
		return Todo{}, fmt.Errorf("store: invalid effort %q", t.Effort)
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return Todo{}, fmt.Errorf("store: marshal tags: %w", err)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO todos (project_id, goal_id, title, description, tags, status, effort,
			priority_score, due_date, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, nullID(t.GoalID), t.Title, t.Descr, string(tags), string(t.Status),
		string(t.Effort), t.PriorityScore, fmtDate(t.DueDate), fmtTime(t.StartedAt),
		fmtTime(t.CompletedAt), fmtTime(now), fmtTime(now))
	if err != nil {
		return Todo{}, fmt.Errorf("store: create todo %q: %w", t.Title, err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return Todo{}, fmt.Errorf("store: todo insert id: %w", err)
	}
	return t, nil
}

// TodoByID returns the todo with the given id, blockers included.
func (q *Queries) TodoByID(ctx context.Context, id int64) (Todo, error) {
	t, err := scanTodoRow(q.db.QueryRowContext(ctx, todoColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Todo{}, fmt.Errorf("store: todo %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Todo{}, err
	}
	if t.BlockedBy, err = q.TodoBlockers(ctx, id); err != nil {
		return Todo{}, err
	}
	return t, nil
}

// Todos lists todos matching the filter, highest priority score first.
// Blockers are attached to every returned todo.
func (q *Queries) Todos(ctx context.Context, f TodoFilter) ([]Todo, error) {
	query := todoColumns
	var conds []string
	var args []any
	if f.ProjectID != 0 {
		conds = append(conds, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.GoalID != 0 {
		conds = append(conds, "goal_id = ?")
		args = append(args, f.GoalID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if !f.DueAfter.IsZero() {
		conds = append(conds, "due_date >= ?")
		args = append(args, f.DueAfter.Format(dateLayout))
	}
	if !f.DueBefore.IsZero() {
		conds = append(conds, "due_date < ?")
		args = append(args, f.DueBefore.Format(dateLayout))
	}
	if f.MinScore > 0 {
		conds = append(conds, "priority_score >= ?")
		args = append(args, f.MinScore)
	}
	if f.Tag != "" {
		// Tags are a JSON array; match the quoted element.
		conds = append(conds, "tags LIKE ?")
		args = append(args, `%"`+f.Tag+`"%`)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY priority_score DESC, due_date ASC NULLS LAST, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list todos: %w", err)
	}
	defer rows.Close()

	var out []Todo
	for rows.Next() {
		t, err := scanTodoRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate todos: %w", err)
	}

	for i := range out {
		if out[i].BlockedBy, err = q.TodoBlockers(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SetTodoStatus updates only the status column. Lifecycle timestamps are
// handled by MarkTodoStarted / MarkTodoCompleted.
func (q *Queries) SetTodoStatus(ctx context.Context, id int64, s TodoStatus) error {
	if !s.Valid() {
		return fmt.Errorf("store: invalid todo status %q", s)
	}
	res, err := q.db.ExecContext(ctx,
		"UPDATE todos SET status = ?, updated_at = ? WHERE id = ?",
		string(s), fmtTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("store: set todo %d status: %w", id, err)
	}
	return requireRow(res, "todo", id)
}

// MarkTodoStarted moves a todo to in_progress, recording started_at on
// first start only.
func (q *Queries) MarkTodoStarted(ctx context.Context, id int64, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE todos SET status = ?, started_at = COALESCE(started_at, ?), updated_at = ?
		WHERE id = ?`,
		string(TodoInProgress), fmtTime(at), fmtTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("store: start todo %d: %w", id, err)
	}
	return requireRow(res, "todo", id)
}

// MarkTodoCompleted moves a todo to completed. completed_at is written
// once and never overwritten on re-completion.
func (q *Queries) MarkTodoCompleted(ctx context.Context, id int64, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE todos SET status = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ?`,
		string(TodoCompleted), fmtTime(at), fmtTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("store: complete todo %d: %w", id, err)
	}
	return requireRow(res, "todo", id)
}

// UpdateTodoScore writes a recomputed priority score.
func (q *Queries) UpdateTodoScore(ctx context.Context, id int64, score float64) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE todos SET priority_score = ? WHERE id = ?", score, id)
	if err != nil {
		return fmt.Errorf("store: update todo %d score: %w", id, err)
	}
	return requireRow(res, "todo", id)
}

// UpdateTodo persists editable fields (title, description, goal link,
// effort, due date, tags).
func (q *Queries) UpdateTodo(ctx context.Context, t Todo) error {
	if !t.Effort.Valid() {
		return fmt.Errorf("store: invalid effort %q", t.Effort)
	}
	tags, err := json.Marshal(t.Tags)
	if err != nil {
		return fmt.Errorf("store: marshal tags: %w", err)
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE todos SET title = ?, description = ?, goal_id = ?, effort = ?,
			due_date = ?, tags = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Descr, nullID(t.GoalID), string(t.Effort),
		fmtDate(t.DueDate), string(tags), fmtTime(time.Now().UTC()), t.ID)
	if err != nil {
		return fmt.Errorf("store: update todo %d: %w", t.ID, err)
	}
	return requireRow(res, "todo", t.ID)
}

// DeleteTodo removes a todo; blocker edges and commit links cascade.
func (q *Queries) DeleteTodo(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete todo %d: %w", id, err)
	}
	return requireRow(res, "todo", id)
}

// TodoBlockers returns the ordered blocker ids for a todo.
func (q *Queries) TodoBlockers(ctx context.Context, id int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT blocker_id FROM todo_blockers WHERE todo_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("store: blockers for todo %d: %w", id, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var b int64
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("store: scan blocker: %w", err)
		}
		ids = append(ids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate blockers: %w", err)
	}
	return ids, nil
}

// AddTodoBlocker appends a blocker edge, preserving insertion order.
// Adding an existing edge is a no-op.
func (q *Queries) AddTodoBlocker(ctx context.Context, todoID, blockerID int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO todo_blockers (todo_id, blocker_id, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM todo_blockers WHERE todo_id = ?))
		ON CONFLICT (todo_id, blocker_id) DO NOTHING`,
		todoID, blockerID, todoID)
	if err != nil {
		return fmt.Errorf("store: add blocker %d -> %d: %w", blockerID, todoID, err)
	}
	return nil
}

// RemoveTodoBlocker deletes one blocker edge.
func (q *Queries) RemoveTodoBlocker(ctx context.Context, todoID, blockerID int64) error {
	_, err := q.db.ExecContext(ctx,
		"DELETE FROM todo_blockers WHERE todo_id = ? AND blocker_id = ?", todoID, blockerID)
	if err != nil {
		return fmt.Errorf("store: remove blocker %d -> %d: %w", blockerID, todoID, err)
	}
	return nil
}

// ClearTodoBlockers deletes every blocker edge for a todo.
func (q *Queries) ClearTodoBlockers(ctx context.Context, todoID int64) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM todo_blockers WHERE todo_id = ?", todoID)
	if err != nil {
		return fmt.Errorf("store: clear blockers for %d: %w", todoID, err)
	}
	return nil
}

// BlockerEdge is one edge of the project blocking graph: Blocker blocks Todo.
type BlockerEdge struct {
	TodoID    int64
	BlockerID int64
}

// BlockerEdges returns every blocker edge within a project, for cycle checks.
func (q *Queries) BlockerEdges(ctx context.Context, projectID int64) ([]BlockerEdge, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT tb.todo_id, tb.blocker_id
		FROM todo_blockers tb JOIN todos t ON t.id = tb.todo_id
		WHERE t.project_id = ?
		ORDER BY tb.todo_id, tb.position`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: blocker edges for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var edges []BlockerEdge
	for rows.Next() {
		var e BlockerEdge
		if err := rows.Scan(&e.TodoID, &e.BlockerID); err != nil {
			return nil, fmt.Errorf("store: scan blocker edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate blocker edges: %w", err)
	}
	return edges, nil
}

// DependentsOf returns the ids of todos that directly list blockerID in
// their blocked_by set.
func (q *Queries) DependentsOf(ctx context.Context, blockerID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT todo_id FROM todo_blockers WHERE blocker_id = ? ORDER BY todo_id", blockerID)
	if err != nil {
		return nil, fmt.Errorf("store: dependents of %d: %w", blockerID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan dependent: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dependents: %w", err)
	}
	return ids, nil
}

// DependentCounts returns, per blocker id, how many non-completed todos in
// the project currently list it as a blocker. Feeds the blocking-impact
// sub-score.
func (q *Queries) DependentCounts(ctx context.Context, projectID int64) (map[int64]int, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT tb.blocker_id, COUNT(*)
		FROM todo_blockers tb JOIN todos t ON t.id = tb.todo_id
		WHERE t.project_id = ? AND t.status != ?
		GROUP BY tb.blocker_id`, projectID, string(TodoCompleted))
	if err != nil {
		return nil, fmt.Errorf("store: dependent counts for project %d: %w", projectID, err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("store: scan dependent count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate dependent counts: %w", err)
	}
	return counts, nil
}

// TodoStatusCounts returns the number of todos per status for a project.
func (q *Queries) TodoStatusCounts(ctx context.Context, projectID int64) (map[TodoStatus]int, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM todos WHERE project_id = ? GROUP BY status", projectID)
	if err != nil {
		return nil, fmt.Errorf("store: todo counts for project %d: %w", projectID, err)
	}
	defer rows.Close()

	counts := make(map[TodoStatus]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("store: scan todo count: %w", err)
		}
		counts[TodoStatus(s)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate todo counts: %w", err)
	}
	return counts, nil
}

// GoalStatusCounts returns the number of goals per status for a project.
func (q *Queries) GoalStatusCounts(ctx context.Context, projectID int64) (map[GoalStatus]int, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM goals WHERE project_id = ? GROUP BY status", projectID)
	if err != nil {
		return nil, fmt.Errorf("store: goal counts for project %d: %w", projectID, err)
	}
	defer rows.Close()

	counts := make(map[GoalStatus]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("store: scan goal count: %w", err)
		}
		counts[GoalStatus(s)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate goal counts: %w", err)
	}
	return counts, nil
}

// CompletedTodoCount counts todos completed in [from, to).
func (q *Queries) CompletedTodoCount(ctx context.Context, projectID int64, from, to time.Time) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM todos
		WHERE project_id = ? AND status = ? AND completed_at >= ? AND completed_at < ?`,
		projectID, string(TodoCompleted),
		from.UTC().Format(timeLayout), to.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: completed count for project %d: %w", projectID, err)
	}
	return n, nil
}

const todoColumns = `SELECT id, project_id, COALESCE(goal_id, 0), title, description, tags,
	status, effort, priority_score, due_date, started_at, completed_at, created_at, updated_at
	FROM todos`

func scanTodoRow(row rowScanner) (Todo, error) {
	var t Todo
	var tags, status, effort string
	var due, started, completed, createdAt, updatedAt sql.NullString
	if err := row.Scan(&t.ID, &t.ProjectID, &t.GoalID, &t.Title, &t.Descr, &tags,
		&status, &effort, &t.PriorityScore, &due, &started, &completed,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Todo{}, err
		}
		return Todo{}, fmt.Errorf("store: scan todo: %w", err)
	}
	t.Status = TodoStatus(status)
	t.Effort = Effort(effort)
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return Todo{}, fmt.Errorf("store: unmarshal tags: %w", err)
	}
	var err error
	if t.DueDate, err = parseDate(due); err != nil {
		return Todo{}, err
	}
	if t.StartedAt, err = parseTime(started); err != nil {
		return Todo{}, err
	}
	if t.CompletedAt, err = parseTime(completed); err != nil {
		return Todo{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Todo{}, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Todo{}, err
	}
	return t, nil
}
