package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GoalFilter narrows goal listings.
type GoalFilter struct {
	ProjectID   int64      // 0 matches all projects
	Status      GoalStatus // empty matches all
	MinPriority int        // 0 matches all
}

// CreateGoal inserts a goal and returns it with its assigned id.
func (q *Queries) CreateGoal(ctx context.Context, g Goal) (Goal, error) {
	if !g.Status.Valid() {
		return Goal{}, fmt.Errorf("store: invalid goal status %q", g.Status)
	}
	if !g.Category.Valid() {
		return Goal{}, fmt.Errorf("store: invalid goal category %q", g.Category)
	}
	now := time.Now().UTC()
	g.Priority = ClampPriority(g.Priority)
	g.CreatedAt = now
	g.UpdatedAt = now

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO goals (project_id, parent_id, title, description, category, priority, status, target_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ProjectID, nullID(g.ParentID), g.Title, g.Descr, string(g.Category),
		g.Priority, string(g.Status), fmtDate(g.TargetDate), fmtTime(now), fmtTime(now))
	if err != nil {
		return Goal{}, fmt.Errorf("store: create goal %q: %w", g.Title, err)
	}
	g.ID, err = res.LastInsertId()
	if err != nil {
		return Goal{}, fmt.Errorf("store: goal insert id: %w", err)
	}
	return g, nil
}

// GoalByID returns the goal with the given id.
func (q *Queries) GoalByID(ctx context.Context, id int64) (Goal, error) {
	g, err := scanGoalRow(q.db.QueryRowContext(ctx, goalColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, fmt.Errorf("store: goal %d: %w", id, ErrNotFound)
	}
	return g, err
}

// Goals lists goals matching the filter, ordered by priority descending.
func (q *Queries) Goals(ctx context.Context, f GoalFilter) ([]Goal, error) {
	query := goalColumns
	var conds []string
	var args []any
	if f.ProjectID != 0 {
		conds = append(conds, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MinPriority > 0 {
		conds = append(conds, "priority >= ?")
		args = append(args, f.MinPriority)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY priority DESC, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list goals: %w", err)
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		g, err := scanGoalRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate goals: %w", err)
	}
	return out, nil
}

// UpdateGoal persists status, priority, target date and parent changes.
func (q *Queries) UpdateGoal(ctx context.Context, g Goal) error {
	if !g.Status.Valid() {
		return fmt.Errorf("store: invalid goal status %q", g.Status)
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE goals SET status = ?, priority = ?, target_date = ?, parent_id = ?, updated_at = ?
		WHERE id = ?`,
		string(g.Status), ClampPriority(g.Priority), fmtDate(g.TargetDate),
		nullID(g.ParentID), fmtTime(time.Now().UTC()), g.ID)
	if err != nil {
		return fmt.Errorf("store: update goal %d: %w", g.ID, err)
	}
	return requireRow(res, "goal", g.ID)
}

// DeleteGoal removes a goal. Linked todos keep existing with goal_id NULL.
func (q *Queries) DeleteGoal(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete goal %d: %w", id, err)
	}
	return requireRow(res, "goal", id)
}

const goalColumns = `SELECT id, project_id, COALESCE(parent_id, 0), title, description,
	category, priority, status, target_date, created_at, updated_at FROM goals`

func scanGoalRow(row rowScanner) (Goal, error) {
	var g Goal
	var category, status string
	var target, createdAt, updatedAt sql.NullString
	if err := row.Scan(&g.ID, &g.ProjectID, &g.ParentID, &g.Title, &g.Descr,
		&category, &g.Priority, &status, &target, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Goal{}, err
		}
		return Goal{}, fmt.Errorf("store: scan goal: %w", err)
	}
	g.Category = GoalCategory(category)
	g.Status = GoalStatus(status)
	var err error
	if g.TargetDate, err = parseDate(target); err != nil {
		return Goal{}, err
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return Goal{}, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Goal{}, err
	}
	return g, nil
}
