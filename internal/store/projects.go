package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProjectSort selects the ordering of project listings.
type ProjectSort string

const (
	SortByPriority ProjectSort = "priority"
	SortByActivity ProjectSort = "activity"
	SortByName     ProjectSort = "name"
)

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status  ProjectStatus // empty matches all
	HasGit  *bool         // nil matches all
	Sort    ProjectSort   // defaults to SortByPriority
}

// CreateProject inserts a project and returns it with its assigned id.
func (q *Queries) CreateProject(ctx context.Context, p Project) (Project, error) {
	if !p.Status.Valid() {
		return Project{}, fmt.Errorf("store: invalid project status %q", p.Status)
	}
	now := time.Now().UTC()
	p.Priority = ClampPriority(p.Priority)
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO projects (name, path, status, priority, has_git, last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Path, string(p.Status), p.Priority, p.HasGit,
		fmtTime(p.LastActivityAt), fmtTime(now), fmtTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return Project{}, fmt.Errorf("store: project %q: %w", p.Name, ErrDuplicate)
		}
		return Project{}, fmt.Errorf("store: create project %q: %w", p.Name, err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return Project{}, fmt.Errorf("store: project insert id: %w", err)
	}
	return p, nil
}

// ProjectByID returns the project with the given id.
func (q *Queries) ProjectByID(ctx context.Context, id int64) (Project, error) {
	return q.scanProject(q.db.QueryRowContext(ctx, projectColumns+" WHERE id = ?", id))
}

// ProjectByName returns the project with the given name.
func (q *Queries) ProjectByName(ctx context.Context, name string) (Project, error) {
	return q.scanProject(q.db.QueryRowContext(ctx, projectColumns+" WHERE name = ?", name))
}

// ProjectByPath returns the project registered at the given filesystem path.
func (q *Queries) ProjectByPath(ctx context.Context, path string) (Project, error) {
	return q.scanProject(q.db.QueryRowContext(ctx, projectColumns+" WHERE path = ?", path))
}

// Projects lists projects matching the filter.
func (q *Queries) Projects(ctx context.Context, f ProjectFilter) ([]Project, error) {
	query := projectColumns
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.HasGit != nil {
		conds = append(conds, "has_git = ?")
		args = append(args, *f.HasGit)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	switch f.Sort {
	case SortByActivity:
		query += " ORDER BY last_activity_at DESC NULLS LAST, name"
	case SortByName:
		query += " ORDER BY name"
	default:
		query += " ORDER BY priority DESC, name"
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProjectRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate projects: %w", err)
	}
	return out, nil
}

// UpdateProject persists status and priority changes on a project.
func (q *Queries) UpdateProject(ctx context.Context, p Project) error {
	if !p.Status.Valid() {
		return fmt.Errorf("store: invalid project status %q", p.Status)
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE projects SET status = ?, priority = ?, has_git = ?, updated_at = ? WHERE id = ?`,
		string(p.Status), ClampPriority(p.Priority), p.HasGit, fmtTime(time.Now().UTC()), p.ID)
	if err != nil {
		return fmt.Errorf("store: update project %d: %w", p.ID, err)
	}
	return requireRow(res, "project", p.ID)
}

// TouchProjectActivity advances last_activity_at to at, but never moves it
// backwards.
func (q *Queries) TouchProjectActivity(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE projects SET last_activity_at = ?, updated_at = ?
		WHERE id = ? AND (last_activity_at IS NULL OR last_activity_at < ?)`,
		fmtTime(at), fmtTime(time.Now().UTC()), id, fmtTime(at))
	if err != nil {
		return fmt.Errorf("store: touch project %d: %w", id, err)
	}
	return nil
}

// DeleteProject removes a project; goals, todos and commits cascade.
func (q *Queries) DeleteProject(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete project %d: %w", id, err)
	}
	return requireRow(res, "project", id)
}

const projectColumns = `SELECT id, name, path, status, priority, has_git,
	last_activity_at, created_at, updated_at FROM projects`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (q *Queries) scanProject(row *sql.Row) (Project, error) {
	p, err := scanProjectRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("store: project: %w", ErrNotFound)
	}
	return p, err
}

func scanProjectRow(row rowScanner) (Project, error) {
	var p Project
	var status string
	var lastActivity, createdAt, updatedAt sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &status, &p.Priority, &p.HasGit,
		&lastActivity, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Project{}, err
		}
		return Project{}, fmt.Errorf("store: scan project: %w", err)
	}
	p.Status = ProjectStatus(status)
	var err error
	if p.LastActivityAt, err = parseTime(lastActivity); err != nil {
		return Project{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Project{}, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Project{}, err
	}
	return p, nil
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// modernc.org/sqlite surfaces these as plain errors carrying the SQLite
// message, so string matching is the practical check.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
