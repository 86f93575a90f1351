package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertCommit inserts a commit keyed by (project, hash). Re-ingesting an
// already-seen hash is a no-op: the existing row is returned unchanged and
// inserted is false.
func (q *Queries) UpsertCommit(ctx context.Context, c Commit) (Commit, bool, error) {
	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO commits (project_id, hash, author, message, committed_at,
			files_changed, insertions, deletions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, hash) DO NOTHING`,
		c.ProjectID, c.Hash, c.Author, c.Message, fmtTime(c.CommittedAt),
		c.FilesChanged, c.Insertions, c.Deletions, fmtTime(now))
	if err != nil {
		return Commit{}, false, fmt.Errorf("store: upsert commit %s: %w", c.Hash, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Commit{}, false, fmt.Errorf("store: upsert commit rows: %w", err)
	}

	existing, err := q.CommitByHash(ctx, c.ProjectID, c.Hash)
	if err != nil {
		return Commit{}, false, err
	}
	return existing, n > 0, nil
}

// CommitByHash returns the commit with the given hash in a project.
func (q *Queries) CommitByHash(ctx context.Context, projectID int64, hash string) (Commit, error) {
	c, err := scanCommitRow(q.db.QueryRowContext(ctx,
		commitColumns+" WHERE project_id = ? AND hash = ?", projectID, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return Commit{}, fmt.Errorf("store: commit %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return Commit{}, err
	}
	if c.LinkedTodoIDs, err = q.commitTodoIDs(ctx, c.ID); err != nil {
		return Commit{}, err
	}
	return c, nil
}

// Commits lists a project's commits since the given time (zero means all),
// newest first, up to limit (0 means no limit).
func (q *Queries) Commits(ctx context.Context, projectID int64, since time.Time, limit int) ([]Commit, error) {
	query := commitColumns + " WHERE project_id = ?"
	args := []any{projectID}
	if !since.IsZero() {
		query += " AND committed_at >= ?"
		args = append(args, since.UTC().Format(timeLayout))
	}
	query += " ORDER BY committed_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list commits: %w", err)
	}
	defer rows.Close()

	var out []Commit
	for rows.Next() {
		c, err := scanCommitRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate commits: %w", err)
	}

	for i := range out {
		if out[i].LinkedTodoIDs, err = q.commitTodoIDs(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CommitTimes returns committed_at timestamps for a project since the given
// time, for activity scoring.
func (q *Queries) CommitTimes(ctx context.Context, projectID int64, since time.Time) ([]time.Time, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT committed_at FROM commits
		WHERE project_id = ? AND committed_at >= ?
		ORDER BY committed_at`,
		projectID, since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("store: commit times for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("store: scan commit time: %w", err)
		}
		t, err := parseTime(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate commit times: %w", err)
	}
	return out, nil
}

// CommitCount counts a project's commits since the given time.
func (q *Queries) CommitCount(ctx context.Context, projectID int64, since time.Time) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM commits WHERE project_id = ? AND committed_at >= ?",
		projectID, since.UTC().Format(timeLayout)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: commit count for project %d: %w", projectID, err)
	}
	return n, nil
}

// LinkCommitTodo records a commit↔todo link. Duplicate pairs are ignored.
func (q *Queries) LinkCommitTodo(ctx context.Context, commitID, todoID int64) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO commit_todos (commit_id, todo_id) VALUES (?, ?)
		ON CONFLICT (commit_id, todo_id) DO NOTHING`, commitID, todoID)
	if err != nil {
		return fmt.Errorf("store: link commit %d to todo %d: %w", commitID, todoID, err)
	}
	return nil
}

// CommitsForTodo returns hashes of commits linked to a todo, oldest first.
func (q *Queries) CommitsForTodo(ctx context.Context, todoID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT c.hash FROM commits c
		JOIN commit_todos ct ON ct.commit_id = c.id
		WHERE ct.todo_id = ?
		ORDER BY c.committed_at`, todoID)
	if err != nil {
		return nil, fmt.Errorf("store: commits for todo %d: %w", todoID, err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("store: scan commit hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate todo commits: %w", err)
	}
	return hashes, nil
}

func (q *Queries) commitTodoIDs(ctx context.Context, commitID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT todo_id FROM commit_todos WHERE commit_id = ? ORDER BY todo_id", commitID)
	if err != nil {
		return nil, fmt.Errorf("store: todos for commit %d: %w", commitID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan linked todo: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate linked todos: %w", err)
	}
	return ids, nil
}

const commitColumns = `SELECT id, project_id, hash, author, message, committed_at,
	files_changed, insertions, deletions, created_at FROM commits`

func scanCommitRow(row rowScanner) (Commit, error) {
	var c Commit
	var committedAt, createdAt sql.NullString
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Hash, &c.Author, &c.Message,
		&committedAt, &c.FilesChanged, &c.Insertions, &c.Deletions, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Commit{}, err
		}
		return Commit{}, fmt.Errorf("store: scan commit: %w", err)
	}
	var err error
	if c.CommittedAt, err = parseTime(committedAt); err != nil {
		return Commit{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Commit{}, err
	}
	return c, nil
}
