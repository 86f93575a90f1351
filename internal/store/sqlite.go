// Package store persists projects, goals, todos and commits in a local
// SQLite database. It is the only component that touches the database;
// the engine packages (priority, lifecycle, linker, metrics) operate
// through it, wrapping each logical operation in one transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// ErrNotFound is returned when a lookup references a missing row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint would be violated
// (e.g. registering a project path twice).
var ErrDuplicate = errors.New("already exists")

// schema contains the DDL executed on every open. IF NOT EXISTS makes it
// safe to run repeatedly.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT NOT NULL UNIQUE,
    path             TEXT NOT NULL UNIQUE,
    status           TEXT NOT NULL DEFAULT 'active',
    priority         INTEGER NOT NULL DEFAULT 50,
    has_git          INTEGER NOT NULL DEFAULT 0,
    last_activity_at TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS goals (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    parent_id   INTEGER REFERENCES goals(id) ON DELETE SET NULL,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT 'feature',
    priority    INTEGER NOT NULL DEFAULT 50,
    status      TEXT NOT NULL DEFAULT 'active',
    target_date TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_goals_project ON goals(project_id);

CREATE TABLE IF NOT EXISTS todos (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id     INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    goal_id        INTEGER REFERENCES goals(id) ON DELETE SET NULL,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    tags           TEXT NOT NULL DEFAULT '[]',
    status         TEXT NOT NULL DEFAULT 'open',
    effort         TEXT NOT NULL DEFAULT '',
    priority_score REAL NOT NULL DEFAULT 50.0,
    due_date       TEXT,
    started_at     TEXT,
    completed_at   TEXT,
    created_at     TEXT NOT NULL,
    updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_todos_project_status ON todos(project_id, status);
CREATE INDEX IF NOT EXISTS ix_todos_status_score ON todos(status, priority_score);

CREATE TABLE IF NOT EXISTS todo_blockers (
    todo_id    INTEGER NOT NULL REFERENCES todos(id) ON DELETE CASCADE,
    blocker_id INTEGER NOT NULL REFERENCES todos(id) ON DELETE CASCADE,
    position   INTEGER NOT NULL,
    PRIMARY KEY (todo_id, blocker_id)
);

CREATE TABLE IF NOT EXISTS commits (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id    INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    hash          TEXT NOT NULL,
    author        TEXT NOT NULL DEFAULT '',
    message       TEXT NOT NULL DEFAULT '',
    committed_at  TEXT NOT NULL,
    files_changed INTEGER NOT NULL DEFAULT 0,
    insertions    INTEGER NOT NULL DEFAULT 0,
    deletions     INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL,
    UNIQUE (project_id, hash)
);
CREATE INDEX IF NOT EXISTS ix_commits_project_date ON commits(project_id, committed_at);

CREATE TABLE IF NOT EXISTS commit_todos (
    commit_id INTEGER NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
    todo_id   INTEGER NOT NULL REFERENCES todos(id) ON DELETE CASCADE,
    PRIMARY KEY (commit_id, todo_id)
);

CREATE TABLE IF NOT EXISTS metrics (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    kind        TEXT NOT NULL,
    value       REAL NOT NULL,
    recorded_on TEXT NOT NULL,
    UNIQUE (project_id, kind, recorded_on)
);
`

// dbtx is satisfied by both *sql.DB and *sql.Tx so entity queries can run
// inside or outside an explicit transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every entity query method. It is embedded in Store (running
// against the connection) and Tx (running against an open transaction).
type Queries struct {
	db dbtx
}

// Store owns the SQLite connection.
type Store struct {
	Queries
	db *sql.DB
}

// Tx is an open transaction exposing the same query surface as Store.
type Tx struct {
	Queries
	tx *sql.Tx
}

// Open opens (or creates) the database at dbPath, enables WAL mode, busy
// timeout and foreign keys, and creates the schema if missing.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// Single connection: SQLite supports a single writer, and one connection
	// keeps PRAGMA state consistent across the pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &Store{Queries: Queries{db: db}, db: db}, nil
}

// Begin starts a transaction. The caller must Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	return &Tx{Queries: Queries{db: tx}, tx: tx}, nil
}

// InTx runs fn inside a transaction, committing on success and rolling
// back on error. Engine operations use this so partial failures leave the
// store in its pre-operation state.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back after a commit is a no-op.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const (
	timeLayout = time.RFC3339
	dateLayout = "2006-01-02"
)

// fmtTime serializes a timestamp, mapping the zero value to NULL.
func fmtTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// fmtDate serializes a date-granularity value, mapping zero to NULL.
func fmtDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

// parseTime deserializes a nullable timestamp column.
func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		// CURRENT_TIMESTAMP defaults come back space-separated.
		t, err = time.Parse(time.DateTime, s.String)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse timestamp %q: %w", s.String, err)
	}
	return t, nil
}

// parseDate deserializes a nullable date column.
func parseDate(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse date %q: %w", s.String, err)
	}
	return t, nil
}

// nullID maps id 0 to NULL for optional foreign keys.
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
