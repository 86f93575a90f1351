// Package activity provides a JSONL audit trail for entity changes. Every
// creation, transition, sync and recalculation is recorded as a structured
// JSON event so an operator can reconstruct what happened and when. A nil
// *Log is a valid no-op logger.
package activity

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of activity event.
const (
	KindProjectAdded  = "project_added"
	KindGoalAdded     = "goal_added"
	KindGoalUpdated   = "goal_updated"
	KindTodoAdded     = "todo_added"
	KindTodoStarted   = "todo_started"
	KindTodoCompleted = "todo_completed"
	KindTodoBlocked   = "todo_blocked"
	KindTodoUnblocked = "todo_unblocked"
	KindCommitsSynced = "commits_synced"
	KindRecalculated  = "recalculated"
	KindRefSkipped    = "ref_skipped"
)

// Event is a single activity record.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	ProjectID int64     `json:"project,omitempty"`
	EntityID  int64     `json:"entity,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Log appends activity events to a JSONL file. Safe for concurrent use.
type Log struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// Open creates or appends to the activity log at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("activity: open %s: %w", path, err)
	}
	return &Log{file: f, enc: json.NewEncoder(f)}, nil
}

// Record writes one event. A nil Log discards it.
func (l *Log) Record(kind string, projectID, entityID int64, data any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Best effort: a failed audit write never fails the operation itself.
	_ = l.enc.Encode(Event{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		ProjectID: projectID,
		EntityID:  entityID,
		Data:      data,
	})
}

// Close flushes and closes the underlying file. Safe on nil.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.file.Close()
}
