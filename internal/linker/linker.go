// Package linker connects commit messages to todos. Messages may carry
// references like "#42" or "#T42"; a reference preceded by a completion
// verb ("fixes #42", "closes todo: #7") both links the commit and
// completes the todo. Each reference carries its own completion flag, so
// "fixes #1 and touches #2" completes only #1. Ingestion of a commit
// batch is a single transaction and is idempotent: a hash that was seen
// before contributes nothing new.
package linker

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/hadronlab/orbit/internal/activity"
	"github.com/hadronlab/orbit/internal/gitlog"
	"github.com/hadronlab/orbit/internal/lifecycle"
	"github.com/hadronlab/orbit/internal/priority"
	"github.com/hadronlab/orbit/internal/store"
)

// refPattern matches one todo reference with an optional leading
// completion verb. Group 1 is the verb (empty for a bare reference),
// group 2 the todo id.
var refPattern = regexp.MustCompile(
	`(?i)(?:\b(fix|fixes|close|closes|resolve|resolves|complete|completes)\b[\s:]*(?:todo[\s:]+)?)?#T?(\d+)`)

// Ref is one parsed todo reference. Complete is set when any occurrence
// of the reference in the message carried a completion verb.
type Ref struct {
	TodoID   int64
	Complete bool
}

// ParseMessage extracts todo references from a commit message,
// deduplicated in order of first appearance.
func ParseMessage(msg string) []Ref {
	var refs []Ref
	index := make(map[int64]int)
	for _, m := range refPattern.FindAllStringSubmatch(msg, -1) {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || id == 0 {
			continue
		}
		complete := m[1] != ""
		if i, ok := index[id]; ok {
			refs[i].Complete = refs[i].Complete || complete
			continue
		}
		index[id] = len(refs)
		refs = append(refs, Ref{TodoID: id, Complete: complete})
	}
	return refs
}

// Linker ingests commit batches for a project.
type Linker struct {
	store *store.Store
	calc  *priority.Calculator
	log   *activity.Log // nil disables audit events
}

// New builds a Linker. log may be nil.
func New(s *store.Store, calc *priority.Calculator, log *activity.Log) *Linker {
	return &Linker{store: s, calc: calc, log: log}
}

// Result summarizes one ingestion batch.
type Result struct {
	NewCommits  int
	Linked      int // commit↔todo links created from new commits
	Completed   int // todos auto-completed by a completion verb
	SkippedRefs int // references to missing or foreign todos
}

// Ingest stores a batch of commits for a project, links referenced todos
// and applies verb-triggered completions, then touches the project's
// activity and recomputes its priority scores. The whole batch is one
// transaction. References to todos that do not exist, or that belong to
// another project, are skipped and recorded in the audit trail.
func (l *Linker) Ingest(ctx context.Context, project store.Project, records []gitlog.Record, asOf time.Time) (Result, error) {
	var res Result
	err := l.store.InTx(ctx, func(tx *store.Tx) error {
		// Oldest first, so completion timestamps follow commit order.
		for i := len(records) - 1; i >= 0; i-- {
			if err := l.ingestOne(ctx, tx, project, records[i], &res); err != nil {
				return err
			}
		}
		if res.NewCommits == 0 {
			return nil
		}
		if err := tx.TouchProjectActivity(ctx, project.ID, latestCommit(records)); err != nil {
			return err
		}
		_, err := l.calc.RecalculateIn(ctx, &tx.Queries, project.ID, asOf)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if res.NewCommits > 0 {
		l.log.Record(activity.KindCommitsSynced, project.ID, 0, res)
	}
	return res, nil
}

func (l *Linker) ingestOne(ctx context.Context, tx *store.Tx, project store.Project, rec gitlog.Record, res *Result) error {
	c, inserted, err := tx.UpsertCommit(ctx, store.Commit{
		ProjectID:    project.ID,
		Hash:         rec.Hash,
		Author:       rec.Author,
		Message:      rec.Message,
		CommittedAt:  rec.CommittedAt,
		FilesChanged: rec.FilesChanged,
		Insertions:   rec.Insertions,
		Deletions:    rec.Deletions,
	})
	if err != nil {
		return err
	}
	if !inserted {
		// Seen before; its references were handled on first ingestion.
		return nil
	}
	res.NewCommits++

	for _, ref := range ParseMessage(rec.Message) {
		t, err := tx.TodoByID(ctx, ref.TodoID)
		if err != nil || t.ProjectID != project.ID {
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			res.SkippedRefs++
			l.log.Record(activity.KindRefSkipped, project.ID, ref.TodoID,
				map[string]string{"commit": c.ShortHash()})
			continue
		}
		if err := tx.LinkCommitTodo(ctx, c.ID, t.ID); err != nil {
			return err
		}
		res.Linked++
		if !ref.Complete {
			continue
		}
		done, err := lifecycle.CompleteInTx(ctx, &tx.Queries, t.ID, rec.CommittedAt)
		if err != nil {
			return err
		}
		if done {
			res.Completed++
			l.log.Record(activity.KindTodoCompleted, project.ID, t.ID,
				map[string]string{"commit": c.ShortHash()})
		}
	}
	return nil
}

// latestCommit returns the newest CommittedAt in the batch.
func latestCommit(records []gitlog.Record) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.CommittedAt.After(latest) {
			latest = r.CommittedAt
		}
	}
	return latest
}
