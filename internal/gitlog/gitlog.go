// Package gitlog reads commit history from local repositories via the git
// CLI. It is the commit-source collaborator of the engine: given a
// repository path and a limit, it yields the most recent commits (hash,
// author, timestamp, message, diff stats) in reverse-chronological order.
// Failures are reported to the caller; a multi-project sync treats them
// as per-project errors, not batch failures.
package gitlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNotRepo is returned when the path is not inside a git repository.
var ErrNotRepo = errors.New("not a git repository")

// Record is one commit as reported by git.
type Record struct {
	Hash         string
	Author       string
	CommittedAt  time.Time
	Message      string
	FilesChanged int
	Insertions   int
	Deletions    int
}

// Source reads commit history for a repository path.
type Source interface {
	// Recent returns up to limit most-recent commits, newest first.
	Recent(ctx context.Context, repoDir string, limit int) ([]Record, error)
}

// CLISource implements Source using git CLI commands.
type CLISource struct{}

// Separators used in the log format: record (RS) between commits, unit
// (US) between fields. They cannot appear in hashes, author names or
// RFC 3339 timestamps, and are vanishingly unlikely in messages.
const (
	recordSep = "\x1e"
	unitSep   = "\x1f"
)

// IsRepo reports whether dir is inside a git work tree.
func (CLISource) IsRepo(ctx context.Context, dir string) bool {
	if _, err := exec.LookPath("git"); err != nil {
		return false
	}
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// Recent returns up to limit most-recent commits for the repository at
// repoDir, newest first, with per-commit diff stats aggregated from
// --numstat output.
func (s CLISource) Recent(ctx context.Context, repoDir string, limit int) ([]Record, error) {
	if !s.IsRepo(ctx, repoDir) {
		return nil, fmt.Errorf("gitlog: %s: %w", repoDir, ErrNotRepo)
	}

	args := []string{
		"log",
		"--format=" + recordSep + "%H" + unitSep + "%an <%ae>" + unitSep + "%cI" + unitSep + "%B",
		"--numstat",
	}
	if limit > 0 {
		args = append(args, "-n", strconv.Itoa(limit))
	}

	out, err := s.run(ctx, repoDir, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out)
}

// run executes a git command in dir and returns its stdout.
func (CLISource) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("gitlog: git %s: %s: %w",
			strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// parseLog splits raw `git log --format=... --numstat` output into records.
func parseLog(out string) ([]Record, error) {
	var records []Record
	for _, chunk := range strings.Split(out, recordSep) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		rec, err := parseRecord(chunk)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseRecord parses one commit chunk: hash, author and timestamp fields,
// then the message body with trailing numstat lines.
func parseRecord(chunk string) (Record, error) {
	fields := strings.SplitN(chunk, unitSep, 4)
	if len(fields) != 4 {
		return Record{}, fmt.Errorf("gitlog: malformed log record: %q", truncate(chunk, 80))
	}

	committedAt, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("gitlog: parse commit time %q: %w", fields[2], err)
	}

	rec := Record{
		Hash:        fields[0],
		Author:      fields[1],
		CommittedAt: committedAt,
	}

	// The body holds the commit message followed by numstat lines of the
	// form "<added>\t<deleted>\t<path>" (dashes for binary files).
	var msgLines []string
	for _, line := range strings.Split(fields[3], "\n") {
		if added, deleted, ok := parseNumstat(line); ok {
			rec.FilesChanged++
			rec.Insertions += added
			rec.Deletions += deleted
			continue
		}
		msgLines = append(msgLines, line)
	}
	rec.Message = strings.TrimSpace(strings.Join(msgLines, "\n"))
	return rec, nil
}

// parseNumstat parses one numstat line. Binary files report "-" counts,
// which contribute zero.
func parseNumstat(line string) (added, deleted int, ok bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return 0, 0, false
	}
	added, okA := numstatCount(parts[0])
	deleted, okD := numstatCount(parts[1])
	if !okA || !okD {
		return 0, 0, false
	}
	return added, deleted, true
}

func numstatCount(s string) (int, bool) {
	if s == "-" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
