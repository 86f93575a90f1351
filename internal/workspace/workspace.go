// Package workspace discovers projects on disk. A workspace is a
// directory whose immediate children are project checkouts; scanning
// registers each child as a project, detecting git capability by the
// presence of a .git entry. Re-scanning is idempotent: known paths are
// refreshed, not duplicated.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hadronlab/orbit/internal/store"
)

// defaultProjectPriority is assigned to newly discovered projects until
// the operator sets one.
const defaultProjectPriority = 50

// ScanResult summarizes one workspace scan.
type ScanResult struct {
	Added   []store.Project
	Known   int // already-registered paths seen again
	Skipped int // hidden or non-directory entries
}

// Scan walks one level of dir and registers each child directory as a
// project. Hidden directories are skipped. Paths already registered are
// re-checked for git capability but otherwise left alone.
func Scan(ctx context.Context, s *store.Store, dir string) (ScanResult, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ScanResult{}, fmt.Errorf("workspace: resolve %s: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return ScanResult{}, fmt.Errorf("workspace: read %s: %w", abs, err)
	}

	var res ScanResult
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			res.Skipped++
			continue
		}
		path := filepath.Join(abs, e.Name())
		hasGit := IsGitDir(path)

		existing, err := s.ProjectByPath(ctx, path)
		switch {
		case err == nil:
			res.Known++
			if existing.HasGit != hasGit {
				existing.HasGit = hasGit
				if err := s.UpdateProject(ctx, existing); err != nil {
					return ScanResult{}, err
				}
			}
		case errors.Is(err, store.ErrNotFound):
			p, err := s.CreateProject(ctx, store.Project{
				Name:     e.Name(),
				Path:     path,
				Status:   store.ProjectActive,
				Priority: defaultProjectPriority,
				HasGit:   hasGit,
			})
			if err != nil {
				// A name collision across different paths is an operator
				// problem; report it with the path for context.
				return ScanResult{}, fmt.Errorf("workspace: register %s: %w", path, err)
			}
			res.Added = append(res.Added, p)
		default:
			return ScanResult{}, err
		}
	}
	return res, nil
}

// IsGitDir reports whether path contains a .git entry (directory for a
// checkout, file for a worktree).
func IsGitDir(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}
