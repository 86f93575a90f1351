package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/gitlog"
	"github.com/hadronlab/orbit/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync [PROJECT]",
	Short: "Ingest git history and link commits to todos",
	Long: "Reads recent commits from each git-capable project, links todo " +
		"references in commit messages, completes todos referenced with a " +
		"completion verb, and recomputes priority scores. A project whose " +
		"repository cannot be read is reported and skipped; the batch " +
		"continues.",
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int("limit", 0, "max commits per project (default from config)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var projects []store.Project
	if len(args) == 1 {
		p, err := a.resolveProject(cmd, args[0])
		if err != nil {
			return err
		}
		projects = []store.Project{p}
	} else {
		git := true
		projects, err = a.store.Projects(cmd.Context(), store.ProjectFilter{
			Status: store.ProjectActive,
			HasGit: &git,
		})
		if err != nil {
			return err
		}
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = a.cfg.SyncLimit
	}

	source := gitlog.CLISource{}
	asOf := timeNow()
	failed := 0
	for _, p := range projects {
		if !p.HasGit {
			a.out.Info(fmt.Sprintf("  %s: no git repository, skipped", p.Name))
			continue
		}
		records, err := source.Recent(cmd.Context(), p.Path, limit)
		if err != nil {
			a.out.Error(fmt.Sprintf("%s: %v", p.Name, err))
			failed++
			continue
		}
		res, err := a.linker.Ingest(cmd.Context(), p, records, asOf)
		if err != nil {
			a.out.Error(fmt.Sprintf("%s: %v", p.Name, err))
			failed++
			continue
		}
		a.out.SyncResult(p.Name, res.NewCommits, res.Linked, res.Completed, res.SkippedRefs)
	}

	if failed > 0 {
		return fmt.Errorf("sync: %d project(s) failed", failed)
	}
	return nil
}
