package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/activity"
	"github.com/hadronlab/orbit/internal/lifecycle"
	"github.com/hadronlab/orbit/internal/store"
	"github.com/hadronlab/orbit/internal/workspace"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add NAME PATH",
	Short: "Register a project manually",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectAdd,
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show PROJECT",
	Short: "Show one project with its goals and top todos",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectSetCmd = &cobra.Command{
	Use:   "set PROJECT",
	Short: "Update a project's status or priority",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectSet,
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove PROJECT",
	Short: "Delete a project and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectRemove,
}

func init() {
	projectAddCmd.Flags().Int("priority", 50, "project priority (0-100)")
	projectListCmd.Flags().String("status", "", "filter by status (active|paused|archived)")
	projectListCmd.Flags().String("sort", "priority", "sort order (priority|activity|name)")
	projectSetCmd.Flags().Int("priority", -1, "new priority (0-100)")
	projectSetCmd.Flags().String("status", "", "new status (active|paused|archived)")

	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectShowCmd, projectSetCmd, projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	path, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[1], err)
	}
	pri, _ := cmd.Flags().GetInt("priority")

	p, err := a.store.CreateProject(cmd.Context(), store.Project{
		Name:     args[0],
		Path:     path,
		Status:   store.ProjectActive,
		Priority: pri,
		HasGit:   workspace.IsGitDir(path),
	})
	if err != nil {
		return err
	}
	a.log.Record(activity.KindProjectAdded, p.ID, 0, map[string]string{"path": p.Path})
	a.out.Successf("project %s added (id %d)", p.Name, p.ID)
	return nil
}

func runProjectList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	status, _ := cmd.Flags().GetString("status")
	sortFlag, _ := cmd.Flags().GetString("sort")

	projects, err := a.store.Projects(cmd.Context(), store.ProjectFilter{
		Status: store.ProjectStatus(status),
		Sort:   store.ProjectSort(sortFlag),
	})
	if err != nil {
		return err
	}
	a.out.ProjectTable(projects)
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.resolveProject(cmd, args[0])
	if err != nil {
		return err
	}
	a.out.ProjectTable([]store.Project{p})

	goals, err := a.store.Goals(cmd.Context(), store.GoalFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}
	if len(goals) > 0 {
		progress := make(map[int64][2]int, len(goals))
		for _, g := range goals {
			done, total, err := lifecycle.GoalProgress(cmd.Context(), &a.store.Queries, g.ID)
			if err != nil {
				return err
			}
			progress[g.ID] = [2]int{done, total}
		}
		fmt.Println()
		a.out.GoalTable(goals, progress)
	}

	todos, err := a.store.Todos(cmd.Context(), store.TodoFilter{
		ProjectID: p.ID,
		Statuses:  []store.TodoStatus{store.TodoOpen, store.TodoInProgress, store.TodoBlocked},
		Limit:     10,
	})
	if err != nil {
		return err
	}
	if len(todos) > 0 {
		fmt.Println()
		a.out.TodoTable(todos)
	}

	if p.HasGit {
		commits, err := a.store.Commits(cmd.Context(), p.ID, time.Time{}, 5)
		if err != nil {
			return err
		}
		if len(commits) > 0 {
			fmt.Println()
			a.out.CommitList(commits)
		}
	}
	return nil
}

func runProjectSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.resolveProject(cmd, args[0])
	if err != nil {
		return err
	}
	if pri, _ := cmd.Flags().GetInt("priority"); pri >= 0 {
		p.Priority = pri
	}
	if status, _ := cmd.Flags().GetString("status"); status != "" {
		p.Status = store.ProjectStatus(status)
	}
	if err := a.store.UpdateProject(cmd.Context(), p); err != nil {
		return err
	}
	// Project priority feeds every todo score in the project.
	if _, err := a.calc.Recalculate(cmd.Context(), a.store, p.ID, timeNow()); err != nil {
		return err
	}
	a.out.Successf("project %s updated", p.Name)
	return nil
}

func runProjectRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.resolveProject(cmd, args[0])
	if err != nil {
		return err
	}
	if err := a.store.DeleteProject(cmd.Context(), p.ID); err != nil {
		return err
	}
	a.out.Successf("project %s removed", p.Name)
	return nil
}
