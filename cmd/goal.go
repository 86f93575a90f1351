package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/activity"
	"github.com/hadronlab/orbit/internal/lifecycle"
	"github.com/hadronlab/orbit/internal/store"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add PROJECT TITLE",
	Short: "Add a goal to a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runGoalAdd,
}

var goalListCmd = &cobra.Command{
	Use:   "list [PROJECT]",
	Short: "List goals with progress",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGoalList,
}

var goalSetCmd = &cobra.Command{
	Use:   "set ID",
	Short: "Update a goal's status, priority, target date or parent",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalSet,
}

func init() {
	goalAddCmd.Flags().String("category", "feature", "category (feature|bugfix|refactor|docs|ops)")
	goalAddCmd.Flags().Int("priority", 50, "goal priority (0-100)")
	goalAddCmd.Flags().String("target", "", "target date (YYYY-MM-DD)")
	goalAddCmd.Flags().Int64("parent", 0, "parent goal id")
	goalAddCmd.Flags().String("descr", "", "description")

	goalListCmd.Flags().String("status", "", "filter by status")
	goalListCmd.Flags().Int("min-priority", 0, "minimum priority")

	goalSetCmd.Flags().String("status", "", "new status (active|completed|paused|archived)")
	goalSetCmd.Flags().Int("priority", -1, "new priority (0-100)")
	goalSetCmd.Flags().String("target", "", "new target date (YYYY-MM-DD)")
	goalSetCmd.Flags().Int64("parent", -1, "new parent goal id (0 clears)")

	goalCmd.AddCommand(goalAddCmd, goalListCmd, goalSetCmd)
	rootCmd.AddCommand(goalCmd)
}

func runGoalAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.resolveProject(cmd, args[0])
	if err != nil {
		return err
	}

	category, _ := cmd.Flags().GetString("category")
	pri, _ := cmd.Flags().GetInt("priority")
	parent, _ := cmd.Flags().GetInt64("parent")
	descr, _ := cmd.Flags().GetString("descr")
	targetFlag, _ := cmd.Flags().GetString("target")
	target, err := parseDateFlag(targetFlag)
	if err != nil {
		return err
	}

	g, err := a.store.CreateGoal(cmd.Context(), store.Goal{
		ProjectID:  p.ID,
		ParentID:   parent,
		Title:      args[1],
		Descr:      descr,
		Category:   store.GoalCategory(category),
		Priority:   pri,
		Status:     store.GoalActive,
		TargetDate: target,
	})
	if err != nil {
		return err
	}
	a.log.Record(activity.KindGoalAdded, p.ID, g.ID, nil)
	a.out.Successf("goal %d added to %s", g.ID, p.Name)
	return nil
}

func runGoalList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	filter := store.GoalFilter{}
	if len(args) == 1 {
		p, err := a.resolveProject(cmd, args[0])
		if err != nil {
			return err
		}
		filter.ProjectID = p.ID
	}
	status, _ := cmd.Flags().GetString("status")
	filter.Status = store.GoalStatus(status)
	filter.MinPriority, _ = cmd.Flags().GetInt("min-priority")

	goals, err := a.store.Goals(cmd.Context(), filter)
	if err != nil {
		return err
	}
	progress := make(map[int64][2]int, len(goals))
	for _, g := range goals {
		done, total, err := lifecycle.GoalProgress(cmd.Context(), &a.store.Queries, g.ID)
		if err != nil {
			return err
		}
		progress[g.ID] = [2]int{done, total}
	}
	a.out.GoalTable(goals, progress)
	return nil
}

func runGoalSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	g, err := a.store.GoalByID(cmd.Context(), id)
	if err != nil {
		return err
	}

	if status, _ := cmd.Flags().GetString("status"); status != "" {
		g.Status = store.GoalStatus(status)
	}
	if pri, _ := cmd.Flags().GetInt("priority"); pri >= 0 {
		g.Priority = pri
	}
	if targetFlag, _ := cmd.Flags().GetString("target"); targetFlag != "" {
		if g.TargetDate, err = parseDateFlag(targetFlag); err != nil {
			return err
		}
	}
	if parent, _ := cmd.Flags().GetInt64("parent"); parent >= 0 {
		g.ParentID = parent
	}

	if err := a.engine.UpdateGoal(cmd.Context(), g); err != nil {
		return err
	}
	// Goal priority feeds its todos' scores.
	if _, err := a.calc.Recalculate(cmd.Context(), a.store, g.ProjectID, timeNow()); err != nil {
		return err
	}
	a.out.Successf("goal %d updated", g.ID)
	return nil
}
