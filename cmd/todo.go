package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/activity"
	"github.com/hadronlab/orbit/internal/graph"
	"github.com/hadronlab/orbit/internal/store"
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Manage todos",
}

var todoAddCmd = &cobra.Command{
	Use:   "add PROJECT TITLE",
	Short: "Add a todo to a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runTodoAdd,
}

var todoListCmd = &cobra.Command{
	Use:   "list [PROJECT]",
	Short: "List todos, highest score first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTodoList,
}

var todoNextCmd = &cobra.Command{
	Use:   "next [PROJECT]",
	Short: "Show the top actionable todos",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTodoNext,
}

var todoShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one todo with its linked commits",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoShow,
}

var todoStartCmd = &cobra.Command{
	Use:   "start ID",
	Short: "Mark a todo in progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoStart,
}

var todoCompleteCmd = &cobra.Command{
	Use:   "complete ID",
	Short: "Complete a todo",
	Args:  cobra.ExactArgs(1),
	RunE:  runTodoComplete,
}

var todoBlockCmd = &cobra.Command{
	Use:   "block ID BLOCKER",
	Short: "Mark a todo as blocked by another",
	Args:  cobra.ExactArgs(2),
	RunE:  runTodoBlock,
}

var todoUnblockCmd = &cobra.Command{
	Use:   "unblock ID [BLOCKER]",
	Short: "Remove one blocker, or all when none is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runTodoUnblock,
}

func init() {
	todoAddCmd.Flags().Int64("goal", 0, "linked goal id")
	todoAddCmd.Flags().String("effort", "", "effort estimate (S|M|L|XL)")
	todoAddCmd.Flags().String("due", "", "due date (YYYY-MM-DD)")
	todoAddCmd.Flags().StringSlice("tags", nil, "comma-separated tags")
	todoAddCmd.Flags().String("descr", "", "description")

	todoListCmd.Flags().StringSlice("status", nil, "filter by status (open|in_progress|blocked|completed)")
	todoListCmd.Flags().String("tag", "", "filter by tag")
	todoListCmd.Flags().String("due-before", "", "due strictly before (YYYY-MM-DD)")
	todoListCmd.Flags().String("due-after", "", "due on or after (YYYY-MM-DD)")
	todoListCmd.Flags().Float64("min-score", 0, "minimum priority score")
	todoListCmd.Flags().Int("limit", 0, "cap the number of rows")

	todoNextCmd.Flags().Int("limit", 5, "how many todos to show")

	todoCmd.AddCommand(todoAddCmd, todoListCmd, todoNextCmd, todoShowCmd,
		todoStartCmd, todoCompleteCmd, todoBlockCmd, todoUnblockCmd)
	rootCmd.AddCommand(todoCmd)
}

func runTodoAdd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	p, err := a.resolveProject(cmd, args[0])
	if err != nil {
		return err
	}

	goalID, _ := cmd.Flags().GetInt64("goal")
	effort, _ := cmd.Flags().GetString("effort")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	descr, _ := cmd.Flags().GetString("descr")
	dueFlag, _ := cmd.Flags().GetString("due")
	due, err := parseDateFlag(dueFlag)
	if err != nil {
		return err
	}
	if goalID != 0 {
		g, err := a.store.GoalByID(cmd.Context(), goalID)
		if err != nil {
			return err
		}
		if g.ProjectID != p.ID {
			return fmt.Errorf("goal %d belongs to another project", goalID)
		}
	}

	t, err := a.store.CreateTodo(cmd.Context(), store.Todo{
		ProjectID: p.ID,
		GoalID:    goalID,
		Title:     args[1],
		Descr:     descr,
		Tags:      tags,
		Status:    store.TodoOpen,
		Effort:    store.Effort(strings.ToUpper(effort)),
		DueDate:   due,
	})
	if err != nil {
		return err
	}
	if _, err := a.calc.Recalculate(cmd.Context(), a.store, p.ID, timeNow()); err != nil {
		return err
	}
	a.log.Record(activity.KindTodoAdded, p.ID, t.ID, nil)
	a.out.Successf("todo #%d added to %s", t.ID, p.Name)
	return nil
}

func runTodoList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	filter := store.TodoFilter{}
	if len(args) == 1 {
		p, err := a.resolveProject(cmd, args[0])
		if err != nil {
			return err
		}
		filter.ProjectID = p.ID
	}
	statuses, _ := cmd.Flags().GetStringSlice("status")
	for _, s := range statuses {
		filter.Statuses = append(filter.Statuses, store.TodoStatus(s))
	}
	filter.Tag, _ = cmd.Flags().GetString("tag")
	filter.MinScore, _ = cmd.Flags().GetFloat64("min-score")
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	before, _ := cmd.Flags().GetString("due-before")
	if filter.DueBefore, err = parseDateFlag(before); err != nil {
		return err
	}
	after, _ := cmd.Flags().GetString("due-after")
	if filter.DueAfter, err = parseDateFlag(after); err != nil {
		return err
	}

	todos, err := a.store.Todos(cmd.Context(), filter)
	if err != nil {
		return err
	}
	a.out.TodoTable(todos)
	return nil
}

func runTodoNext(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	filter := store.TodoFilter{
		Statuses: []store.TodoStatus{store.TodoOpen, store.TodoInProgress},
	}
	if len(args) == 1 {
		p, err := a.resolveProject(cmd, args[0])
		if err != nil {
			return err
		}
		filter.ProjectID = p.ID
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	todos, err := a.store.Todos(cmd.Context(), filter)
	if err != nil {
		return err
	}
	a.out.TodoTable(todos)
	return nil
}

func runTodoShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t, err := a.store.TodoByID(cmd.Context(), id)
	if err != nil {
		return err
	}
	a.out.TodoTable([]store.Todo{t})
	if t.Descr != "" {
		fmt.Println("\n" + t.Descr)
	}

	edges, err := a.store.BlockerEdges(cmd.Context(), t.ProjectID)
	if err != nil {
		return err
	}
	g := graph.New()
	for _, e := range edges {
		if err := g.AddEdge(e.TodoID, e.BlockerID); err != nil {
			return err
		}
	}
	if blockers := g.Blockers(t.ID); len(blockers) > 0 {
		fmt.Printf("\nwaiting on: %s\n", refList(blockers))
	}
	if deps := g.Dependents(t.ID); len(deps) > 0 {
		fmt.Printf("blocks: %s\n", refList(deps))
	}

	hashes, err := a.store.CommitsForTodo(cmd.Context(), t.ID)
	if err != nil {
		return err
	}
	if len(hashes) > 0 {
		fmt.Printf("\ncommits: %s\n", strings.Join(hashes, " "))
	}
	return nil
}

// refList renders todo ids as "#1 #4 #9".
func refList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, " ")
}

func runTodoStart(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t, err := a.engine.StartTodo(cmd.Context(), id, timeNow())
	if err != nil {
		return err
	}
	a.out.Successf("todo #%d started", t.ID)
	return nil
}

func runTodoComplete(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	t, err := a.engine.CompleteTodo(cmd.Context(), id, timeNow())
	if err != nil {
		return err
	}
	a.out.Successf("todo #%d completed", t.ID)
	return nil
}

func runTodoBlock(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	blocker, err := parseID(args[1])
	if err != nil {
		return err
	}
	t, err := a.engine.BlockTodo(cmd.Context(), id, blocker, timeNow())
	if err != nil {
		return err
	}
	a.out.Successf("todo #%d blocked by #%d", t.ID, blocker)
	return nil
}

func runTodoUnblock(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	var blocker int64
	if len(args) == 2 {
		if blocker, err = parseID(args[1]); err != nil {
			return err
		}
	}
	t, err := a.engine.UnblockTodo(cmd.Context(), id, blocker)
	if err != nil {
		return err
	}
	a.out.Successf("todo #%d now %s", t.ID, t.Status)
	return nil
}
