package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/activity"
	"github.com/hadronlab/orbit/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scan the workspace and register projects",
	Long: "Walks one level of the workspace directory and registers each child " +
		"directory as a project. Directories containing .git are marked " +
		"git-capable. Re-running is safe: known paths are refreshed in place.",
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("workspace", "", "workspace directory (overrides config)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	dir := a.cfg.WorkspacePath
	if flag, _ := cmd.Flags().GetString("workspace"); flag != "" {
		dir = flag
	}

	res, err := workspace.Scan(cmd.Context(), a.store, dir)
	if err != nil {
		return err
	}
	for _, p := range res.Added {
		a.log.Record(activity.KindProjectAdded, p.ID, 0, map[string]string{"path": p.Path})
		a.out.Successf("registered %s (%s)", p.Name, p.Path)
	}
	a.out.Info(fmt.Sprintf("%d new, %d known, %d skipped", len(res.Added), res.Known, res.Skipped))
	return nil
}
