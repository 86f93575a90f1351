package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/activity"
)

var prioritizeCmd = &cobra.Command{
	Use:   "prioritize [PROJECT]",
	Short: "Recompute priority scores",
	Long: "Recomputes the priority score of every non-completed todo, for one " +
		"project or all of them. Completed todos keep the score they had at " +
		"completion.",
	Args: cobra.MaximumNArgs(1),
	RunE: runPrioritize,
}

func init() {
	rootCmd.AddCommand(prioritizeCmd)
}

func runPrioritize(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var projectID int64
	if len(args) == 1 {
		p, err := a.resolveProject(cmd, args[0])
		if err != nil {
			return err
		}
		projectID = p.ID
	}

	n, err := a.calc.Recalculate(cmd.Context(), a.store, projectID, timeNow())
	if err != nil {
		return err
	}
	a.log.Record(activity.KindRecalculated, projectID, 0, map[string]int{"todos": n})
	a.out.Successf("scored %d todo(s)", n)
	return nil
}
