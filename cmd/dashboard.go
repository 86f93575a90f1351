package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/metrics"
	"github.com/hadronlab/orbit/internal/report"
	"github.com/hadronlab/orbit/internal/store"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard [PROJECT]",
	Short: "Show project health, deadlines and goal progress",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDashboard,
}

func init() {
	dashboardCmd.Flags().Bool("watch", false, "re-render when the database changes")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	render := func() error {
		reports, err := a.buildReports(cmd, args)
		if err != nil {
			return err
		}
		a.out.Dashboard(reports)
		return nil
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		return render()
	}

	w, err := report.NewWatcher(a.cfg.DBPath)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	clearScreen()
	if err := render(); err != nil {
		return err
	}
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case _, ok := <-w.Changes:
			if !ok {
				return nil
			}
			clearScreen()
			if err := render(); err != nil {
				return err
			}
		}
	}
}

// buildReports computes the metrics projection for the named project, or
// every active project when no argument is given.
func (a *app) buildReports(cmd *cobra.Command, args []string) ([]*metrics.ProjectReport, error) {
	var projects []store.Project
	if len(args) == 1 {
		p, err := a.resolveProject(cmd, args[0])
		if err != nil {
			return nil, err
		}
		projects = []store.Project{p}
	} else {
		var err error
		projects, err = a.store.Projects(cmd.Context(), store.ProjectFilter{Status: store.ProjectActive})
		if err != nil {
			return nil, err
		}
	}

	asOf := timeNow()
	var reports []*metrics.ProjectReport
	for _, p := range projects {
		r, err := metrics.Report(cmd.Context(), &a.store.Queries, p.ID, asOf)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func clearScreen() {
	fmt.Print("\033[2J\033[H")
}
