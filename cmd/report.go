package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hadronlab/orbit/internal/metrics"
	"github.com/hadronlab/orbit/internal/report"
	"github.com/hadronlab/orbit/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report [PROJECT]",
	Short: "Write the report snapshot and record daily metrics",
	Long: "Computes the metrics projection, records the day's metric samples " +
		"in the store, and rotates the TOML report snapshot. With --markdown " +
		"the report is also printed as a Markdown document; with --history " +
		"the recorded health scores of the last 30 days are shown instead.",
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().Bool("markdown", false, "print the report as Markdown")
	reportCmd.Flags().Bool("history", false, "show recorded daily health scores")
	reportCmd.Flags().String("out", "", "snapshot path (default report.toml next to the database)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if history, _ := cmd.Flags().GetBool("history"); history {
		return a.reportHistory(cmd, args)
	}

	reports, err := a.buildReports(cmd, args)
	if err != nil {
		return err
	}

	for _, r := range reports {
		if err := metrics.Snapshot(cmd.Context(), &a.store.Queries, r); err != nil {
			return err
		}
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(filepath.Dir(a.cfg.DBPath), "report.toml")
	}
	if err := report.Save(out, reports, timeNow()); err != nil {
		return err
	}

	if markdown, _ := cmd.Flags().GetBool("markdown"); markdown {
		fmt.Print(report.Markdown(reports))
	} else {
		a.out.Successf("report written to %s (%d project(s))", out, len(reports))
	}
	return nil
}

// reportHistory prints the health score samples recorded by previous
// report runs, one sparkline per project.
func (a *app) reportHistory(cmd *cobra.Command, args []string) error {
	var projects []store.Project
	if len(args) == 1 {
		p, err := a.resolveProject(cmd, args[0])
		if err != nil {
			return err
		}
		projects = []store.Project{p}
	} else {
		var err error
		projects, err = a.store.Projects(cmd.Context(), store.ProjectFilter{Status: store.ProjectActive})
		if err != nil {
			return err
		}
	}

	since := timeNow().AddDate(0, 0, -30)
	for _, p := range projects {
		samples, err := a.store.MetricHistory(cmd.Context(), p.ID, store.MetricHealthScore, since)
		if err != nil {
			return err
		}
		a.out.MetricHistory(p.Name, samples)
	}
	return nil
}
