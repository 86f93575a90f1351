package report

import (
	"fmt"
	"strings"

	"github.com/hadronlab/orbit/internal/metrics"
	"github.com/hadronlab/orbit/internal/store"
)

// Markdown renders the project reports as a shareable Markdown document.
func Markdown(reports []*metrics.ProjectReport) string {
	var b strings.Builder

	b.WriteString("# Workspace Report\n\n")
	if len(reports) > 0 {
		fmt.Fprintf(&b, "Generated %s\n\n", reports[0].AsOf.Format("2006-01-02 15:04"))
	}

	b.WriteString("| Project | Health | Velocity | Completion | Open | Overdue |\n")
	b.WriteString("|---------|--------|----------|------------|------|---------|\n")
	for _, r := range reports {
		open := r.TodoCounts[store.TodoOpen] + r.TodoCounts[store.TodoInProgress] + r.TodoCounts[store.TodoBlocked]
		fmt.Fprintf(&b, "| %s | %.0f (%s) | %.2f/day | %.0f%% | %d | %d |\n",
			r.Project.Name, r.HealthScore, r.HealthBand, r.Velocity,
			100*r.CompletionRate, open, len(r.Overdue))
	}
	b.WriteString("\n")

	for _, r := range reports {
		renderProject(&b, r)
	}
	return b.String()
}

func renderProject(b *strings.Builder, r *metrics.ProjectReport) {
	fmt.Fprintf(b, "## %s\n\n", r.Project.Name)
	fmt.Fprintf(b, "- Health: **%.0f** (%s)\n", r.HealthScore, r.HealthBand)
	fmt.Fprintf(b, "- Velocity: %.2f todos/day, trend %s\n", r.Velocity, trendArrows(r.VelocityTrend))
	fmt.Fprintf(b, "- Completion: %.0f%%\n\n", 100*r.CompletionRate)

	if len(r.Overdue) > 0 {
		b.WriteString("### Overdue\n\n")
		for _, t := range r.Overdue {
			fmt.Fprintf(b, "- #%d %s (due %s)\n", t.ID, t.Title, t.DueDate.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	active := false
	for _, g := range r.Goals {
		if g.Goal.Status == store.GoalActive && g.TotalTodo > 0 {
			active = true
			break
		}
	}
	if !active {
		return
	}
	b.WriteString("### Goals\n\n")
	for _, g := range r.Goals {
		if g.Goal.Status != store.GoalActive || g.TotalTodo == 0 {
			continue
		}
		fmt.Fprintf(b, "- %s: %d/%d (%.0f%%)%s\n",
			g.Goal.Title, g.CompletedTodo, g.TotalTodo, g.ProgressPct, onTrackNote(g))
	}
	b.WriteString("\n")
}

// trendArrows renders the weekly velocity buckets as a direction glyph
// per step, oldest first.
func trendArrows(trend []float64) string {
	if len(trend) < 2 {
		return "→"
	}
	var arrows []string
	for i := 1; i < len(trend); i++ {
		switch {
		case trend[i] > trend[i-1]:
			arrows = append(arrows, "↑")
		case trend[i] < trend[i-1]:
			arrows = append(arrows, "↓")
		default:
			arrows = append(arrows, "→")
		}
	}
	return strings.Join(arrows, "")
}

func onTrackNote(g metrics.GoalReport) string {
	if g.Goal.TargetDate.IsZero() || g.CompletedTodo == g.TotalTodo {
		return ""
	}
	if g.OnTrack {
		return fmt.Sprintf(" (on track, %d days left)", g.DaysRemaining)
	}
	return fmt.Sprintf(" (at risk, %d days left)", g.DaysRemaining)
}
