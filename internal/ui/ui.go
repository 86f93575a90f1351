// Package ui renders engine output to the terminal. Data tables go to
// stdout so they can be piped; status and error lines go to stderr.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hadronlab/orbit/internal/metrics"
	"github.com/hadronlab/orbit/internal/store"
)

// ANSI color codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	blue   = "\033[34m"
	yellow = "\033[33m"
	green  = "\033[32m"
	red    = "\033[31m"
	cyan   = "\033[36m"
)

type Printer struct{}

func New() *Printer {
	return &Printer{}
}

func (p *Printer) Error(msg string) {
	fmt.Fprintf(os.Stderr, red+bold+"error: "+reset+"%s\n", msg)
}

func (p *Printer) Info(msg string) {
	fmt.Fprintf(os.Stderr, dim+"%s"+reset+"\n", msg)
}

func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, green+"✓ "+reset+format+"\n", args...)
}

// ProjectTable lists projects with priority, status and last activity.
func (p *Printer) ProjectTable(projects []store.Project) {
	if len(projects) == 0 {
		p.Info("no projects")
		return
	}
	fmt.Printf(bold+"%-4s %-24s %-12s %4s %4s  %s\n"+reset,
		"ID", "NAME", "STATUS", "PRI", "GIT", "LAST ACTIVITY")
	for _, pr := range projects {
		git := dim + "-" + reset
		if pr.HasGit {
			git = green + "git" + reset
		}
		fmt.Printf("%-4d %-24s %s %4d %4s  %s\n",
			pr.ID, clip(pr.Name, 24), statusCell(string(pr.Status), projectStatusColor(pr.Status)),
			pr.Priority, git, RelativeTime(pr.LastActivityAt, time.Now()))
	}
}

// TodoTable lists todos sorted as the store returns them (score first).
func (p *Printer) TodoTable(todos []store.Todo) {
	if len(todos) == 0 {
		p.Info("no todos")
		return
	}
	fmt.Printf(bold+"%-5s %-40s %-12s %5s %-3s %-10s %s\n"+reset,
		"ID", "TITLE", "STATUS", "SCORE", "EFF", "DUE", "BLOCKED BY")
	for _, t := range todos {
		fmt.Printf("%-5d %-40s %s %s %-3s %-10s %s\n",
			t.ID, clip(t.Title, 40),
			statusCell(string(t.Status), todoStatusColor(t.Status)),
			scoreCell(t.PriorityScore),
			string(t.Effort), dateCell(t.DueDate), blockedCell(t.BlockedBy))
	}
}

// GoalTable lists goals with a progress bar per goal. progress maps goal
// id to {completed, total} linked todo counts.
func (p *Printer) GoalTable(goals []store.Goal, progress map[int64][2]int) {
	if len(goals) == 0 {
		p.Info("no goals")
		return
	}
	fmt.Printf(bold+"%-4s %-32s %-9s %-12s %4s %-10s %s\n"+reset,
		"ID", "TITLE", "CATEGORY", "STATUS", "PRI", "TARGET", "PROGRESS")
	for _, g := range goals {
		done, total := 0, 0
		if pr, ok := progress[g.ID]; ok {
			done, total = pr[0], pr[1]
		}
		fmt.Printf("%-4d %-32s %-9s %s %4d %-10s %s\n",
			g.ID, clip(g.Title, 32), string(g.Category),
			statusCell(string(g.Status), goalStatusColor(g.Status)),
			g.Priority, dateCell(g.TargetDate), progressBar(done, total))
	}
}

// Dashboard renders the full metrics view for a set of projects.
func (p *Printer) Dashboard(reports []*metrics.ProjectReport) {
	for i, r := range reports {
		if i > 0 {
			fmt.Println()
		}
		p.projectDashboard(r)
	}
}

func (p *Printer) projectDashboard(r *metrics.ProjectReport) {
	fmt.Printf(bold+cyan+"── %s ──"+reset+"  health %s (%s)\n",
		r.Project.Name, scoreCell(r.HealthScore), healthCell(r.HealthBand))
	open := r.TodoCounts[store.TodoOpen]
	inProg := r.TodoCounts[store.TodoInProgress]
	blocked := r.TodoCounts[store.TodoBlocked]
	done := r.TodoCounts[store.TodoCompleted]
	fmt.Printf("  todos: %d open, %s, %s, %d done  ·  completion %.0f%%\n",
		open,
		colorIf(inProg > 0, blue, fmt.Sprintf("%d in progress", inProg)),
		colorIf(blocked > 0, yellow, fmt.Sprintf("%d blocked", blocked)),
		done, 100*r.CompletionRate)
	fmt.Printf("  velocity: %.2f/day  trend %s  ·  %d commit(s) in 30d\n",
		r.Velocity, sparkline(r.VelocityTrend), r.RecentCommits)

	if len(r.Overdue) > 0 {
		fmt.Printf("  "+red+bold+"overdue (%d):"+reset+"\n", len(r.Overdue))
		for _, t := range r.Overdue {
			fmt.Printf("    "+red+"!"+reset+" #%-4d %-40s due %s\n",
				t.ID, clip(t.Title, 40), dateCell(t.DueDate))
		}
	}
	if len(r.Upcoming) > 0 {
		fmt.Printf("  upcoming (%d):\n", len(r.Upcoming))
		for i, t := range r.Upcoming {
			if i == 5 {
				fmt.Printf(dim+"    … %d more\n"+reset, len(r.Upcoming)-5)
				break
			}
			fmt.Printf("    · #%-4d %-40s due %s\n", t.ID, clip(t.Title, 40), dateCell(t.DueDate))
		}
	}
	for _, g := range r.Goals {
		if g.Goal.Status != store.GoalActive || g.TotalTodo == 0 {
			continue
		}
		fmt.Printf("  %s %s %d/%d%s\n",
			progressBar(g.CompletedTodo, g.TotalTodo), clip(g.Goal.Title, 32),
			g.CompletedTodo, g.TotalTodo, onTrack(g))
	}
}

// CommitList shows recent commits, newest first, with linked todo refs.
func (p *Printer) CommitList(commits []store.Commit) {
	if len(commits) == 0 {
		return
	}
	fmt.Printf(bold + "recent commits\n" + reset)
	for _, c := range commits {
		subject, _, _ := strings.Cut(c.Message, "\n")
		refs := ""
		if len(c.LinkedTodoIDs) > 0 {
			refs = "  " + blockedCell(c.LinkedTodoIDs)
		}
		fmt.Printf("  %s %-50s %s%s\n",
			yellow+c.ShortHash()+reset, clip(subject, 50),
			dim+RelativeTime(c.CommittedAt, time.Now())+reset, refs)
	}
}

// MetricHistory renders a project's recorded daily samples of one metric
// as a sparkline with the latest value.
func (p *Printer) MetricHistory(project string, samples []store.MetricSample) {
	if len(samples) == 0 {
		fmt.Printf("%-24s %s\n", clip(project, 24), dim+"no recorded history"+reset)
		return
	}
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	last := samples[len(samples)-1]
	fmt.Printf("%-24s %s  %s  %s\n", clip(project, 24), sparkline(values),
		scoreCell(last.Value), dim+last.RecordedOn.Format("2006-01-02")+reset)
}

// SyncResult reports one project's commit ingestion.
func (p *Printer) SyncResult(name string, newCommits, linked, completed, skipped int) {
	if newCommits == 0 {
		fmt.Fprintf(os.Stderr, dim+"  %s: up to date"+reset+"\n", name)
		return
	}
	line := fmt.Sprintf("  %s: %d new commit(s), %d link(s)", name, newCommits, linked)
	if completed > 0 {
		line += green + fmt.Sprintf(", %d completed", completed) + reset
	}
	if skipped > 0 {
		line += yellow + fmt.Sprintf(", %d ref(s) skipped", skipped) + reset
	}
	fmt.Fprintln(os.Stderr, line)
}

// RelativeTime formats a timestamp relative to now ("3d ago"). Zero
// timestamps render as "never".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func onTrack(g metrics.GoalReport) string {
	if g.Goal.TargetDate.IsZero() || g.CompletedTodo == g.TotalTodo {
		return ""
	}
	if g.OnTrack {
		return green + " on track" + reset
	}
	return red + " at risk" + reset
}

// progressBar renders a 10-cell bar like ▰▰▰▰▱▱▱▱▱▱.
func progressBar(done, total int) string {
	const cells = 10
	filled := 0
	if total > 0 {
		filled = done * cells / total
	}
	return green + strings.Repeat("▰", filled) + reset +
		dim + strings.Repeat("▱", cells-filled) + reset
}

// sparkline renders velocity buckets as block glyphs scaled to the max.
func sparkline(trend []float64) string {
	glyphs := []rune("▁▂▃▄▅▆▇█")
	max := 0.0
	for _, v := range trend {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return dim + strings.Repeat("▁", len(trend)) + reset
	}
	var b strings.Builder
	for _, v := range trend {
		b.WriteRune(glyphs[int(v/max*float64(len(glyphs)-1))])
	}
	return cyan + b.String() + reset
}

func scoreCell(score float64) string {
	color := dim
	switch {
	case score >= 80:
		color = red + bold
	case score >= 60:
		color = yellow
	case score >= 40:
		color = reset
	}
	return fmt.Sprintf("%s%5.1f%s", color, score, reset)
}

func healthCell(band string) string {
	switch band {
	case "Excellent", "Good":
		return green + band + reset
	case "Fair":
		return yellow + band + reset
	default:
		return red + band + reset
	}
}

func statusCell(status string, color string) string {
	return fmt.Sprintf("%s%-12s%s", color, status, reset)
}

func todoStatusColor(s store.TodoStatus) string {
	switch s {
	case store.TodoInProgress:
		return blue
	case store.TodoBlocked:
		return yellow
	case store.TodoCompleted:
		return green
	}
	return reset
}

func goalStatusColor(s store.GoalStatus) string {
	switch s {
	case store.GoalActive:
		return reset
	case store.GoalCompleted:
		return green
	}
	return dim
}

func projectStatusColor(s store.ProjectStatus) string {
	switch s {
	case store.ProjectActive:
		return reset
	case store.ProjectPaused:
		return yellow
	}
	return dim
}

func colorIf(cond bool, color, s string) string {
	if cond {
		return color + s + reset
	}
	return dim + s + reset
}

func dateCell(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func blockedCell(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return yellow + strings.Join(parts, ",") + reset
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
