// Package report persists and renders workspace-level metric reports.
// The TOML snapshot file keeps the latest full report plus a capped
// history of condensed summaries, so trends survive across invocations
// without querying the store; the Markdown renderer produces a shareable
// view of the same projection.
package report

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/hadronlab/orbit/internal/metrics"
	"github.com/hadronlab/orbit/internal/store"
)

// maxHistoryEntries is the maximum number of previous report summaries kept.
const maxHistoryEntries = 10

// reportFile is the TOML-serializable representation of the report file.
type reportFile struct {
	Current reportRecord     `toml:"current"`
	History []historySummary `toml:"history"`
}

// reportRecord is one full workspace report.
type reportRecord struct {
	GeneratedAt time.Time       `toml:"generated_at"`
	Projects    []projectRecord `toml:"projects"`
}

// projectRecord is the TOML-serializable form of one project's metrics.
type projectRecord struct {
	Name           string    `toml:"name"`
	HealthScore    float64   `toml:"health_score"`
	HealthBand     string    `toml:"health_band"`
	CompletionRate float64   `toml:"completion_rate"`
	Velocity       float64   `toml:"velocity"`
	VelocityTrend  []float64 `toml:"velocity_trend"`
	TodosOpen      int       `toml:"todos_open"`
	TodosCompleted int       `toml:"todos_completed"`
	Overdue        int       `toml:"overdue"`
	Blocked        int       `toml:"blocked"`
}

// historySummary is a condensed record of a previous report.
type historySummary struct {
	GeneratedAt    time.Time `toml:"generated_at"`
	Projects       int       `toml:"projects"`
	MeanHealth     float64   `toml:"mean_health"`
	TodosOpen      int       `toml:"todos_open"`
	TodosCompleted int       `toml:"todos_completed"`
}

// Save writes the report snapshot to path. An existing file's current
// section is rotated into the history array, capped at maxHistoryEntries
// most recent entries. The write is atomic (temp file + rename).
func Save(path string, reports []*metrics.ProjectReport, generatedAt time.Time) error {
	existing, err := loadReportFile(path)
	if err != nil {
		return err
	}

	var history []historySummary
	if existing != nil {
		history = append(existing.History, summarize(existing.Current))
	}
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}

	file := reportFile{
		Current: toRecord(reports, generatedAt),
		History: history,
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("report: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: rename into place: %w", err)
	}
	return nil
}

// History returns the saved report summaries, oldest first. A missing
// file yields an empty slice.
func History(path string) ([]Summary, error) {
	file, err := loadReportFile(path)
	if err != nil || file == nil {
		return nil, err
	}
	out := make([]Summary, len(file.History))
	for i, h := range file.History {
		out[i] = Summary{
			GeneratedAt:    h.GeneratedAt,
			Projects:       h.Projects,
			MeanHealth:     h.MeanHealth,
			TodosOpen:      h.TodosOpen,
			TodosCompleted: h.TodosCompleted,
		}
	}
	return out, nil
}

// Summary is an exported condensed record of a previous report.
type Summary struct {
	GeneratedAt    time.Time
	Projects       int
	MeanHealth     float64
	TodosOpen      int
	TodosCompleted int
}

// loadReportFile reads and parses the raw report file. Returns nil, nil
// if the file does not exist.
func loadReportFile(path string) (*reportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	var file reportFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", path, err)
	}
	return &file, nil
}

func toRecord(reports []*metrics.ProjectReport, generatedAt time.Time) reportRecord {
	rec := reportRecord{GeneratedAt: generatedAt}
	for _, r := range reports {
		open := r.TodoCounts[store.TodoOpen] + r.TodoCounts[store.TodoInProgress] + r.TodoCounts[store.TodoBlocked]
		rec.Projects = append(rec.Projects, projectRecord{
			Name:           r.Project.Name,
			HealthScore:    r.HealthScore,
			HealthBand:     r.HealthBand,
			CompletionRate: r.CompletionRate,
			Velocity:       r.Velocity,
			VelocityTrend:  r.VelocityTrend,
			TodosOpen:      open,
			TodosCompleted: r.TodoCounts[store.TodoCompleted],
			Overdue:        len(r.Overdue),
			Blocked:        r.TodoCounts[store.TodoBlocked],
		})
	}
	return rec
}

func summarize(r reportRecord) historySummary {
	s := historySummary{GeneratedAt: r.GeneratedAt, Projects: len(r.Projects)}
	for _, p := range r.Projects {
		s.MeanHealth += p.HealthScore
		s.TodosOpen += p.TodosOpen
		s.TodosCompleted += p.TodosCompleted
	}
	if len(r.Projects) > 0 {
		s.MeanHealth /= float64(len(r.Projects))
	}
	return s
}
