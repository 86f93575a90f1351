package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordMetric stores one metric sample, keyed by (project, kind, day).
// Re-recording the same day is a no-op, so a daily snapshot pass is
// idempotent.
func (q *Queries) RecordMetric(ctx context.Context, m MetricSample) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO metrics (project_id, kind, value, recorded_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, kind, recorded_on) DO NOTHING`,
		m.ProjectID, m.Kind, m.Value, m.RecordedOn.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("store: record metric %s: %w", m.Kind, err)
	}
	return nil
}

// MetricHistory returns samples of one kind for a project since the given
// date, oldest first.
func (q *Queries) MetricHistory(ctx context.Context, projectID int64, kind string, since time.Time) ([]MetricSample, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, project_id, kind, value, recorded_on FROM metrics
		WHERE project_id = ? AND kind = ? AND recorded_on >= ?
		ORDER BY recorded_on`,
		projectID, kind, since.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("store: metric history %s: %w", kind, err)
	}
	defer rows.Close()

	var out []MetricSample
	for rows.Next() {
		var m MetricSample
		var on sql.NullString
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Kind, &m.Value, &on); err != nil {
			return nil, fmt.Errorf("store: scan metric: %w", err)
		}
		if m.RecordedOn, err = parseDate(on); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate metrics: %w", err)
	}
	return out, nil
}
