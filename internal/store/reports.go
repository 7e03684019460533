package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

// Reports persists daily reports, keyed by date. A report is written in one
// statement only after generation fully succeeded, so a failed run leaves no
// partial row; regenerating a date overwrites deterministically.
type Reports struct {
	s *Store
}

// NewReports creates a report store over the shared database.
func NewReports(s *Store) *Reports {
	return &Reports{s: s}
}

// Save stores (or replaces) the report for its date.
func (r *Reports) Save(ctx context.Context, report models.DailyReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return improverr.NewPersistenceError("report marshal", err)
	}
	_, err = r.s.db.ExecContext(ctx, `
		INSERT INTO daily_reports (report_date, health_score, payload, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(report_date) DO UPDATE SET
			health_score = excluded.health_score,
			payload = excluded.payload,
			generated_at = excluded.generated_at`,
		report.Date, report.HealthScore, string(payload), report.GeneratedAt.UnixMilli())
	if err != nil {
		return improverr.NewPersistenceError("report save", err)
	}
	return nil
}

// Get returns the report for date (YYYY-MM-DD), or ErrNotFound.
func (r *Reports) Get(ctx context.Context, date string) (*models.DailyReport, error) {
	var payload string
	err := r.s.db.QueryRowContext(ctx,
		`SELECT payload FROM daily_reports WHERE report_date = ?`, date).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, improverr.ErrNotFound
	}
	if err != nil {
		return nil, improverr.NewPersistenceError("report get", err)
	}
	var report models.DailyReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, improverr.NewPersistenceError("report unmarshal", err)
	}
	return &report, nil
}
