package store

import (
	"context"
	"time"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

// SessionLog records which sessions were analyzed (a session is analyzed at
// most once) together with the per-session aggregates the report generator
// consumes. It also tracks unresolved pain categories per user, which feed
// the analyzer's severity weighting.
type SessionLog struct {
	s *Store
}

// NewSessionLog creates a session log over the shared database.
func NewSessionLog(s *Store) *SessionLog {
	return &SessionLog{s: s}
}

// RecordAnalysis marks the session as analyzed. Returns false when the
// session was already recorded, in which case nothing is written —
// re-delivery from the session-tracking collaborator is harmless.
func (sl *SessionLog) RecordAnalysis(ctx context.Context, rec models.SessionRecord, painPoints int) (bool, error) {
	res, err := sl.s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO analyzed_sessions
			(session_id, user_id, duration_ms, actions_taken, assets_created, errors_encountered, pain_points, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.EndedAt.Sub(rec.StartedAt).Milliseconds(),
		len(rec.Actions), rec.AssetsCreated, len(rec.Errors), painPoints,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return false, improverr.NewPersistenceError("session record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, improverr.NewPersistenceError("session record", err)
	}
	return n > 0, nil
}

// WasAnalyzed reports whether the session id has been analyzed before.
func (sl *SessionLog) WasAnalyzed(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := sl.s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analyzed_sessions WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, improverr.NewPersistenceError("session check", err)
	}
	return n > 0, nil
}

// StatsBetween aggregates analyzed sessions in [from, to).
func (sl *SessionLog) StatsBetween(ctx context.Context, from, to time.Time) (models.SessionStats, error) {
	var st models.SessionStats
	var meanDurMS *float64
	var assets, errs *int
	err := sl.s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(duration_ms), SUM(assets_created), SUM(errors_encountered)
		FROM analyzed_sessions
		WHERE analyzed_at >= ? AND analyzed_at < ?`,
		from.UnixMilli(), to.UnixMilli()).
		Scan(&st.SessionsAnalyzed, &meanDurMS, &assets, &errs)
	if err != nil {
		return st, improverr.NewPersistenceError("session stats", err)
	}
	if meanDurMS != nil {
		st.MeanDuration = time.Duration(*meanDurMS * float64(time.Millisecond))
	}
	if assets != nil {
		st.AssetsCreated = *assets
	}
	if errs != nil {
		st.ErrorsTotal = *errs
	}
	return st, nil
}

// MarkUnresolved upserts an unresolved pain category for the user.
func (sl *SessionLog) MarkUnresolved(ctx context.Context, userID string, category models.PainCategory) error {
	_, err := sl.s.db.ExecContext(ctx, `
		INSERT INTO unresolved_pain (user_id, category, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, category) DO UPDATE SET last_seen = excluded.last_seen`,
		userID, string(category), time.Now().UnixMilli())
	if err != nil {
		return improverr.NewPersistenceError("unresolved mark", err)
	}
	return nil
}

// HasUnresolved reports whether the user has a prior unresolved pain point in
// the given category.
func (sl *SessionLog) HasUnresolved(ctx context.Context, userID string, category models.PainCategory) (bool, error) {
	var n int
	err := sl.s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM unresolved_pain WHERE user_id = ? AND category = ?`,
		userID, string(category)).Scan(&n)
	if err != nil {
		return false, improverr.NewPersistenceError("unresolved check", err)
	}
	return n > 0, nil
}
