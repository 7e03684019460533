package store

import (
	"context"
	"time"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

// Ledger is the append-only log of per-operation performance records.
type Ledger struct {
	s *Store
}

// NewLedger creates a metrics ledger over the shared database.
func NewLedger(s *Store) *Ledger {
	return &Ledger{s: s}
}

// Append writes one performance record. Records are never mutated.
func (l *Ledger) Append(ctx context.Context, m models.PerformanceMetric) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	success := 0
	if m.Success {
		success = 1
	}
	_, err := l.s.db.ExecContext(ctx, `
		INSERT INTO performance_metrics (operation_type, duration_ms, success, quality, tokens_used, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.OperationType, m.Duration.Milliseconds(), success, m.Quality, m.TokensUsed,
		m.Timestamp.UnixMilli(),
	)
	if err != nil {
		return improverr.NewPersistenceError("ledger append", err)
	}
	return nil
}

// StatsBetween aggregates records in [from, to) grouped by operation type.
func (l *Ledger) StatsBetween(ctx context.Context, from, to time.Time) ([]models.OperationStats, error) {
	rows, err := l.s.db.QueryContext(ctx, `
		SELECT operation_type, COUNT(*), SUM(success), AVG(duration_ms), AVG(quality)
		FROM performance_metrics
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY operation_type
		ORDER BY operation_type`,
		from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, improverr.NewPersistenceError("ledger stats", err)
	}
	defer rows.Close()

	var out []models.OperationStats
	for rows.Next() {
		var st models.OperationStats
		var meanDurMS, meanQuality float64
		if err := rows.Scan(&st.OperationType, &st.Total, &st.Successes, &meanDurMS, &meanQuality); err != nil {
			return nil, improverr.NewPersistenceError("ledger scan", err)
		}
		if st.Total > 0 {
			st.SuccessRate = float64(st.Successes) / float64(st.Total)
		}
		st.MeanDuration = time.Duration(meanDurMS * float64(time.Millisecond))
		st.MeanQuality = meanQuality
		out = append(out, st)
	}
	return out, rows.Err()
}
