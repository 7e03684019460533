package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

// Knowledge is the problem-signature → solution store with a decaying
// effectiveness estimate.
type Knowledge struct {
	s        *Store
	alpha    float64       // EMA learning rate
	halfLife time.Duration // recency decay half-life
	logger   zerolog.Logger
}

// NewKnowledge creates a knowledge store over the shared database.
func NewKnowledge(s *Store, alpha float64, halfLife time.Duration, logger zerolog.Logger) *Knowledge {
	return &Knowledge{
		s:        s,
		alpha:    alpha,
		halfLife: halfLife,
		logger:   logger.With().Str("component", "knowledge").Logger(),
	}
}

const learningColumns = `signature, solution, title, category, effectiveness, times_used, times_succeeded, last_used, created_at`

// Lookup returns the entry for signature, or nil when no entry exists.
func (k *Knowledge) Lookup(ctx context.Context, signature string) (*models.LearningEntry, error) {
	row := k.s.db.QueryRowContext(ctx,
		`SELECT `+learningColumns+` FROM learning_entries WHERE signature = ?`, signature)
	e, err := scanLearningEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, improverr.NewPersistenceError("knowledge lookup", err)
	}
	return e, nil
}

// EffectiveScore applies recency decay at read time: the stored effectiveness
// halves for every halfLife elapsed since last use. History is untouched.
func (k *Knowledge) EffectiveScore(e *models.LearningEntry, now time.Time) float64 {
	if e == nil {
		return 0
	}
	age := now.Sub(e.LastUsed)
	if age <= 0 || k.halfLife <= 0 {
		return e.Effectiveness
	}
	return e.Effectiveness * math.Pow(2, -age.Hours()/k.halfLife.Hours())
}

// Upsert stores a new solution under signature. An existing entry keeps its
// accumulated statistics; only the solution text and title are refreshed.
func (k *Knowledge) Upsert(ctx context.Context, e models.LearningEntry) error {
	now := time.Now()
	if e.LastUsed.IsZero() {
		e.LastUsed = now
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	_, err := k.s.db.ExecContext(ctx, `
		INSERT INTO learning_entries (`+learningColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			solution = excluded.solution,
			title = excluded.title,
			category = excluded.category`,
		e.Signature, e.Solution, e.Title, string(e.Category),
		e.Effectiveness, e.TimesUsed, e.TimesSucceeded,
		e.LastUsed.UnixMilli(), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return improverr.NewPersistenceError("knowledge upsert", err)
	}
	return nil
}

// MarkUsed records a reuse hit: bumps times_used and last_used.
func (k *Knowledge) MarkUsed(ctx context.Context, signature string) error {
	mu := k.s.signatureLock(signature)
	mu.Lock()
	defer mu.Unlock()

	res, err := k.s.db.ExecContext(ctx, `
		UPDATE learning_entries
		SET times_used = times_used + 1, last_used = ?
		WHERE signature = ?`,
		time.Now().UnixMilli(), signature)
	if err != nil {
		return improverr.NewPersistenceError("knowledge mark used", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return improverr.ErrNotFound
	}
	return nil
}

// RecordFeedback applies one success/failure outcome as an atomic
// read-modify-write. Effectiveness moves by alpha toward the outcome and is
// clamped to [0,1]; concurrent feedback on the same signature serializes.
func (k *Knowledge) RecordFeedback(ctx context.Context, signature string, succeeded bool) error {
	mu := k.s.signatureLock(signature)
	mu.Lock()
	defer mu.Unlock()

	tx, err := k.s.db.BeginTx(ctx, nil)
	if err != nil {
		return improverr.NewPersistenceError("feedback begin", err)
	}
	defer tx.Rollback()

	var effectiveness float64
	var timesUsed, timesSucceeded int
	err = tx.QueryRowContext(ctx, `
		SELECT effectiveness, times_used, times_succeeded
		FROM learning_entries WHERE signature = ?`, signature).
		Scan(&effectiveness, &timesUsed, &timesSucceeded)
	if errors.Is(err, sql.ErrNoRows) {
		return improverr.ErrNotFound
	}
	if err != nil {
		return improverr.NewPersistenceError("feedback read", err)
	}

	outcome := 0.0
	if succeeded {
		outcome = 1.0
		timesSucceeded++
	}
	timesUsed++
	effectiveness += k.alpha * (outcome - effectiveness)
	effectiveness = clamp01(effectiveness)

	_, err = tx.ExecContext(ctx, `
		UPDATE learning_entries
		SET effectiveness = ?, times_used = ?, times_succeeded = ?, last_used = ?
		WHERE signature = ?`,
		effectiveness, timesUsed, timesSucceeded, time.Now().UnixMilli(), signature)
	if err != nil {
		return improverr.NewPersistenceError("feedback write", err)
	}
	if err := tx.Commit(); err != nil {
		return improverr.NewPersistenceError("feedback commit", err)
	}

	k.logger.Debug().
		Str("signature", signature).
		Bool("succeeded", succeeded).
		Float64("effectiveness", effectiveness).
		Msg("feedback recorded")
	return nil
}

// TopEntries returns the most effective used entries, for reporting.
func (k *Knowledge) TopEntries(ctx context.Context, limit int) ([]models.LearningEntry, error) {
	rows, err := k.s.db.QueryContext(ctx, `
		SELECT `+learningColumns+` FROM learning_entries
		WHERE times_used > 0
		ORDER BY effectiveness DESC, times_used DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, improverr.NewPersistenceError("knowledge top", err)
	}
	defer rows.Close()

	var out []models.LearningEntry
	for rows.Next() {
		e, err := scanLearningEntry(rows)
		if err != nil {
			return nil, improverr.NewPersistenceError("knowledge scan", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLearningEntry(r rowScanner) (*models.LearningEntry, error) {
	var e models.LearningEntry
	var category string
	var lastUsed, createdAt int64
	if err := r.Scan(&e.Signature, &e.Solution, &e.Title, &category,
		&e.Effectiveness, &e.TimesUsed, &e.TimesSucceeded, &lastUsed, &createdAt); err != nil {
		return nil, err
	}
	e.Category = models.PainCategory(category)
	e.LastUsed = time.UnixMilli(lastUsed)
	e.CreatedAt = time.UnixMilli(createdAt)
	return &e, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
