package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

// Backlog is the durable suggestion backlog. Suggestions are never deleted;
// the terminal state is archived.
type Backlog struct {
	s *Store
}

// NewBacklog creates a backlog over the shared database.
func NewBacklog(s *Store) *Backlog {
	return &Backlog{s: s}
}

// validTransitions encodes the approval workflow. Any state may be archived.
var validTransitions = map[models.SuggestionStatus][]models.SuggestionStatus{
	models.StatusPending:     {models.StatusApproved, models.StatusRejected, models.StatusArchived},
	models.StatusApproved:    {models.StatusImplemented, models.StatusRejected, models.StatusArchived},
	models.StatusImplemented: {models.StatusArchived},
	models.StatusRejected:    {models.StatusArchived},
}

const suggestionColumns = `id, category, title, description, plan, priority, expected_impact, effort_estimate, status, severity, source_ref, confidence, created_at`

// Insert persists a batch of suggestions. Missing IDs and timestamps are
// filled in; the stored slice is returned.
func (b *Backlog) Insert(ctx context.Context, suggestions []models.Suggestion) ([]models.Suggestion, error) {
	if len(suggestions) == 0 {
		return nil, nil
	}
	tx, err := b.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, improverr.NewPersistenceError("backlog begin", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for i := range suggestions {
		sg := &suggestions[i]
		if sg.ID == "" {
			sg.ID = uuid.New().String()
		}
		if sg.Status == "" {
			sg.Status = models.StatusPending
		}
		if sg.CreatedAt.IsZero() {
			sg.CreatedAt = now
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO suggestions (`+suggestionColumns+`, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sg.ID, string(sg.Category), sg.Title, sg.Description, sg.Plan,
			sg.Priority, string(sg.ExpectedImpact), string(sg.EffortEstimate),
			string(sg.Status), sg.Severity, sg.SourceRef, sg.Confidence,
			sg.CreatedAt.UnixMilli(), sg.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return nil, improverr.NewPersistenceError("backlog insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, improverr.NewPersistenceError("backlog commit", err)
	}
	return suggestions, nil
}

// Get returns one suggestion by id.
func (b *Backlog) Get(ctx context.Context, id string) (*models.Suggestion, error) {
	row := b.s.db.QueryRowContext(ctx,
		`SELECT `+suggestionColumns+` FROM suggestions WHERE id = ?`, id)
	sg, err := scanSuggestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, improverr.ErrNotFound
	}
	if err != nil {
		return nil, improverr.NewPersistenceError("backlog get", err)
	}
	return sg, nil
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Status      models.SuggestionStatus
	Category    models.PainCategory
	MinPriority int
	Limit       int
}

// List returns backlog suggestions matching the filter, highest priority first.
func (b *Backlog) List(ctx context.Context, f Filter) ([]models.Suggestion, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(f.Category))
	}
	if f.MinPriority > 0 {
		where = append(where, "priority >= ?")
		args = append(args, f.MinPriority)
	}

	query := `SELECT ` + suggestionColumns + ` FROM suggestions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY priority DESC, severity DESC, created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := b.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, improverr.NewPersistenceError("backlog list", err)
	}
	defer rows.Close()

	var out []models.Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, improverr.NewPersistenceError("backlog scan", err)
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// UpdateStatus applies an approval-workflow transition. Invalid transitions
// return ErrInvalidTransition; unknown ids return ErrNotFound.
func (b *Backlog) UpdateStatus(ctx context.Context, id string, next models.SuggestionStatus) error {
	tx, err := b.s.db.BeginTx(ctx, nil)
	if err != nil {
		return improverr.NewPersistenceError("status begin", err)
	}
	defer tx.Rollback()

	var current, category string
	err = tx.QueryRowContext(ctx,
		`SELECT status, category FROM suggestions WHERE id = ?`, id).Scan(&current, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return improverr.ErrNotFound
	}
	if err != nil {
		return improverr.NewPersistenceError("status read", err)
	}

	if !transitionAllowed(models.SuggestionStatus(current), next) {
		return fmt.Errorf("%w: %s -> %s", improverr.ErrInvalidTransition, current, next)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE suggestions SET status = ?, updated_at = ? WHERE id = ?`,
		string(next), time.Now().UnixMilli(), id)
	if err != nil {
		return improverr.NewPersistenceError("status write", err)
	}

	// Shipping the remedy resolves the category: users stop carrying the
	// prior-pain severity boost for it.
	if next == models.StatusImplemented {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM unresolved_pain WHERE category = ?`, category)
		if err != nil {
			return improverr.NewPersistenceError("unresolved clear", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return improverr.NewPersistenceError("status commit", err)
	}
	return nil
}

func transitionAllowed(from, to models.SuggestionStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TopPending returns the n highest-priority pending suggestions.
func (b *Backlog) TopPending(ctx context.Context, n int) ([]models.Suggestion, error) {
	return b.List(ctx, Filter{Status: models.StatusPending, Limit: n})
}

// CountCreatedBetween counts suggestions created in [from, to).
func (b *Backlog) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return b.countWhere(ctx,
		`created_at >= ? AND created_at < ?`, from.UnixMilli(), to.UnixMilli())
}

// CountHighPriorityBetween counts suggestions at or above minPriority created in [from, to).
func (b *Backlog) CountHighPriorityBetween(ctx context.Context, minPriority int, from, to time.Time) (int, error) {
	return b.countWhere(ctx,
		`priority >= ? AND created_at >= ? AND created_at < ?`,
		minPriority, from.UnixMilli(), to.UnixMilli())
}

// CountImplementedBetween counts suggestions whose last transition landed on
// implemented inside [from, to). Feeds improvement velocity.
func (b *Backlog) CountImplementedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return b.countWhere(ctx,
		`status = ? AND updated_at >= ? AND updated_at < ?`,
		string(models.StatusImplemented), from.UnixMilli(), to.UnixMilli())
}

func (b *Backlog) countWhere(ctx context.Context, where string, args ...any) (int, error) {
	var n int
	err := b.s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suggestions WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, improverr.NewPersistenceError("backlog count", err)
	}
	return n, nil
}

func scanSuggestion(r rowScanner) (*models.Suggestion, error) {
	var sg models.Suggestion
	var category, impact, effort, status string
	var createdAt int64
	if err := r.Scan(&sg.ID, &category, &sg.Title, &sg.Description, &sg.Plan,
		&sg.Priority, &impact, &effort, &status, &sg.Severity,
		&sg.SourceRef, &sg.Confidence, &createdAt); err != nil {
		return nil, err
	}
	sg.Category = models.PainCategory(category)
	sg.ExpectedImpact = models.Impact(impact)
	sg.EffortEstimate = models.Impact(effort)
	sg.Status = models.SuggestionStatus(status)
	sg.CreatedAt = time.UnixMilli(createdAt)
	return &sg, nil
}
