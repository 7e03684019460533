// Package report builds the once-per-day health report from analyzed
// sessions, the suggestion backlog and the metrics ledger.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/metrics"
	"github.com/lumenforge/insight/internal/models"
	"github.com/lumenforge/insight/internal/retry"
	"github.com/lumenforge/insight/internal/store"
)

// Sessions is the slice of the session log the generator reads.
type Sessions interface {
	StatsBetween(ctx context.Context, from, to time.Time) (models.SessionStats, error)
}

// Backlog is the slice of the suggestion backlog the generator reads.
type Backlog interface {
	TopPending(ctx context.Context, n int) ([]models.Suggestion, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	CountHighPriorityBetween(ctx context.Context, minPriority int, from, to time.Time) (int, error)
	CountImplementedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// Ledger is the slice of the metrics ledger the generator reads.
type Ledger interface {
	StatsBetween(ctx context.Context, from, to time.Time) ([]models.OperationStats, error)
}

// Store persists finished reports.
type Store interface {
	Save(ctx context.Context, report models.DailyReport) error
	Get(ctx context.Context, date string) (*models.DailyReport, error)
}

// Notifier delivers a finished report to the admin channel. Delivery
// failures are logged, never fatal.
type Notifier interface {
	Deliver(ctx context.Context, report models.DailyReport) error
}

// Config holds report-generation knobs.
type Config struct {
	TopN              int     // pending suggestions included in the report
	ImplementedTarget float64 // implemented-per-day count that equals full velocity
	ErrorBudget       int     // daily error count treated as a fully spent budget
}

// DefaultConfig returns the report defaults.
func DefaultConfig() Config {
	return Config{TopN: 5, ImplementedTarget: 5, ErrorBudget: 20}
}

const neutral = 0.5

// Generator builds and persists daily reports. Generation is idempotent per
// date: the same inputs produce the same report, and regeneration overwrites.
type Generator struct {
	cfg      Config
	sessions Sessions
	backlog  Backlog
	ledger   Ledger
	reports  Store
	notifier Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewGenerator creates a report generator. notifier and m may be nil.
func NewGenerator(cfg Config, sessions Sessions, backlog Backlog, ledger Ledger, reports Store, notifier Notifier, m *metrics.Metrics, logger zerolog.Logger) *Generator {
	def := DefaultConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.ImplementedTarget <= 0 {
		cfg.ImplementedTarget = def.ImplementedTarget
	}
	if cfg.ErrorBudget <= 0 {
		cfg.ErrorBudget = def.ErrorBudget
	}
	return &Generator{
		cfg:      cfg,
		sessions: sessions,
		backlog:  backlog,
		ledger:   ledger,
		reports:  reports,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "report").Logger(),
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, generating one report per calendar day
// (for the day that just ended, UTC). A failed run produces no report and is
// retried at the next midnight.
func (g *Generator) Run(ctx context.Context) {
	g.logger.Info().Msg("report generator started")
	for {
		next := nextMidnightUTC(g.now())
		select {
		case <-ctx.Done():
			g.logger.Info().Msg("report generator stopped")
			return
		case <-time.After(next.Sub(g.now())):
			date := next.AddDate(0, 0, -1).Format("2006-01-02")
			if _, err := g.Generate(ctx, date); err != nil {
				g.logger.Error().Err(err).Str("date", date).Msg("daily report failed")
			}
		}
	}
}

// Generate builds, persists and delivers the report for date (YYYY-MM-DD).
// All aggregation happens before anything is written, so a failure leaves no
// partial report.
func (g *Generator) Generate(ctx context.Context, date string) (*models.DailyReport, error) {
	from, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("bad report date %q: %w", date, err)
	}
	to := from.AddDate(0, 0, 1)

	sessionStats, err := g.sessions.StatsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	opStats, err := g.ledger.StatsBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	created, err := g.backlog.CountCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	highPriority, err := g.backlog.CountHighPriorityBetween(ctx, 4, from, to)
	if err != nil {
		return nil, err
	}
	implemented, err := g.backlog.CountImplementedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	top, err := g.backlog.TopPending(ctx, g.cfg.TopN)
	if err != nil {
		return nil, err
	}

	report := models.DailyReport{
		Date:             date,
		Sessions:         sessionStats,
		SuggestionsTotal: created,
		HighPriority:     highPriority,
		HealthScore:      g.healthScore(sessionStats, opStats, implemented),
		TopSuggestions:   top,
		Recommendations:  g.recommendations(sessionStats, top, highPriority),
		GeneratedAt:      g.now(),
	}

	err = retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		return g.reports.Save(ctx, report)
	})
	if err != nil {
		if g.metrics != nil {
			g.metrics.DroppedUnits.WithLabelValues("report").Inc()
		}
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.ReportsGenerated.Inc()
	}

	if g.notifier != nil {
		if err := g.notifier.Deliver(ctx, report); err != nil {
			g.logger.Warn().Err(err).Str("date", date).Msg("report delivery failed")
		}
	}

	g.logger.Info().
		Str("date", date).
		Float64("health", report.HealthScore).
		Int("suggestions", created).
		Msg("daily report generated")
	return &report, nil
}

// healthScore blends success rate, error rate and improvement velocity into
// [0,100]. A term with no data in the window contributes its neutral value,
// so an empty day scores 50 rather than dividing by zero.
func (g *Generator) healthScore(sessions models.SessionStats, ops []models.OperationStats, implemented int) float64 {
	avgSuccess := neutral
	if len(ops) > 0 {
		sum := 0.0
		for _, st := range ops {
			sum += st.SuccessRate
		}
		avgSuccess = sum / float64(len(ops))
	}

	errorRate := neutral
	if sessions.SessionsAnalyzed > 0 {
		errorRate = float64(sessions.ErrorsTotal) / float64(g.cfg.ErrorBudget)
		if errorRate > 1 {
			errorRate = 1
		}
	}

	velocity := neutral
	if sessions.SessionsAnalyzed > 0 || implemented > 0 {
		velocity = float64(implemented) / g.cfg.ImplementedTarget
		if velocity > 1 {
			velocity = 1
		}
	}

	return 100 * (0.5*avgSuccess + 0.3*(1-errorRate) + 0.2*velocity)
}

// recommendations derives admin guidance from threshold rules.
func (g *Generator) recommendations(sessions models.SessionStats, top []models.Suggestion, highPriority int) []string {
	var recs []string

	critical := 0
	for _, sg := range top {
		if sg.Priority == 5 {
			critical++
		}
	}
	if critical >= 1 {
		recs = append(recs, fmt.Sprintf("HIGH: %d high-priority improvements identified. Review and plan implementation.", critical))
	}
	if sessions.ErrorsTotal > 10 {
		recs = append(recs, "HIGH: Error rate is elevated. Review error logs and prioritize bug fixes.")
	}
	if sessions.SessionsAnalyzed > 0 && sessions.MeanDuration < 10*time.Minute {
		recs = append(recs, "MEDIUM: Short session durations. Consider improving user engagement.")
	}
	if highPriority > 5 {
		recs = append(recs, fmt.Sprintf("HIGH: %d high-priority items in today's backlog growth.", highPriority))
	}
	if len(recs) == 0 {
		recs = append(recs, "System performing well. Continue monitoring user sessions.")
	}
	return recs
}

func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

var _ Store = (*store.Reports)(nil)
