// Package reflection periodically assesses aggregate operational health from
// the metrics ledger and emits suggestions for weak operation types.
package reflection

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/metrics"
	"github.com/lumenforge/insight/internal/models"
	"github.com/lumenforge/insight/internal/research"
	"github.com/lumenforge/insight/internal/retry"
)

// Ledger is the slice of the metrics ledger the engine reads.
type Ledger interface {
	StatsBetween(ctx context.Context, from, to time.Time) ([]models.OperationStats, error)
}

// Backlog receives the suggestions a reflection run produces.
type Backlog interface {
	Insert(ctx context.Context, suggestions []models.Suggestion) ([]models.Suggestion, error)
}

// Config holds reflection thresholds and scheduling.
type Config struct {
	Interval        time.Duration // how often to reflect
	Window          time.Duration // trailing metrics window per run
	WeakSuccessRate float64       // success rate below this flags the operation
	WeakQuality     float64       // mean quality below this flags the operation
}

// DefaultConfig returns the reflection defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        time.Hour,
		Window:          24 * time.Hour,
		WeakSuccessRate: 0.75,
		WeakQuality:     0.7,
	}
}

// Health summarizes one reflection window.
type Health struct {
	From    time.Time               `json:"from"`
	To      time.Time               `json:"to"`
	Stats   []models.OperationStats `json:"stats"`
	WeakOps []string                `json:"weak_ops"`
}

// Engine runs reflection on a fixed period. At most one run is in flight;
// a tick that arrives while a run is executing is skipped, never queued.
type Engine struct {
	cfg     Config
	ledger  Ledger
	backlog Backlog
	metrics *metrics.Metrics
	logger  zerolog.Logger
	running atomic.Bool
	now     func() time.Time
}

// NewEngine creates a reflection engine. m may be nil.
func NewEngine(cfg Config, ledger Ledger, backlog Backlog, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.WeakSuccessRate == 0 {
		cfg.WeakSuccessRate = def.WeakSuccessRate
	}
	if cfg.WeakQuality == 0 {
		cfg.WeakQuality = def.WeakQuality
	}
	return &Engine{
		cfg:     cfg,
		ledger:  ledger,
		backlog: backlog,
		metrics: m,
		logger:  logger.With().Str("component", "reflection").Logger(),
		now:     time.Now,
	}
}

// Run blocks until ctx is cancelled, reflecting once per interval.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.cfg.Interval).Msg("reflection engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("reflection engine stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one reflection unless a previous run is still executing.
func (e *Engine) tick(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.count("skipped")
		e.logger.Warn().Msg("previous reflection still running, tick skipped")
		return
	}
	defer e.running.Store(false)

	now := e.now()
	health, suggestions, err := e.Reflect(ctx, now.Add(-e.cfg.Window), now)
	if err != nil {
		e.count("failed")
		e.logger.Error().Err(err).Msg("reflection run failed")
		return
	}
	if len(suggestions) > 0 {
		err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
			_, insertErr := e.backlog.Insert(ctx, suggestions)
			return insertErr
		})
		if err != nil {
			e.count("failed")
			e.logger.Error().Err(err).Msg("failed to persist reflection suggestions")
			return
		}
	}
	e.count("completed")
	e.logger.Info().
		Int("operation_types", len(health.Stats)).
		Int("weak_ops", len(health.WeakOps)).
		Int("suggestions", len(suggestions)).
		Msg("reflection completed")
}

// Reflect aggregates the ledger window and builds one ranked suggestion per
// weak operation type.
func (e *Engine) Reflect(ctx context.Context, from, to time.Time) (Health, []models.Suggestion, error) {
	stats, err := e.ledger.StatsBetween(ctx, from, to)
	if err != nil {
		return Health{}, nil, fmt.Errorf("aggregate metrics: %w", err)
	}

	health := Health{From: from, To: to, Stats: stats}
	var suggestions []models.Suggestion
	for _, st := range stats {
		sg, weak := e.assess(st, to)
		if !weak {
			continue
		}
		health.WeakOps = append(health.WeakOps, st.OperationType)
		suggestions = append(suggestions, sg)
	}
	return health, research.Rank(suggestions), nil
}

// assess flags an operation type as weak and shapes its suggestion.
func (e *Engine) assess(st models.OperationStats, at time.Time) (models.Suggestion, bool) {
	lowSuccess := st.SuccessRate < e.cfg.WeakSuccessRate
	lowQuality := st.MeanQuality < e.cfg.WeakQuality
	if !lowSuccess && !lowQuality {
		return models.Suggestion{}, false
	}

	category := models.CategoryPerformance
	severity := 1 - st.MeanQuality
	detail := fmt.Sprintf("mean quality %.2f below %.2f", st.MeanQuality, e.cfg.WeakQuality)
	if lowSuccess {
		category = models.CategoryReliability
		severity = 1 - st.SuccessRate
		detail = fmt.Sprintf("success rate %.2f below %.2f", st.SuccessRate, e.cfg.WeakSuccessRate)
	}
	if severity < 0 {
		severity = 0
	}

	return models.Suggestion{
		Category:       category,
		Title:          fmt.Sprintf("Stabilize %s", st.OperationType),
		Description:    fmt.Sprintf("Operation %q is weak: %s over %d runs.", st.OperationType, detail, st.Total),
		Plan:           fmt.Sprintf("Investigate recent %s failures, add targeted error handling, and re-measure over the next window.", st.OperationType),
		ExpectedImpact: models.ImpactHigh,
		EffortEstimate: models.ImpactMedium,
		Status:         models.StatusPending,
		Severity:       severity,
		SourceRef:      "reflection:" + st.OperationType,
		CreatedAt:      at,
	}, true
}

func (e *Engine) count(outcome string) {
	if e.metrics != nil {
		e.metrics.ReflectionRuns.WithLabelValues(outcome).Inc()
	}
}
