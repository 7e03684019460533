// Package pipeline dispatches finalized sessions onto a worker pool and runs
// each through analysis, synthesis and ranking into the backlog. Dispatch is
// fire-and-forget relative to the logout path; completion is observable via
// an optional hook and the self-instrumentation counters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/metrics"
	"github.com/lumenforge/insight/internal/models"
	"github.com/lumenforge/insight/internal/research"
	"github.com/lumenforge/insight/internal/retry"
	"github.com/lumenforge/insight/internal/session"
)

// Synthesizer is the slice of the research synthesizer the pipeline drives.
type Synthesizer interface {
	Synthesize(ctx context.Context, painPoints []models.PainPoint) ([]models.Suggestion, error)
}

// Backlog receives ranked suggestions.
type Backlog interface {
	Insert(ctx context.Context, suggestions []models.Suggestion) ([]models.Suggestion, error)
}

// SessionLog tracks analyzed sessions and unresolved pain.
type SessionLog interface {
	RecordAnalysis(ctx context.Context, rec models.SessionRecord, painPoints int) (bool, error)
	MarkUnresolved(ctx context.Context, userID string, category models.PainCategory) error
}

// Config holds the worker pool sizing.
type Config struct {
	Workers   int
	QueueSize int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueSize: 64}
}

// Pipeline is the analysis worker pool.
type Pipeline struct {
	cfg         Config
	analyzer    *session.Analyzer
	synthesizer Synthesizer
	backlog     Backlog
	sessions    SessionLog
	metrics     *metrics.Metrics
	logger      zerolog.Logger

	queue chan models.SessionRecord
	wg    sync.WaitGroup

	// OnDone, when set, observes each session's completion. Called with a
	// nil error for analyzed and skipped-duplicate sessions alike.
	OnDone func(sessionID string, err error)
}

// New creates a pipeline. m may be nil.
func New(cfg Config, analyzer *session.Analyzer, synthesizer Synthesizer, backlog Backlog, sessions SessionLog, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	return &Pipeline{
		cfg:         cfg,
		analyzer:    analyzer,
		synthesizer: synthesizer,
		backlog:     backlog,
		sessions:    sessions,
		metrics:     m,
		logger:      logger.With().Str("component", "pipeline").Logger(),
		queue:       make(chan models.SessionRecord, cfg.QueueSize),
	}
}

// Start launches the worker goroutines.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logger.Info().Int("workers", p.cfg.Workers).Msg("analysis pipeline started")
}

// Wait blocks until all workers exit (after ctx cancellation).
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Dispatch enqueues one finalized session. Never blocks the caller: a full
// queue returns an error instead.
func (p *Pipeline) Dispatch(rec models.SessionRecord) error {
	select {
	case p.queue <- rec:
		return nil
	default:
		if p.metrics != nil {
			p.metrics.DroppedUnits.WithLabelValues("session").Inc()
		}
		return fmt.Errorf("analysis queue is full, session %s dropped", rec.ID)
	}
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-p.queue:
			err := p.process(ctx, rec)
			if err != nil {
				p.logger.Error().Err(err).Str("session_id", rec.ID).Int("worker", id).Msg("session processing failed")
			}
			if p.OnDone != nil {
				p.OnDone(rec.ID, err)
			}
		}
	}
}

// process runs one session through the full loop. Failures are isolated: a
// bad session never affects another's analysis.
func (p *Pipeline) process(ctx context.Context, rec models.SessionRecord) error {
	painPoints, err := p.analyzer.Analyze(rec)
	if err != nil {
		if errors.Is(err, improverr.ErrInvalidSession) {
			p.count("invalid")
			p.logger.Warn().Str("session_id", rec.ID).Err(err).Msg("invalid session skipped")
			return nil
		}
		p.count("failed")
		return err
	}

	inserted, err := p.sessions.RecordAnalysis(ctx, rec, len(painPoints))
	if err != nil {
		p.count("failed")
		return err
	}
	if !inserted {
		p.count("duplicate")
		p.logger.Debug().Str("session_id", rec.ID).Msg("session already analyzed, skipped")
		return nil
	}
	p.count("analyzed")

	for _, pp := range painPoints {
		if p.metrics != nil {
			p.metrics.PainPointsTotal.WithLabelValues(string(pp.Category)).Inc()
		}
		if err := p.sessions.MarkUnresolved(ctx, pp.UserID, pp.Category); err != nil {
			p.logger.Warn().Err(err).Msg("failed to mark unresolved pain")
		}
	}
	if len(painPoints) == 0 {
		return nil
	}

	suggestions, err := p.synthesizer.Synthesize(ctx, painPoints)
	if err != nil {
		if errors.Is(err, improverr.ErrAllSourcesUnavailable) {
			// Pain is recorded as unresolved; the next cycle retries it.
			p.logger.Warn().Str("session_id", rec.ID).Msg("all sources unavailable, synthesis deferred")
			return nil
		}
		return err
	}
	if len(suggestions) == 0 {
		return nil
	}

	research.Rank(suggestions)
	err = retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		_, insertErr := p.backlog.Insert(ctx, suggestions)
		return insertErr
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.DroppedUnits.WithLabelValues("suggestions").Inc()
		}
		return fmt.Errorf("backlog insert dropped after retries: %w", err)
	}
	return nil
}

func (p *Pipeline) count(outcome string) {
	if p.metrics != nil {
		p.metrics.SessionsAnalyzed.WithLabelValues(outcome).Inc()
	}
}
