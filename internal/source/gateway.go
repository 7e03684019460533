package source

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/metrics"
	"github.com/lumenforge/insight/internal/models"
)

// Result is the per-source outcome of one gateway query: either results or
// a failure, never both.
type Result struct {
	Results []models.ResearchResult
	Err     error
}

// Failed reports whether this source failed.
func (r Result) Failed() bool { return r.Err != nil }

// Gateway fans a query out across sources and fans results back in,
// tolerating partial failure.
type Gateway struct {
	registry *Registry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	limit    int
}

// NewGateway creates a gateway over the registry. m may be nil.
func NewGateway(registry *Registry, limit int, m *metrics.Metrics, logger zerolog.Logger) *Gateway {
	if limit <= 0 {
		limit = 5
	}
	return &Gateway{
		registry: registry,
		metrics:  m,
		limit:    limit,
		logger:   logger.With().Str("component", "source.gateway").Logger(),
	}
}

// Query runs the problem text against the given sources concurrently. Each
// source gets its own timeout; the overall timeout bounds total wall time.
// Partial results are a valid outcome — the returned error is
// ErrAllSourcesUnavailable only when every source failed.
func (g *Gateway) Query(ctx context.Context, problem string, ids []string, perSourceTimeout, overallTimeout time.Duration) (map[string]Result, error) {
	if len(ids) == 0 {
		ids = g.registry.IDs()
		sort.Strings(ids)
	}

	overallCtx, cancel := context.WithTimeout(ctx, overallTimeout)
	defer cancel()

	type sourceOutcome struct {
		id  string
		res Result
	}
	outcomes := make(chan sourceOutcome, len(ids))

	for _, id := range ids {
		src, ok := g.registry.Get(id)
		if !ok {
			outcomes <- sourceOutcome{id: id, res: Result{
				Err: &improverr.SourceError{SourceID: id, Err: improverr.ErrNotFound},
			}}
			continue
		}
		go func(id string, src Source) {
			outcomes <- sourceOutcome{id: id, res: g.querySource(overallCtx, src, problem, perSourceTimeout)}
		}(id, src)
	}

	results := make(map[string]Result, len(ids))
collect:
	for range ids {
		select {
		case o := <-outcomes:
			results[o.id] = o.res
		case <-overallCtx.Done():
			// A Source that ignores its context never sends; stop waiting
			// at the deadline. Stragglers drain into the buffered channel.
			break collect
		}
	}
	for _, id := range ids {
		if _, ok := results[id]; !ok {
			results[id] = Result{
				Err: &improverr.SourceError{SourceID: id, Err: improverr.ErrSourceTimeout},
			}
		}
	}

	failures := 0
	for _, r := range results {
		if r.Failed() {
			failures++
		}
	}
	if failures == len(results) && len(results) > 0 {
		return results, improverr.ErrAllSourcesUnavailable
	}
	return results, nil
}

func (g *Gateway) querySource(ctx context.Context, src Source, problem string, timeout time.Duration) Result {
	srcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	found, err := src.Search(srcCtx, problem, g.limit)
	elapsed := time.Since(start)

	if g.metrics != nil {
		g.metrics.SourceLatency.WithLabelValues(src.ID()).Observe(elapsed.Seconds())
	}

	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
			err = &improverr.SourceError{SourceID: src.ID(), Err: improverr.ErrSourceTimeout}
		} else {
			err = &improverr.SourceError{SourceID: src.ID(), Err: err}
		}
		if g.metrics != nil {
			g.metrics.SourceQueries.WithLabelValues(src.ID(), status).Inc()
		}
		g.logger.Warn().
			Str("source", src.ID()).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("source query failed")
		return Result{Err: err}
	}

	for i := range found {
		found[i].Source = src.ID()
		found[i].Relevance = Relevance(problem, found[i].Title+" "+found[i].Snippet)
	}
	if g.metrics != nil {
		g.metrics.SourceQueries.WithLabelValues(src.ID(), "ok").Inc()
	}
	return Result{Results: found}
}
