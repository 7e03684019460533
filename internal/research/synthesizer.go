// Package research turns pain points into ranked improvement suggestions.
// It consults the knowledge store first, drives the source gateway for
// unresolved problems, and falls back to raw results when the external
// synthesis capability is unavailable.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/metrics"
	"github.com/lumenforge/insight/internal/models"
	"github.com/lumenforge/insight/internal/source"
	"github.com/lumenforge/insight/internal/synth"
)

// Gateway is the slice of the source gateway the synthesizer needs.
type Gateway interface {
	Query(ctx context.Context, problem string, ids []string, perSourceTimeout, overallTimeout time.Duration) (map[string]source.Result, error)
}

// Knowledge is the slice of the knowledge store the synthesizer needs.
type Knowledge interface {
	Lookup(ctx context.Context, signature string) (*models.LearningEntry, error)
	EffectiveScore(e *models.LearningEntry, now time.Time) float64
	MarkUsed(ctx context.Context, signature string) error
	Upsert(ctx context.Context, e models.LearningEntry) error
}

// Config holds synthesizer thresholds and timeouts.
type Config struct {
	ReuseThreshold   float64 // decayed effectiveness at which a cached solution short-circuits
	DedupThreshold   float64 // title/snippet similarity above which results merge
	PerSourceTimeout time.Duration
	OverallTimeout   time.Duration
	SynthTimeout     time.Duration
}

// DefaultConfig returns the synthesizer defaults.
func DefaultConfig() Config {
	return Config{
		ReuseThreshold:   0.6,
		DedupThreshold:   0.7,
		PerSourceTimeout: 10 * time.Second,
		OverallTimeout:   25 * time.Second,
		SynthTimeout:     30 * time.Second,
	}
}

// Synthesizer merges knowledge-store reuse, external research and the
// synthesis capability into suggestions.
type Synthesizer struct {
	cfg        Config
	gateway    Gateway
	knowledge  Knowledge
	capability synth.Capability // nil means fallback-only
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSynthesizer creates a synthesizer. capability and m may be nil.
func NewSynthesizer(cfg Config, gw Gateway, kb Knowledge, cap synth.Capability, m *metrics.Metrics, logger zerolog.Logger) *Synthesizer {
	if cfg.ReuseThreshold == 0 {
		cfg.ReuseThreshold = DefaultConfig().ReuseThreshold
	}
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = DefaultConfig().DedupThreshold
	}
	if cfg.PerSourceTimeout == 0 {
		cfg.PerSourceTimeout = DefaultConfig().PerSourceTimeout
	}
	if cfg.OverallTimeout == 0 {
		cfg.OverallTimeout = DefaultConfig().OverallTimeout
	}
	if cfg.SynthTimeout == 0 {
		cfg.SynthTimeout = DefaultConfig().SynthTimeout
	}
	return &Synthesizer{
		cfg:        cfg,
		gateway:    gw,
		knowledge:  kb,
		capability: cap,
		metrics:    m,
		logger:     logger.With().Str("component", "synthesizer").Logger(),
		now:        time.Now,
	}
}

// Synthesize produces one suggestion per resolvable pain point, in input
// order. Pain points whose research failed entirely are deferred (skipped
// this pass); ErrAllSourcesUnavailable is returned only when every pain
// point was deferred that way.
func (sy *Synthesizer) Synthesize(ctx context.Context, painPoints []models.PainPoint) ([]models.Suggestion, error) {
	var suggestions []models.Suggestion
	deferred := 0
	sourcesDown := false

	for _, pp := range painPoints {
		sg, err := sy.synthesizeOne(ctx, pp)
		if err != nil {
			if errors.Is(err, improverr.ErrAllSourcesUnavailable) {
				sourcesDown = true
			}
			deferred++
			sy.logger.Warn().
				Str("pain_point", pp.Description).
				Err(err).
				Msg("pain point deferred to next cycle")
			continue
		}
		suggestions = append(suggestions, *sg)
	}

	if len(suggestions) == 0 && sourcesDown && deferred > 0 {
		return nil, improverr.ErrAllSourcesUnavailable
	}
	return suggestions, nil
}

func (sy *Synthesizer) synthesizeOne(ctx context.Context, pp models.PainPoint) (*models.Suggestion, error) {
	signature := Signature(pp.Description)

	// Step 1: a known-effective solution short-circuits the gateway.
	entry, err := sy.knowledge.Lookup(ctx, signature)
	if err != nil {
		sy.logger.Warn().Err(err).Str("signature", signature).Msg("knowledge lookup failed, continuing to research")
	}
	if entry != nil && sy.knowledge.EffectiveScore(entry, sy.now()) >= sy.cfg.ReuseThreshold {
		if err := sy.knowledge.MarkUsed(ctx, signature); err != nil {
			sy.logger.Warn().Err(err).Str("signature", signature).Msg("failed to mark entry used")
		}
		sy.count("reuse", pp.Category)
		if sy.metrics != nil {
			sy.metrics.KnowledgeLookups.WithLabelValues("reused").Inc()
		}
		return sy.suggestionFromEntry(pp, entry), nil
	}
	if sy.metrics != nil {
		if entry != nil {
			sy.metrics.KnowledgeLookups.WithLabelValues("hit").Inc()
		} else {
			sy.metrics.KnowledgeLookups.WithLabelValues("miss").Inc()
		}
	}

	// Step 2: fan out across all configured sources and merge.
	results, err := sy.gateway.Query(ctx, pp.Description, nil, sy.cfg.PerSourceTimeout, sy.cfg.OverallTimeout)
	if err != nil {
		return nil, err
	}
	merged := sy.merge(results)
	if len(merged) == 0 {
		return nil, fmt.Errorf("no research results for %q", pp.Description)
	}

	// Step 3: synthesize a plan, falling back to the top raw result.
	sg := sy.planSuggestion(ctx, pp, merged)

	// Step 4: cache the solution for the next occurrence of this problem.
	if entry == nil {
		newEntry := models.LearningEntry{
			Signature:     signature,
			Solution:      sg.Plan,
			Title:         sg.Title,
			Category:      pp.Category,
			Effectiveness: 0.5,
		}
		if err := sy.knowledge.Upsert(ctx, newEntry); err != nil {
			sy.logger.Warn().Err(err).Str("signature", signature).Msg("failed to cache solution")
		}
	}
	return sg, nil
}

// suggestionFromEntry reuses a cached solution directly.
func (sy *Synthesizer) suggestionFromEntry(pp models.PainPoint, entry *models.LearningEntry) *models.Suggestion {
	title := entry.Title
	if title == "" {
		title = "Apply known fix: " + pp.Description
	}
	return &models.Suggestion{
		Category:       pp.Category,
		Title:          title,
		Description:    pp.Description,
		Plan:           entry.Solution,
		ExpectedImpact: models.ImpactMedium,
		EffortEstimate: models.ImpactLow,
		Status:         models.StatusPending,
		Severity:       pp.Severity,
		SourceRef:      "knowledge:" + entry.Signature,
		CreatedAt:      sy.now(),
	}
}

// merge flattens per-source results, drops near-duplicates (keeping the
// highest-relevance representative) and orders by relevance.
func (sy *Synthesizer) merge(results map[string]source.Result) []models.ResearchResult {
	var all []models.ResearchResult
	for _, r := range results {
		if r.Failed() {
			continue
		}
		all = append(all, r.Results...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Relevance > all[j].Relevance })

	var kept []models.ResearchResult
	for _, candidate := range all {
		dup := false
		for _, k := range kept {
			if source.Similarity(candidate.Title+" "+candidate.Snippet, k.Title+" "+k.Snippet) > sy.cfg.DedupThreshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// planSuggestion asks the synthesis capability for a structured plan; on any
// failure it builds a reduced-confidence suggestion from the top raw result.
func (sy *Synthesizer) planSuggestion(ctx context.Context, pp models.PainPoint, merged []models.ResearchResult) *models.Suggestion {
	if sy.capability != nil {
		plan, err := sy.summarize(ctx, pp, merged)
		if err == nil {
			sy.count("synthesis", pp.Category)
			return &models.Suggestion{
				Category:       pp.Category,
				Title:          plan.Title,
				Description:    plan.Description,
				Plan:           plan.Implementation,
				ExpectedImpact: impactFrom(plan.Impact),
				EffortEstimate: impactFrom(plan.Effort),
				Status:         models.StatusPending,
				Severity:       pp.Severity,
				SourceRef:      "session:" + pp.SessionID,
				CreatedAt:      sy.now(),
			}
		}
		sy.logger.Warn().Err(err).Str("pain_point", pp.Description).Msg("synthesis capability failed, using raw-result fallback")
	}

	top := merged[0]
	sy.count("fallback", pp.Category)
	return &models.Suggestion{
		Category:       pp.Category,
		Title:          top.Title,
		Description:    pp.Description,
		Plan:           strings.TrimSpace(top.Snippet + "\n" + top.URL),
		ExpectedImpact: models.ImpactMedium,
		EffortEstimate: models.ImpactMedium,
		Status:         models.StatusPending,
		Severity:       pp.Severity,
		SourceRef:      top.Source + ":" + top.URL,
		Confidence:     "reduced",
		CreatedAt:      sy.now(),
	}
}

func (sy *Synthesizer) summarize(ctx context.Context, pp models.PainPoint, merged []models.ResearchResult) (*synth.Plan, error) {
	synthCtx, cancel := context.WithTimeout(ctx, sy.cfg.SynthTimeout)
	defer cancel()

	findings, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(`Analyze these research findings about a user pain point and produce one actionable improvement.

PAIN POINT: %s (category: %s, severity: %.2f)

RESEARCH FINDINGS:
%s

Respond with JSON only:
{"title": "...", "description": "...", "implementation": "...", "impact": "low|medium|high", "effort": "low|medium|high"}`,
		pp.Description, pp.Category, pp.Severity, findings)

	text, err := sy.capability.Summarize(synthCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", improverr.ErrSynthesisUnavailable, err)
	}

	var plan synth.Plan
	if err := json.Unmarshal([]byte(extractJSON(text)), &plan); err != nil {
		return nil, fmt.Errorf("%w: unparseable response", improverr.ErrSynthesisUnavailable)
	}
	if plan.Title == "" {
		return nil, fmt.Errorf("%w: response missing title", improverr.ErrSynthesisUnavailable)
	}
	return &plan, nil
}

// extractJSON strips any prose around the first top-level JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func impactFrom(s string) models.Impact {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return models.ImpactLow
	case "high":
		return models.ImpactHigh
	default:
		return models.ImpactMedium
	}
}

func (sy *Synthesizer) count(origin string, category models.PainCategory) {
	if sy.metrics != nil {
		sy.metrics.SuggestionsTotal.WithLabelValues(origin, string(category)).Inc()
	}
}
