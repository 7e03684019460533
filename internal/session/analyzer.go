// Package session derives pain points from finalized user sessions.
// Analysis is pure and deterministic: no network calls, no storage writes.
package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

// Action kinds the analyzer understands. The session-tracking collaborator
// emits feature_start/feature_complete around multi-step feature flows.
const (
	KindFeatureStart    = "feature_start"
	KindFeatureComplete = "feature_complete"
)

// PriorPainFunc reports whether the user already has an unresolved pain
// point in the given category. Injected so the analyzer itself stays pure.
type PriorPainFunc func(userID string, category models.PainCategory) bool

// Config holds analyzer thresholds.
type Config struct {
	// ErrorThreshold is the occurrence count at which an error category
	// becomes a pain point. A single fatal error always qualifies.
	ErrorThreshold int

	// SlowActionCutoff marks an action as a performance pain point.
	SlowActionCutoff time.Duration
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold:   2,
		SlowActionCutoff: 5 * time.Minute,
	}
}

// Analyzer consumes one finished session and derives its pain points.
type Analyzer struct {
	cfg       Config
	priorPain PriorPainFunc
	logger    zerolog.Logger
}

// NewAnalyzer creates an analyzer. priorPain may be nil.
func NewAnalyzer(cfg Config, priorPain PriorPainFunc, logger zerolog.Logger) *Analyzer {
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = DefaultConfig().ErrorThreshold
	}
	if cfg.SlowActionCutoff <= 0 {
		cfg.SlowActionCutoff = DefaultConfig().SlowActionCutoff
	}
	if priorPain == nil {
		priorPain = func(string, models.PainCategory) bool { return false }
	}
	return &Analyzer{
		cfg:       cfg,
		priorPain: priorPain,
		logger:    logger.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze derives the pain point set for one closed session.
// Returns ErrInvalidSession for unclosed or empty sessions; the caller skips
// such sessions without aborting the batch.
func (a *Analyzer) Analyze(rec models.SessionRecord) ([]models.PainPoint, error) {
	if !rec.Closed() {
		return nil, fmt.Errorf("%w: session %s has no end timestamp", improverr.ErrInvalidSession, rec.ID)
	}
	if len(rec.Actions) == 0 {
		return nil, fmt.Errorf("%w: session %s has no actions", improverr.ErrInvalidSession, rec.ID)
	}

	var points []models.PainPoint
	points = append(points, a.errorPainPoints(rec)...)
	points = append(points, a.abandonmentPainPoints(rec)...)
	points = append(points, a.slowActionPainPoints(rec)...)

	// Stable output order: category, then description.
	sort.Slice(points, func(i, j int) bool {
		if points[i].Category != points[j].Category {
			return points[i].Category < points[j].Category
		}
		return points[i].Description < points[j].Description
	})

	a.logger.Debug().
		Str("session_id", rec.ID).
		Int("pain_points", len(points)).
		Msg("session analyzed")
	return points, nil
}

// errorPainPoints emits one pain point per error category whose frequency
// meets the threshold, or that saw at least one fatal error.
func (a *Analyzer) errorPainPoints(rec models.SessionRecord) []models.PainPoint {
	counts := make(map[models.PainCategory]int)
	fatal := make(map[models.PainCategory]bool)
	for _, e := range rec.Errors {
		// Collaborators send free-form categories; anything outside the
		// enum counts as reliability.
		cat := e.Category
		if !cat.Known() {
			cat = models.CategoryReliability
		}
		counts[cat]++
		if e.Fatal {
			fatal[cat] = true
		}
	}

	var points []models.PainPoint
	for cat, count := range counts {
		if count < a.cfg.ErrorThreshold && !fatal[cat] {
			continue
		}
		// Errors are unresolved at session end, so recency is maximal.
		points = append(points, models.PainPoint{
			Category:    cat,
			Description: fmt.Sprintf("repeated %s errors (%d in one session)", cat, count),
			Frequency:   count,
			Severity:    a.severity(rec.UserID, cat, count, 1.0),
			UserID:      rec.UserID,
			SessionID:   rec.ID,
		})
	}
	return points
}

// abandonmentPainPoints detects features that were started but never
// completed before the session ended.
func (a *Analyzer) abandonmentPainPoints(rec models.SessionRecord) []models.PainPoint {
	started := make(map[string]time.Time)
	completed := make(map[string]bool)
	for _, act := range rec.Actions {
		switch act.Kind {
		case KindFeatureStart:
			if _, ok := started[act.Feature]; !ok {
				started[act.Feature] = act.Timestamp
			}
		case KindFeatureComplete:
			completed[act.Feature] = true
		}
	}

	var points []models.PainPoint
	for feature, at := range started {
		if completed[feature] || feature == "" {
			continue
		}
		points = append(points, models.PainPoint{
			Category:    models.CategoryUsability,
			Description: fmt.Sprintf("user abandoned %s", feature),
			Frequency:   1,
			Severity:    a.severity(rec.UserID, models.CategoryUsability, 1, a.recency(rec, at)),
			UserID:      rec.UserID,
			SessionID:   rec.ID,
		})
	}
	return points
}

// slowActionPainPoints flags action kinds whose duration exceeded the cutoff.
func (a *Analyzer) slowActionPainPoints(rec models.SessionRecord) []models.PainPoint {
	type slow struct {
		count int
		last  time.Time
	}
	slowByKind := make(map[string]*slow)
	for _, act := range rec.Actions {
		if act.Duration < a.cfg.SlowActionCutoff || act.Duration == 0 {
			continue
		}
		s, ok := slowByKind[act.Kind]
		if !ok {
			s = &slow{}
			slowByKind[act.Kind] = s
		}
		s.count++
		if act.Timestamp.After(s.last) {
			s.last = act.Timestamp
		}
	}

	var points []models.PainPoint
	for kind, s := range slowByKind {
		points = append(points, models.PainPoint{
			Category:    models.CategoryPerformance,
			Description: fmt.Sprintf("slow action: %s", kind),
			Frequency:   s.count,
			Severity:    a.severity(rec.UserID, models.CategoryPerformance, s.count, a.recency(rec, s.last)),
			UserID:      rec.UserID,
			SessionID:   rec.ID,
		})
	}
	return points
}

// severity is a normalized weighted sum of frequency, recency-in-session,
// and whether the category is already unresolved for this user.
func (a *Analyzer) severity(userID string, cat models.PainCategory, freq int, recency float64) float64 {
	freqTerm := float64(freq) / float64(a.cfg.ErrorThreshold*2)
	if freqTerm > 1 {
		freqTerm = 1
	}
	prior := 0.0
	if a.priorPain(userID, cat) {
		prior = 1.0
	}
	s := 0.5*freqTerm + 0.3*recency + 0.2*prior
	if s > 1 {
		s = 1
	}
	return s
}

// recency maps a timestamp onto [0,1] within the session span.
func (a *Analyzer) recency(rec models.SessionRecord, at time.Time) float64 {
	span := rec.EndedAt.Sub(rec.StartedAt)
	if span <= 0 || at.IsZero() {
		return 1
	}
	r := float64(at.Sub(rec.StartedAt)) / float64(span)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
