// Package models holds the domain types shared across the improvement core.
package models

import "time"

// PainCategory classifies a pain point.
type PainCategory string

const (
	CategoryPerformance PainCategory = "performance"
	CategoryUsability   PainCategory = "usability"
	CategoryReliability PainCategory = "reliability"
	CategoryFeatureGap  PainCategory = "feature-gap"
)

// Known reports whether the category is one of the defined values.
func (c PainCategory) Known() bool {
	switch c {
	case CategoryPerformance, CategoryUsability, CategoryReliability, CategoryFeatureGap:
		return true
	}
	return false
}

// Impact is a coarse low/medium/high estimate.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Weight maps an impact/effort estimate onto [0,1] for scoring.
func (i Impact) Weight() float64 {
	switch i {
	case ImpactLow:
		return 0.2
	case ImpactHigh:
		return 0.9
	default:
		return 0.5
	}
}

// SuggestionStatus is the approval-workflow state of a suggestion.
type SuggestionStatus string

const (
	StatusPending     SuggestionStatus = "pending"
	StatusApproved    SuggestionStatus = "approved"
	StatusImplemented SuggestionStatus = "implemented"
	StatusRejected    SuggestionStatus = "rejected"
	StatusArchived    SuggestionStatus = "archived"
)

// ActionEvent is a single user action inside a session.
type ActionEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"kind"`
	Feature   string            `json:"feature,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ErrorDescriptor is one error the user hit during a session.
type ErrorDescriptor struct {
	Category PainCategory `json:"category"`
	Feature  string       `json:"feature,omitempty"`
	Message  string       `json:"message"`
	Fatal    bool         `json:"fatal,omitempty"`
}

// SessionRecord is a finalized user session pushed by the session-tracking
// collaborator at logout. Immutable once EndedAt is set.
type SessionRecord struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	StartedAt     time.Time         `json:"started_at"`
	EndedAt       time.Time         `json:"ended_at"`
	Actions       []ActionEvent     `json:"actions"`
	Errors        []ErrorDescriptor `json:"errors,omitempty"`
	FeaturesUsed  []string          `json:"features_used,omitempty"`
	AssetsCreated int               `json:"assets_created,omitempty"`
	Satisfaction  float64           `json:"satisfaction,omitempty"` // 0-10 user score, 0 when not given
}

// Closed reports whether the session has been finalized.
func (s SessionRecord) Closed() bool { return !s.EndedAt.IsZero() }

// PainPoint is a categorized friction signal derived from one session.
// Never persisted standalone; consumed immediately by the synthesizer.
type PainPoint struct {
	Category    PainCategory `json:"category"`
	Description string       `json:"description"`
	Frequency   int          `json:"frequency"`
	Severity    float64      `json:"severity"` // [0,1]
	UserID      string       `json:"user_id,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
}

// ResearchResult is one hit from an external knowledge source.
type ResearchResult struct {
	Source    string  `json:"source"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet,omitempty"`
	URL       string  `json:"url,omitempty"`
	Relevance float64 `json:"relevance"` // [0,1], computed locally by the gateway
}

// Suggestion is a ranked, actionable improvement candidate.
// Created by the synthesizer or the reflection engine; status transitions
// come only from the external approval workflow; never deleted, only archived.
type Suggestion struct {
	ID             string           `json:"id"`
	Category       PainCategory     `json:"category"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	Plan           string           `json:"implementation_plan"`
	Priority       int              `json:"priority"` // 1..5
	ExpectedImpact Impact           `json:"expected_impact"`
	EffortEstimate Impact           `json:"effort_estimate"`
	Status         SuggestionStatus `json:"status"`
	Severity       float64          `json:"severity"` // carried from the source pain point
	SourceRef      string           `json:"source_ref,omitempty"`
	Confidence     string           `json:"confidence,omitempty"` // "reduced" when built from the raw fallback
	CreatedAt      time.Time        `json:"created_at"`
}

// LearningEntry is a cached problem→solution mapping with a decaying
// effectiveness estimate. Signature is unique in the knowledge store.
type LearningEntry struct {
	Signature      string       `json:"signature"`
	Solution       string       `json:"solution"`
	Title          string       `json:"title,omitempty"`
	Category       PainCategory `json:"category,omitempty"`
	Effectiveness  float64      `json:"effectiveness"` // [0,1], EMA over feedback
	TimesUsed      int          `json:"times_used"`
	TimesSucceeded int          `json:"times_succeeded"`
	LastUsed       time.Time    `json:"last_used"`
	CreatedAt      time.Time    `json:"created_at"`
}

// PerformanceMetric is one append-only record of a completed operation,
// written by any collaborator instrumenting itself.
type PerformanceMetric struct {
	OperationType string        `json:"operation_type"`
	Duration      time.Duration `json:"duration"`
	Success       bool          `json:"success"`
	Quality       float64       `json:"quality"` // [0,1]
	TokensUsed    int           `json:"tokens_used,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// OperationStats is a per-operation-type aggregate over a metrics window.
type OperationStats struct {
	OperationType string        `json:"operation_type"`
	Total         int           `json:"total"`
	Successes     int           `json:"successes"`
	SuccessRate   float64       `json:"success_rate"`
	MeanDuration  time.Duration `json:"mean_duration"`
	MeanQuality   float64       `json:"mean_quality"`
}

// SessionStats is the per-day session aggregate used by reports.
type SessionStats struct {
	SessionsAnalyzed int           `json:"sessions_analyzed"`
	MeanDuration     time.Duration `json:"mean_duration"`
	AssetsCreated    int           `json:"assets_created"`
	ErrorsTotal      int           `json:"errors_total"`
}

// DailyReport is the once-per-day aggregate. Immutable after creation;
// regenerating for the same date overwrites deterministically.
type DailyReport struct {
	Date             string       `json:"date"` // YYYY-MM-DD
	Sessions         SessionStats `json:"sessions"`
	SuggestionsTotal int          `json:"suggestions_total"`
	HighPriority     int          `json:"high_priority"` // priority >= 4
	HealthScore      float64      `json:"health_score"`  // [0,100]
	TopSuggestions   []Suggestion `json:"top_suggestions"`
	Recommendations  []string     `json:"recommendations"`
	GeneratedAt      time.Time    `json:"generated_at"`
}
