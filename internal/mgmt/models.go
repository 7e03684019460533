package mgmt

import (
	"time"

	"github.com/lumenforge/insight/internal/models"
)

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// IngestSessionResponse is the response for POST /api/v1/sessions.
type IngestSessionResponse struct {
	SessionID string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
}

// MetricRequest is the body for POST /api/v1/metrics.
type MetricRequest struct {
	OperationType string  `json:"operation_type"`
	DurationMS    int64   `json:"duration_ms"`
	Success       bool    `json:"success"`
	Quality       float64 `json:"quality"`
	TokensUsed    int     `json:"tokens_used,omitempty"`
}

// FeedbackRequest is the body for POST /api/v1/feedback.
type FeedbackRequest struct {
	Signature string `json:"signature"`
	Succeeded bool   `json:"succeeded"`
}

// StatusRequest is the body for POST /api/v1/suggestions/:id/status.
type StatusRequest struct {
	Status models.SuggestionStatus `json:"status"`
}

// KnowledgeResponse is the response for GET /api/v1/knowledge/:signature.
type KnowledgeResponse struct {
	Entry          models.LearningEntry `json:"entry"`
	EffectiveScore float64              `json:"effective_score"`
}

// StatusResponse reports service status on GET /healthz.
type StatusResponse struct {
	Status string    `json:"status"`
	Uptime string    `json:"uptime"`
	Time   time.Time `json:"time"`
}
