package mgmt

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/health"
	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
	"github.com/lumenforge/insight/internal/store"
)

// Dispatcher accepts finalized sessions for asynchronous analysis.
type Dispatcher interface {
	Dispatch(rec models.SessionRecord) error
}

// Ledger appends performance metrics.
type Ledger interface {
	Append(ctx context.Context, m models.PerformanceMetric) error
}

// Knowledge is the slice of the knowledge store the API exposes.
type Knowledge interface {
	Lookup(ctx context.Context, signature string) (*models.LearningEntry, error)
	EffectiveScore(e *models.LearningEntry, now time.Time) float64
	RecordFeedback(ctx context.Context, signature string, succeeded bool) error
}

// Backlog is the slice of the suggestion backlog the API exposes.
type Backlog interface {
	List(ctx context.Context, f store.Filter) ([]models.Suggestion, error)
	Get(ctx context.Context, id string) (*models.Suggestion, error)
	UpdateStatus(ctx context.Context, id string, next models.SuggestionStatus) error
}

// Reports reads persisted daily reports.
type Reports interface {
	Get(ctx context.Context, date string) (*models.DailyReport, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	dispatcher Dispatcher
	ledger     Ledger
	knowledge  Knowledge
	backlog    Backlog
	reports    Reports
	checker    *health.Checker
	logger     zerolog.Logger
	startTime  time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(dispatcher Dispatcher, ledger Ledger, knowledge Knowledge, backlog Backlog, reports Reports, checker *health.Checker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		ledger:     ledger,
		knowledge:  knowledge,
		backlog:    backlog,
		reports:    reports,
		checker:    checker,
		logger:     logger.With().Str("component", "handlers").Logger(),
		startTime:  time.Now(),
	}
}

// IngestSession handles POST /api/v1/sessions. The session is dispatched
// onto the analysis pipeline; the logout path never waits for analysis.
func (h *Handlers) IngestSession(c *fiber.Ctx) error {
	var rec models.SessionRecord
	if err := c.BodyParser(&rec); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid session body: "+err.Error())
	}
	if rec.ID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_id", "Bad Request",
			"session id is required")
	}

	if err := h.dispatcher.Dispatch(rec); err != nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"queue_full", "Service Unavailable", err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(IngestSessionResponse{
		SessionID: rec.ID,
		Accepted:  true,
	})
}

// AppendMetric handles POST /api/v1/metrics.
func (h *Handlers) AppendMetric(c *fiber.Ctx) error {
	var req MetricRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid metric body: "+err.Error())
	}
	if req.OperationType == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_operation_type", "Bad Request",
			"operation_type is required")
	}

	m := models.PerformanceMetric{
		OperationType: req.OperationType,
		Duration:      time.Duration(req.DurationMS) * time.Millisecond,
		Success:       req.Success,
		Quality:       req.Quality,
		TokensUsed:    req.TokensUsed,
		Timestamp:     time.Now(),
	}
	if err := h.ledger.Append(c.Context(), m); err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"persistence_error", "Internal Server Error", err.Error())
	}
	return c.SendStatus(fiber.StatusCreated)
}

// RecordFeedback handles POST /api/v1/feedback.
func (h *Handlers) RecordFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid feedback body: "+err.Error())
	}
	if req.Signature == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_signature", "Bad Request",
			"signature is required")
	}

	err := h.knowledge.RecordFeedback(c.Context(), req.Signature, req.Succeeded)
	if errors.Is(err, improverr.ErrNotFound) {
		return problemResponse(c, fiber.StatusNotFound,
			"unknown_signature", "Not Found",
			"no learning entry for signature")
	}
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"persistence_error", "Internal Server Error", err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetKnowledge handles GET /api/v1/knowledge/:signature.
func (h *Handlers) GetKnowledge(c *fiber.Ctx) error {
	signature := c.Params("signature")
	entry, err := h.knowledge.Lookup(c.Context(), signature)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"persistence_error", "Internal Server Error", err.Error())
	}
	if entry == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"unknown_signature", "Not Found",
			"no learning entry for signature")
	}
	return c.JSON(KnowledgeResponse{
		Entry:          *entry,
		EffectiveScore: h.knowledge.EffectiveScore(entry, time.Now()),
	})
}

// ListSuggestions handles GET /api/v1/suggestions.
func (h *Handlers) ListSuggestions(c *fiber.Ctx) error {
	f := store.Filter{
		Status:      models.SuggestionStatus(c.Query("status")),
		Category:    models.PainCategory(c.Query("category")),
		MinPriority: c.QueryInt("minPriority"),
		Limit:       c.QueryInt("limit", 50),
	}
	suggestions, err := h.backlog.List(c.Context(), f)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"persistence_error", "Internal Server Error", err.Error())
	}
	return c.JSON(fiber.Map{"suggestions": suggestions, "count": len(suggestions)})
}

// GetSuggestion handles GET /api/v1/suggestions/:id.
func (h *Handlers) GetSuggestion(c *fiber.Ctx) error {
	sg, err := h.backlog.Get(c.Context(), c.Params("id"))
	if errors.Is(err, improverr.ErrNotFound) {
		return problemResponse(c, fiber.StatusNotFound,
			"unknown_suggestion", "Not Found",
			"no suggestion with that id")
	}
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"persistence_error", "Internal Server Error", err.Error())
	}
	return c.JSON(sg)
}

// UpdateSuggestionStatus handles POST /api/v1/suggestions/:id/status — the
// external approval workflow's only write surface.
func (h *Handlers) UpdateSuggestionStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid status body: "+err.Error())
	}

	err := h.backlog.UpdateStatus(c.Context(), c.Params("id"), req.Status)
	switch {
	case errors.Is(err, improverr.ErrNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"unknown_suggestion", "Not Found",
			"no suggestion with that id")
	case errors.Is(err, improverr.ErrInvalidTransition):
		return problemResponse(c, fiber.StatusConflict,
			"invalid_transition", "Conflict", err.Error())
	case err != nil:
		return problemResponse(c, fiber.StatusInternalServerError,
			"persistence_error", "Internal Server Error", err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetReport handles GET /api/v1/reports/:date.
func (h *Handlers) GetReport(c *fiber.Ctx) error {
	report, err := h.reports.Get(c.Context(), c.Params("date"))
	if errors.Is(err, improverr.ErrNotFound) {
		return problemResponse(c, fiber.StatusNotFound,
			"unknown_report", "Not Found",
			"no report for that date")
	}
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"persistence_error", "Internal Server Error", err.Error())
	}
	return c.JSON(report)
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Status: "ok",
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
		Time:   time.Now().UTC(),
	})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())
	ready := true
	for _, s := range results {
		if s == health.StatusDown {
			ready = false
			break
		}
	}
	status := fiber.StatusOK
	state := "ready"
	if !ready {
		status = fiber.StatusServiceUnavailable
		state = "not_ready"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": results})
}
