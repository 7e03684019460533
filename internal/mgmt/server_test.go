package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/insight/internal/health"
	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
	"github.com/lumenforge/insight/internal/store"
)

type fakeDispatcher struct {
	dispatched []models.SessionRecord
	err        error
}

func (d *fakeDispatcher) Dispatch(rec models.SessionRecord) error {
	if d.err != nil {
		return d.err
	}
	d.dispatched = append(d.dispatched, rec)
	return nil
}

type fakeLedger struct {
	appended []models.PerformanceMetric
}

func (l *fakeLedger) Append(ctx context.Context, m models.PerformanceMetric) error {
	l.appended = append(l.appended, m)
	return nil
}

type fakeKnowledge struct {
	entries  map[string]*models.LearningEntry
	feedback map[string]bool
}

func newFakeKnowledge() *fakeKnowledge {
	return &fakeKnowledge{
		entries:  make(map[string]*models.LearningEntry),
		feedback: make(map[string]bool),
	}
}

func (k *fakeKnowledge) Lookup(ctx context.Context, signature string) (*models.LearningEntry, error) {
	return k.entries[signature], nil
}

func (k *fakeKnowledge) EffectiveScore(e *models.LearningEntry, now time.Time) float64 {
	if e == nil {
		return 0
	}
	return e.Effectiveness
}

func (k *fakeKnowledge) RecordFeedback(ctx context.Context, signature string, succeeded bool) error {
	if _, ok := k.entries[signature]; !ok {
		return improverr.ErrNotFound
	}
	k.feedback[signature] = succeeded
	return nil
}

type fakeBacklog struct {
	suggestions map[string]*models.Suggestion
	statusErr   error
}

func newFakeBacklog() *fakeBacklog {
	return &fakeBacklog{suggestions: make(map[string]*models.Suggestion)}
}

func (b *fakeBacklog) List(ctx context.Context, f store.Filter) ([]models.Suggestion, error) {
	var out []models.Suggestion
	for _, sg := range b.suggestions {
		if f.Status != "" && sg.Status != f.Status {
			continue
		}
		out = append(out, *sg)
	}
	return out, nil
}

func (b *fakeBacklog) Get(ctx context.Context, id string) (*models.Suggestion, error) {
	sg, ok := b.suggestions[id]
	if !ok {
		return nil, improverr.ErrNotFound
	}
	return sg, nil
}

func (b *fakeBacklog) UpdateStatus(ctx context.Context, id string, next models.SuggestionStatus) error {
	if b.statusErr != nil {
		return b.statusErr
	}
	sg, ok := b.suggestions[id]
	if !ok {
		return improverr.ErrNotFound
	}
	sg.Status = next
	return nil
}

type fakeReports struct {
	reports map[string]*models.DailyReport
}

func (r *fakeReports) Get(ctx context.Context, date string) (*models.DailyReport, error) {
	report, ok := r.reports[date]
	if !ok {
		return nil, improverr.ErrNotFound
	}
	return report, nil
}

type testDeps struct {
	dispatcher *fakeDispatcher
	ledger     *fakeLedger
	knowledge  *fakeKnowledge
	backlog    *fakeBacklog
	reports    *fakeReports
}

// testApp creates a Fiber app with all routes for testing.
func testApp(t *testing.T, auth AuthConfig) (*fiber.App, *testDeps) {
	t.Helper()
	logger := zerolog.Nop()
	deps := &testDeps{
		dispatcher: &fakeDispatcher{},
		ledger:     &fakeLedger{},
		knowledge:  newFakeKnowledge(),
		backlog:    newFakeBacklog(),
		reports:    &fakeReports{reports: make(map[string]*models.DailyReport)},
	}
	h := NewHandlers(deps.dispatcher, deps.ledger, deps.knowledge, deps.backlog, deps.reports,
		health.NewChecker(logger), logger)
	srv := NewServer(ServerConfig{ListenAddr: ":0", Auth: auth}, h, nil, logger)
	return srv.App(), deps
}

func openApp(t *testing.T) (*fiber.App, *testDeps) {
	return testApp(t, AuthConfig{Mode: "none"})
}

func TestServer_Healthz(t *testing.T) {
	app, _ := openApp(t)

	req, _ := http.NewRequest("GET", "/healthz", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body StatusResponse
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "ok", body.Status)
}

func TestServer_Readyz(t *testing.T) {
	app, _ := openApp(t)

	req, _ := http.NewRequest("GET", "/readyz", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_IngestSession(t *testing.T) {
	app, deps := openApp(t)

	body := `{"id":"sess-1","user_id":"user-1","started_at":"2026-08-30T10:00:00Z","ended_at":"2026-08-30T11:00:00Z"}`
	req, _ := http.NewRequest("POST", "/api/v1/sessions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out IngestSessionResponse
	json.NewDecoder(resp.Body).Decode(&out)
	assert.Equal(t, "sess-1", out.SessionID)
	assert.True(t, out.Accepted)
	require.Len(t, deps.dispatcher.dispatched, 1)
	assert.Equal(t, "user-1", deps.dispatcher.dispatched[0].UserID)
}

func TestServer_IngestSession_MissingID(t *testing.T) {
	app, _ := openApp(t)

	req, _ := http.NewRequest("POST", "/api/v1/sessions", strings.NewReader(`{"user_id":"u"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem ProblemDetail
	json.NewDecoder(resp.Body).Decode(&problem)
	assert.Equal(t, "missing_id", problem.Type)
}

func TestServer_IngestSession_QueueFull(t *testing.T) {
	app, deps := openApp(t)
	deps.dispatcher.err = errors.New("analysis queue is full")

	req, _ := http.NewRequest("POST", "/api/v1/sessions", strings.NewReader(`{"id":"sess-1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_AppendMetric(t *testing.T) {
	app, deps := openApp(t)

	body := `{"operation_type":"research","duration_ms":2500,"success":true,"quality":0.9}`
	req, _ := http.NewRequest("POST", "/api/v1/metrics", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Len(t, deps.ledger.appended, 1)
	m := deps.ledger.appended[0]
	assert.Equal(t, "research", m.OperationType)
	assert.Equal(t, 2500*time.Millisecond, m.Duration)
	assert.True(t, m.Success)
}

func TestServer_AppendMetric_MissingType(t *testing.T) {
	app, _ := openApp(t)

	req, _ := http.NewRequest("POST", "/api/v1/metrics", strings.NewReader(`{"duration_ms":10}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RecordFeedback(t *testing.T) {
	app, deps := openApp(t)
	deps.knowledge.entries["export timeout"] = &models.LearningEntry{Signature: "export timeout"}

	body := `{"signature":"export timeout","succeeded":true}`
	req, _ := http.NewRequest("POST", "/api/v1/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, deps.knowledge.feedback["export timeout"])
}

func TestServer_RecordFeedback_UnknownSignature(t *testing.T) {
	app, _ := openApp(t)

	body := `{"signature":"nope","succeeded":false}`
	req, _ := http.NewRequest("POST", "/api/v1/feedback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_GetKnowledge(t *testing.T) {
	app, deps := openApp(t)
	deps.knowledge.entries["export timeout"] = &models.LearningEntry{
		Signature:     "export timeout",
		Solution:      "stream it",
		Effectiveness: 0.8,
	}

	req, _ := http.NewRequest("GET", "/api/v1/knowledge/export%20timeout", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out KnowledgeResponse
	json.NewDecoder(resp.Body).Decode(&out)
	assert.Equal(t, "stream it", out.Entry.Solution)
	assert.InDelta(t, 0.8, out.EffectiveScore, 1e-9)
}

func TestServer_GetKnowledge_NotFound(t *testing.T) {
	app, _ := openApp(t)

	req, _ := http.NewRequest("GET", "/api/v1/knowledge/missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListSuggestions(t *testing.T) {
	app, deps := openApp(t)
	deps.backlog.suggestions["s1"] = &models.Suggestion{ID: "s1", Status: models.StatusPending}
	deps.backlog.suggestions["s2"] = &models.Suggestion{ID: "s2", Status: models.StatusApproved}

	req, _ := http.NewRequest("GET", "/api/v1/suggestions?status=pending", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Suggestions []models.Suggestion `json:"suggestions"`
		Count       int                 `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	assert.Equal(t, 1, out.Count)
	require.Len(t, out.Suggestions, 1)
	assert.Equal(t, "s1", out.Suggestions[0].ID)
}

func TestServer_GetSuggestion_NotFound(t *testing.T) {
	app, _ := openApp(t)

	req, _ := http.NewRequest("GET", "/api/v1/suggestions/missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_UpdateSuggestionStatus(t *testing.T) {
	app, deps := openApp(t)
	deps.backlog.suggestions["s1"] = &models.Suggestion{ID: "s1", Status: models.StatusPending}

	body := `{"status":"approved"}`
	req, _ := http.NewRequest("POST", "/api/v1/suggestions/s1/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, models.StatusApproved, deps.backlog.suggestions["s1"].Status)
}

func TestServer_UpdateSuggestionStatus_InvalidTransition(t *testing.T) {
	app, deps := openApp(t)
	deps.backlog.suggestions["s1"] = &models.Suggestion{ID: "s1", Status: models.StatusArchived}
	deps.backlog.statusErr = improverr.ErrInvalidTransition

	body := `{"status":"approved"}`
	req, _ := http.NewRequest("POST", "/api/v1/suggestions/s1/status", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_GetReport(t *testing.T) {
	app, deps := openApp(t)
	deps.reports.reports["2026-08-30"] = &models.DailyReport{Date: "2026-08-30", HealthScore: 72}

	req, _ := http.NewRequest("GET", "/api/v1/reports/2026-08-30", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.DailyReport
	json.NewDecoder(resp.Body).Decode(&out)
	assert.InDelta(t, 72.0, out.HealthScore, 1e-9)
}

func TestServer_GetReport_NotFound(t *testing.T) {
	app, _ := openApp(t)

	req, _ := http.NewRequest("GET", "/api/v1/reports/1999-01-01", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
