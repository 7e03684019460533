package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNew(t *testing.T) {
	m := New()
	assert.NotNil(t, m.SessionsAnalyzed)
	assert.NotNil(t, m.PainPointsTotal)
	assert.NotNil(t, m.SuggestionsTotal)
	assert.NotNil(t, m.SourceQueries)
	assert.NotNil(t, m.SourceLatency)
	assert.NotNil(t, m.ReflectionRuns)
	assert.NotNil(t, m.ReportsGenerated)
	assert.NotNil(t, m.DroppedUnits)
	assert.NotNil(t, m.KnowledgeLookups)
}

func TestCounters(t *testing.T) {
	m := New()
	m.SessionsAnalyzed.WithLabelValues("analyzed").Inc()
	m.SessionsAnalyzed.WithLabelValues("analyzed").Inc()
	m.SessionsAnalyzed.WithLabelValues("duplicate").Inc()
	m.SourceQueries.WithLabelValues("forum", "timeout").Inc()
	m.ReportsGenerated.Inc()

	body := metricsBody(t, m)
	assert.Contains(t, body, `insight_sessions_analyzed_total{outcome="analyzed"} 2`)
	assert.Contains(t, body, `insight_sessions_analyzed_total{outcome="duplicate"} 1`)
	assert.Contains(t, body, `insight_source_queries_total{source="forum",status="timeout"} 1`)
	assert.Contains(t, body, "insight_reports_generated_total 1")
}

func TestSourceLatency(t *testing.T) {
	m := New()
	m.SourceLatency.WithLabelValues("papers").Observe(0.25)

	body := metricsBody(t, m)
	assert.Contains(t, body, "insight_source_query_duration_seconds")
}
