package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

// fakeSource returns canned results, an error, or blocks past its deadline.
// A non-zero sleep makes it ignore its context entirely.
type fakeSource struct {
	id      string
	results []models.ResearchResult
	err     error
	hang    bool
	sleep   time.Duration
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) Search(ctx context.Context, query string, limit int) ([]models.ResearchResult, error) {
	if f.sleep > 0 {
		time.Sleep(f.sleep)
		return f.results, nil
	}
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func testGateway(t *testing.T, sources ...Source) *Gateway {
	t.Helper()
	reg := NewRegistry(zerolog.Nop())
	for _, s := range sources {
		reg.Register(s)
	}
	return NewGateway(reg, 5, nil, zerolog.Nop())
}

func TestQuery_AllSourcesSucceed(t *testing.T) {
	gw := testGateway(t,
		&fakeSource{id: "alpha", results: []models.ResearchResult{{Title: "export timeout fix"}}},
		&fakeSource{id: "beta", results: []models.ResearchResult{{Title: "unrelated"}}},
	)

	results, err := gw.Query(context.Background(), "export timeout", nil, time.Second, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results["alpha"].Failed())
	assert.False(t, results["beta"].Failed())

	// The gateway stamps source id and relevance onto each result.
	require.Len(t, results["alpha"].Results, 1)
	assert.Equal(t, "alpha", results["alpha"].Results[0].Source)
	assert.InDelta(t, 1.0, results["alpha"].Results[0].Relevance, 1e-9)
}

func TestQuery_PartialFailure(t *testing.T) {
	gw := testGateway(t,
		&fakeSource{id: "alpha", results: []models.ResearchResult{{Title: "hit"}}},
		&fakeSource{id: "beta", results: []models.ResearchResult{{Title: "hit"}}},
		&fakeSource{id: "gamma", hang: true},
	)

	results, err := gw.Query(context.Background(), "query", nil, 50*time.Millisecond, time.Second)
	require.NoError(t, err) // partial results are a valid outcome
	require.Len(t, results, 3)

	assert.False(t, results["alpha"].Failed())
	assert.False(t, results["beta"].Failed())
	require.True(t, results["gamma"].Failed())

	var srcErr *improverr.SourceError
	require.ErrorAs(t, results["gamma"].Err, &srcErr)
	assert.Equal(t, "gamma", srcErr.SourceID)
	assert.ErrorIs(t, results["gamma"].Err, improverr.ErrSourceTimeout)
}

func TestQuery_AllSourcesFail(t *testing.T) {
	gw := testGateway(t,
		&fakeSource{id: "alpha", err: errors.New("http 500")},
		&fakeSource{id: "beta", hang: true},
	)

	results, err := gw.Query(context.Background(), "query", nil, 50*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, improverr.ErrAllSourcesUnavailable)
	assert.Len(t, results, 2)
	assert.True(t, results["alpha"].Failed())
	assert.True(t, results["beta"].Failed())
}

func TestQuery_UnknownSourceID(t *testing.T) {
	gw := testGateway(t, &fakeSource{id: "alpha", results: []models.ResearchResult{{Title: "hit"}}})

	results, err := gw.Query(context.Background(), "query", []string{"alpha", "ghost"}, time.Second, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results["alpha"].Failed())
	assert.ErrorIs(t, results["ghost"].Err, improverr.ErrNotFound)
}

func TestQuery_OverallTimeoutBoundsHangingSources(t *testing.T) {
	gw := testGateway(t,
		&fakeSource{id: "alpha", hang: true},
		&fakeSource{id: "beta", hang: true},
	)

	start := time.Now()
	_, err := gw.Query(context.Background(), "query", nil, time.Minute, 100*time.Millisecond)
	assert.ErrorIs(t, err, improverr.ErrAllSourcesUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestQuery_ContextIgnoringSourceMarkedTimedOut(t *testing.T) {
	gw := testGateway(t,
		&fakeSource{id: "alpha", results: []models.ResearchResult{{Title: "hit"}}},
		&fakeSource{id: "beta", sleep: 3 * time.Second},
	)

	start := time.Now()
	results, err := gw.Query(context.Background(), "query", nil, time.Minute, 100*time.Millisecond)
	require.NoError(t, err) // alpha still answered
	assert.Less(t, time.Since(start), 2*time.Second)

	require.Len(t, results, 2)
	assert.False(t, results["alpha"].Failed())
	require.True(t, results["beta"].Failed())
	assert.ErrorIs(t, results["beta"].Err, improverr.ErrSourceTimeout)

	var srcErr *improverr.SourceError
	require.ErrorAs(t, results["beta"].Err, &srcErr)
	assert.Equal(t, "beta", srcErr.SourceID)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	reg.Register(&fakeSource{id: "alpha"})
	reg.Register(&fakeSource{id: "beta"})

	src, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", src.ID())

	_, ok = reg.Get("ghost")
	assert.False(t, ok)

	assert.ElementsMatch(t, []string{"alpha", "beta"}, reg.IDs())
}
