package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenforge/insight/internal/improverr"
	"github.com/lumenforge/insight/internal/models"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "insight-*.db")
	require.NoError(t, err)
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := New(f.Name(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testKnowledge(t *testing.T) *Knowledge {
	t.Helper()
	return NewKnowledge(tempStore(t), 0.2, 720*time.Hour, zerolog.Nop())
}

func TestKnowledge_UpsertAndLookup(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	entry := models.LearningEntry{
		Signature:     "export timeout large files",
		Solution:      "Stream the export in chunks instead of buffering.",
		Title:         "Chunked export",
		Category:      models.CategoryPerformance,
		Effectiveness: 0.5,
	}
	require.NoError(t, k.Upsert(ctx, entry))

	got, err := k.Lookup(ctx, entry.Signature)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Solution, got.Solution)
	assert.Equal(t, models.CategoryPerformance, got.Category)
	assert.InDelta(t, 0.5, got.Effectiveness, 1e-9)
	assert.False(t, got.LastUsed.IsZero())
}

func TestKnowledge_Lookup_Miss(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	got, err := k.Lookup(ctx, "never stored")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKnowledge_Upsert_KeepsStats(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	require.NoError(t, k.Upsert(ctx, models.LearningEntry{
		Signature:     "sig",
		Solution:      "old solution",
		Effectiveness: 0.8,
		TimesUsed:     7,
	}))
	require.NoError(t, k.Upsert(ctx, models.LearningEntry{
		Signature:     "sig",
		Solution:      "new solution",
		Effectiveness: 0.5,
	}))

	got, err := k.Lookup(ctx, "sig")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new solution", got.Solution)
	assert.InDelta(t, 0.8, got.Effectiveness, 1e-9)
	assert.Equal(t, 7, got.TimesUsed)
}

func TestKnowledge_EffectiveScore_Decay(t *testing.T) {
	k := testKnowledge(t)
	now := time.Now()

	entry := &models.LearningEntry{Effectiveness: 0.8, LastUsed: now}
	assert.InDelta(t, 0.8, k.EffectiveScore(entry, now), 1e-9)

	// One half-life elapsed halves the score.
	entry.LastUsed = now.Add(-720 * time.Hour)
	assert.InDelta(t, 0.4, k.EffectiveScore(entry, now), 1e-9)

	// Two half-lives quarter it.
	entry.LastUsed = now.Add(-1440 * time.Hour)
	assert.InDelta(t, 0.2, k.EffectiveScore(entry, now), 1e-9)

	assert.Zero(t, k.EffectiveScore(nil, now))
}

func TestKnowledge_MarkUsed(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	require.NoError(t, k.Upsert(ctx, models.LearningEntry{Signature: "sig", Solution: "s"}))
	require.NoError(t, k.MarkUsed(ctx, "sig"))
	require.NoError(t, k.MarkUsed(ctx, "sig"))

	got, err := k.Lookup(ctx, "sig")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TimesUsed)

	assert.ErrorIs(t, k.MarkUsed(ctx, "missing"), improverr.ErrNotFound)
}

func TestKnowledge_RecordFeedback_EMA(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	require.NoError(t, k.Upsert(ctx, models.LearningEntry{
		Signature:     "sig",
		Solution:      "s",
		Effectiveness: 0.5,
	}))

	// e += 0.2 * (1 - 0.5) = 0.6
	require.NoError(t, k.RecordFeedback(ctx, "sig", true))
	got, err := k.Lookup(ctx, "sig")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.Effectiveness, 1e-9)
	assert.Equal(t, 1, got.TimesUsed)
	assert.Equal(t, 1, got.TimesSucceeded)

	// e += 0.2 * (0 - 0.6) = 0.48
	require.NoError(t, k.RecordFeedback(ctx, "sig", false))
	got, err = k.Lookup(ctx, "sig")
	require.NoError(t, err)
	assert.InDelta(t, 0.48, got.Effectiveness, 1e-9)
	assert.Equal(t, 2, got.TimesUsed)
	assert.Equal(t, 1, got.TimesSucceeded)
}

func TestKnowledge_RecordFeedback_StaysBounded(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	require.NoError(t, k.Upsert(ctx, models.LearningEntry{Signature: "sig", Solution: "s", Effectiveness: 0.5}))

	for i := 0; i < 100; i++ {
		require.NoError(t, k.RecordFeedback(ctx, "sig", false))
	}
	got, err := k.Lookup(ctx, "sig")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Effectiveness, 0.0)

	for i := 0; i < 100; i++ {
		require.NoError(t, k.RecordFeedback(ctx, "sig", true))
	}
	got, err = k.Lookup(ctx, "sig")
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Effectiveness, 1.0)
	assert.Equal(t, 200, got.TimesUsed)
	assert.Equal(t, 100, got.TimesSucceeded)
}

func TestKnowledge_RecordFeedback_Unknown(t *testing.T) {
	k := testKnowledge(t)
	assert.ErrorIs(t, k.RecordFeedback(context.Background(), "missing", true), improverr.ErrNotFound)
}

func TestKnowledge_RecordFeedback_Concurrent(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	require.NoError(t, k.Upsert(ctx, models.LearningEntry{Signature: "sig", Solution: "s", Effectiveness: 0.5}))

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(success bool) {
			defer wg.Done()
			assert.NoError(t, k.RecordFeedback(ctx, "sig", success))
		}(i%2 == 0)
	}
	wg.Wait()

	// No lost updates: every call lands in the usage counters.
	got, err := k.Lookup(ctx, "sig")
	require.NoError(t, err)
	assert.Equal(t, n, got.TimesUsed)
	assert.Equal(t, n/2, got.TimesSucceeded)
	assert.GreaterOrEqual(t, got.Effectiveness, 0.0)
	assert.LessOrEqual(t, got.Effectiveness, 1.0)
}

func TestKnowledge_TopEntries(t *testing.T) {
	ctx := context.Background()
	k := testKnowledge(t)

	require.NoError(t, k.Upsert(ctx, models.LearningEntry{Signature: "unused", Solution: "s", Effectiveness: 0.9}))
	require.NoError(t, k.Upsert(ctx, models.LearningEntry{Signature: "a", Solution: "s", Effectiveness: 0.7, TimesUsed: 3}))
	require.NoError(t, k.Upsert(ctx, models.LearningEntry{Signature: "b", Solution: "s", Effectiveness: 0.9, TimesUsed: 1}))

	top, err := k.TopEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Signature)
	assert.Equal(t, "a", top[1].Signature)
}
