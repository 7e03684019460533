package source

import (
	"context"
	"sort"

	"github.com/lumenforge/insight/internal/models"
)

// CorpusEntry is one best-practice note in the local corpus.
type CorpusEntry struct {
	Title   string
	Snippet string
	Ref     string
}

// defaultCorpus is the built-in best-practice corpus. Hosts can replace it
// via NewCorpusSource.
var defaultCorpus = []CorpusEntry{
	{Title: "Progressive disclosure for complex features", Snippet: "usability interface workflow complexity hide advanced options until needed", Ref: "bp-001"},
	{Title: "Keyboard shortcuts for power users", Snippet: "usability speed workflow shortcuts accelerate frequent actions", Ref: "bp-002"},
	{Title: "Contextual help tooltips", Snippet: "usability onboarding help discoverability inline guidance", Ref: "bp-003"},
	{Title: "Consistent design patterns", Snippet: "usability interface consistency predictable layout", Ref: "bp-004"},
	{Title: "Cache expensive computations", Snippet: "performance slow latency cache memoize repeated work", Ref: "bp-005"},
	{Title: "Stream long-running results incrementally", Snippet: "performance slow progress feedback perceived latency", Ref: "bp-006"},
	{Title: "Retry transient failures with backoff", Snippet: "reliability error crash transient network retry exponential backoff", Ref: "bp-007"},
	{Title: "Graceful degradation on dependency failure", Snippet: "reliability error crash fallback partial results degrade", Ref: "bp-008"},
	{Title: "Autosave and recovery", Snippet: "reliability crash data loss save restore session", Ref: "bp-009"},
	{Title: "Feature-gap triage from abandonment funnels", Snippet: "feature gap abandoned incomplete workflow missing capability", Ref: "bp-010"},
}

// CorpusSource serves curated best-practice notes from memory. It never
// fails and needs no network.
type CorpusSource struct {
	id      string
	entries []CorpusEntry
}

// NewCorpusSource creates a corpus source. A nil entries slice uses the
// built-in corpus.
func NewCorpusSource(id string, entries []CorpusEntry) *CorpusSource {
	if entries == nil {
		entries = defaultCorpus
	}
	return &CorpusSource{id: id, entries: entries}
}

func (c *CorpusSource) ID() string { return c.id }

// Search ranks corpus entries by lexical overlap with the query.
func (c *CorpusSource) Search(_ context.Context, query string, limit int) ([]models.ResearchResult, error) {
	type scored struct {
		entry CorpusEntry
		score float64
	}
	var matches []scored
	for _, e := range c.entries {
		score := Relevance(query, e.Title+" "+e.Snippet)
		if score > 0 {
			matches = append(matches, scored{entry: e, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]models.ResearchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.ResearchResult{
			Title:   m.entry.Title,
			Snippet: m.entry.Snippet,
			URL:     m.entry.Ref,
		})
	}
	return out, nil
}
