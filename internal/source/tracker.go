package source

import (
	"context"
	"fmt"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/models"
)

// TrackerSource searches closed GitHub issues for prior art on a problem.
type TrackerSource struct {
	id     string
	client *github.Client
	logger zerolog.Logger
}

// NewTrackerSource creates an issue-tracker search source. token may be
// empty; unauthenticated requests work at lower rate limits.
func NewTrackerSource(id, token string, logger zerolog.Logger) *TrackerSource {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &TrackerSource{
		id:     id,
		client: client,
		logger: logger.With().Str("component", "source."+id).Logger(),
	}
}

func (t *TrackerSource) ID() string { return t.id }

// Search queries the issue search API for closed issues, sorted by reactions.
func (t *TrackerSource) Search(ctx context.Context, query string, limit int) ([]models.ResearchResult, error) {
	if len(query) > 100 {
		query = query[:100]
	}
	opts := &github.SearchOptions{
		Sort:        "reactions",
		ListOptions: github.ListOptions{PerPage: limit},
	}
	res, _, err := t.client.Search.Issues(ctx, query+" is:closed", opts)
	if err != nil {
		return nil, fmt.Errorf("issue search: %w", err)
	}

	out := make([]models.ResearchResult, 0, len(res.Issues))
	for _, issue := range res.Issues {
		snippet := issue.GetBody()
		if len(snippet) > 280 {
			snippet = snippet[:280]
		}
		out = append(out, models.ResearchResult{
			Title:   issue.GetTitle(),
			Snippet: snippet,
			URL:     issue.GetHTMLURL(),
		})
	}
	return out, nil
}
