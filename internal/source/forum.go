package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/models"
)

const defaultForumEndpoint = "https://api.stackexchange.com/2.3/search/advanced"

// ForumSource searches a Stack Exchange site for community answers.
type ForumSource struct {
	id       string
	endpoint string
	site     string
	client   *http.Client
	logger   zerolog.Logger
}

// NewForumSource creates a Stack Exchange search source.
// endpoint may be empty to use the public API.
func NewForumSource(id, endpoint, site string, logger zerolog.Logger) *ForumSource {
	if endpoint == "" {
		endpoint = defaultForumEndpoint
	}
	if site == "" {
		site = "stackoverflow"
	}
	return &ForumSource{
		id:       id,
		endpoint: endpoint,
		site:     site,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With().Str("component", "source."+id).Logger(),
	}
}

func (f *ForumSource) ID() string { return f.id }

// Search queries the search/advanced endpoint sorted by votes.
func (f *ForumSource) Search(ctx context.Context, query string, limit int) ([]models.ResearchResult, error) {
	if len(query) > 100 {
		query = query[:100]
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("site", f.site)
	params.Set("sort", "votes")
	params.Set("pagesize", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build forum request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forum search returned status %d", resp.StatusCode)
	}

	var body struct {
		Items []struct {
			Title string   `json:"title"`
			Link  string   `json:"link"`
			Score int      `json:"score"`
			Tags  []string `json:"tags"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode forum response: %w", err)
	}

	out := make([]models.ResearchResult, 0, len(body.Items))
	for _, item := range body.Items {
		out = append(out, models.ResearchResult{
			Title:   item.Title,
			Snippet: strings.Join(item.Tags, " "),
			URL:     item.Link,
		})
	}
	return out, nil
}
