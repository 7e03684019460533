package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/models"
)

const defaultPapersEndpoint = "https://export.arxiv.org/api/query"

// PapersSource searches arXiv for academic work on a problem.
type PapersSource struct {
	id       string
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewPapersSource creates an arXiv search source.
func NewPapersSource(id, endpoint string, logger zerolog.Logger) *PapersSource {
	if endpoint == "" {
		endpoint = defaultPapersEndpoint
	}
	return &PapersSource{
		id:       id,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With().Str("component", "source."+id).Logger(),
	}
}

func (p *PapersSource) ID() string { return p.id }

// atomFeed is the subset of the arXiv Atom response the source consumes.
type atomFeed struct {
	Entries []struct {
		ID      string `xml:"id"`
		Title   string `xml:"title"`
		Summary string `xml:"summary"`
	} `xml:"entry"`
}

// Search queries the arXiv query API.
func (p *PapersSource) Search(ctx context.Context, query string, limit int) ([]models.ResearchResult, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build papers request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paper search returned status %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode papers response: %w", err)
	}

	out := make([]models.ResearchResult, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		snippet := strings.TrimSpace(e.Summary)
		if len(snippet) > 280 {
			snippet = snippet[:280]
		}
		out = append(out, models.ResearchResult{
			Title:   strings.TrimSpace(e.Title),
			Snippet: snippet,
			URL:     e.ID,
		})
	}
	return out, nil
}
