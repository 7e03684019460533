package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultAPIBase = "https://api.openai.com/v1"
	defaultModel   = "gpt-4-turbo-preview"
)

// OpenAIProvider implements Capability against an OpenAI-compatible chat
// completions endpoint.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  zerolog.Logger
}

// Option configures the provider.
type Option func(*OpenAIProvider)

func WithBaseURL(url string) Option {
	return func(p *OpenAIProvider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

func WithModel(model string) Option {
	return func(p *OpenAIProvider) {
		if model != "" {
			p.model = model
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *OpenAIProvider) { p.client = c }
}

// NewOpenAIProvider constructs a provider for an OpenAI-compatible API.
func NewOpenAIProvider(apiKey string, logger zerolog.Logger, opts ...Option) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: defaultAPIBase,
		model:   defaultModel,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger.With().Str("component", "synth").Logger(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Summarize sends one chat completion request and returns the text.
func (p *OpenAIProvider) Summarize(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a product improvement analyst."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.4,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if body.Error != nil {
			return "", fmt.Errorf("synthesis API error (status %d): %s", resp.StatusCode, body.Error.Message)
		}
		return "", fmt.Errorf("synthesis API returned status %d", resp.StatusCode)
	}
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("synthesis API returned no choices")
	}
	return body.Choices[0].Message.Content, nil
}
