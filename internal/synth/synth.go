// Package synth defines the external text-synthesis capability behind an
// interface, so the core never depends on a specific model API.
package synth

import "context"

// Capability is the abstract "summarize this into text" collaborator.
// Calls may fail or time out; every caller carries a fallback path.
type Capability interface {
	// Summarize sends a prompt and returns the capability's best-effort text.
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Plan is the structured output the synthesizer asks the capability for.
type Plan struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Implementation string `json:"implementation"`
	Impact         string `json:"impact"` // low|medium|high
	Effort         string `json:"effort"` // low|medium|high
}
