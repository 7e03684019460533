// Package source abstracts the external knowledge sources (forum search,
// issue-tracker search, paper search, best-practice corpus) behind one
// Search operation and a registry, and fans queries out across them.
package source

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/models"
)

// Source is implemented by every external knowledge source.
// Adding a source never touches synthesizer logic: implementations register
// in the Registry under their id.
type Source interface {
	// ID returns the stable source identifier.
	ID() string

	// Search queries the source. Failures and timeouts are expected and
	// handled by the gateway per source.
	Search(ctx context.Context, query string, limit int) ([]models.ResearchResult, error)
}

// Registry holds the configured sources, keyed by id.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
	logger  zerolog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sources: make(map[string]Source),
		logger:  logger.With().Str("component", "source.registry").Logger(),
	}
}

// Register adds a source. A duplicate id replaces the previous registration.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.ID()] = s
	r.logger.Info().Str("source", s.ID()).Msg("source registered")
}

// Get returns the source for id, if registered.
func (r *Registry) Get(id string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	return s, ok
}

// IDs returns all registered source ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	return ids
}
