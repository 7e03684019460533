package source

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lumenforge/insight/internal/config"
)

// BuildRegistry constructs a Registry from the configured source specs.
func BuildRegistry(specs []config.SourceSpec, githubToken string, logger zerolog.Logger) (*Registry, error) {
	registry := NewRegistry(logger)
	for _, spec := range config.EnabledSources(specs) {
		switch spec.Kind {
		case "forum":
			registry.Register(NewForumSource(spec.ID, spec.Endpoint, spec.Site, logger))
		case "tracker":
			registry.Register(NewTrackerSource(spec.ID, githubToken, logger))
		case "papers":
			registry.Register(NewPapersSource(spec.ID, spec.Endpoint, logger))
		case "corpus":
			registry.Register(NewCorpusSource(spec.ID, nil))
		default:
			return nil, fmt.Errorf("source %q: unknown kind %q", spec.ID, spec.Kind)
		}
	}
	return registry, nil
}
