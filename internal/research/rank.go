package research

import (
	"math"
	"sort"

	"github.com/lumenforge/insight/internal/models"
)

// Rank assigns each suggestion a priority in 1..5 and returns the slice
// sorted by descending priority, then severity, then recency. Pure and
// deterministic: the same inputs always produce the same priorities. Safe
// for concurrent use on disjoint batches.
func Rank(suggestions []models.Suggestion) []models.Suggestion {
	for i := range suggestions {
		suggestions[i].Priority = priorityFor(&suggestions[i])
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return suggestions
}

// priorityFor scores severity, expected impact and (inverted) effort.
func priorityFor(sg *models.Suggestion) int {
	score := 0.5*sg.Severity +
		0.3*sg.ExpectedImpact.Weight() +
		0.2*(1-sg.EffortEstimate.Weight())

	p := int(math.Round(score * 5))
	if p < 1 {
		p = 1
	}
	if p > 5 {
		p = 5
	}
	return p
}
