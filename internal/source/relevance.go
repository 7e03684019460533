package source

import "strings"

// Relevance scores how well text matches the query by lexical token overlap:
// the fraction of distinct query tokens that appear in the text. Cheap and
// local; no dependency on the synthesis capability.
func Relevance(query, text string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := make(map[string]bool)
	for _, t := range tokenize(text) {
		textTokens[t] = true
	}

	seen := make(map[string]bool, len(queryTokens))
	matched := 0
	distinct := 0
	for _, t := range queryTokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		distinct++
		if textTokens[t] {
			matched++
		}
	}
	if distinct == 0 {
		return 0
	}
	return float64(matched) / float64(distinct)
}

// Similarity is a symmetric token-overlap measure (Jaccard) used for
// deduplication of near-identical results.
func Similarity(a, b string) float64 {
	setA := make(map[string]bool)
	for _, t := range tokenize(a) {
		setA[t] = true
	}
	setB := make(map[string]bool)
	for _, t := range tokenize(b) {
		setB[t] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
