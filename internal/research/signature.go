package research

import "strings"

// stopWords are stripped when normalizing a problem description into a
// signature key.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "to": true, "was": true, "were": true,
	"with": true, "this": true, "user": true, "users": true,
}

// Signature normalizes a pain-point description into the knowledge-store
// key: lower-cased, stop words stripped, tokens joined by single spaces.
// The same description always yields the same signature.
func Signature(description string) string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopWords[f] {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
