package normalization

import (
	"strings"

	"github.com/openfolk/contacts-backend/internal/platform/locale"
)

// Email canonicalizes an email address for exact-match comparison.
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NameTokens splits a formatted name into folded match tokens. Single-letter
// tokens (initials) are kept: "J. Smith" should still share a token with
// "John Smith" on the family name even though the initial itself rarely
// matches anything.
func NameTokens(formatted string) []string {
	folded := locale.Fold(formatted)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '.', ';', '-', '_', '/', '(', ')', '"', '\'':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
