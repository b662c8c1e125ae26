// Package string holds the small text normalizations shared by request models
// and derived usernames.
package string

import (
	"strings"
	"unicode"
)

// TrimStrings trims surrounding whitespace from each field in place.
func TrimStrings(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// FoldSpace lower-cases s and joins its whitespace-separated words with sep.
// "  Ada  Lovelace " folds to "ada_lovelace" with sep "_".
func FoldSpace(s, sep string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), sep)
}
