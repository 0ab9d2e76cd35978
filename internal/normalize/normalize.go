package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Term prepares a free-text search term: surrounding whitespace is
// dropped so an all-space query is treated as empty.
func Term(t string) string {
	return strings.TrimSpace(t)
}
