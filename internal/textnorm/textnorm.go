// Package textnorm normalizes free text pulled from posts and comments before
// it is stored.
package textnorm

import "strings"

// Clean collapses every run of Unicode whitespace (newlines, tabs and
// non-breaking spaces included) into a single space and trims both ends.
// Empty input yields "".
func Clean(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(s), " ")
}

// CleanPtr is Clean for values that may be absent. A nil pointer yields "".
func CleanPtr(s *string) string {
	if s == nil {
		return ""
	}
	return Clean(*s)
}

// Join cleans the concatenation of parts separated by single spaces. Empty
// parts do not leave stray separators behind.
func Join(parts ...string) string {
	return Clean(strings.Join(parts, " "))
}
