// Package utils provides shared utilities for text normalization and logging.
package utils

import "strings"

// NormalizeWhitespace collapses runs of spaces and tabs to a single space on
// each line and drops leading/trailing spaces per line. Newlines are
// preserved so anchored patterns keep working. Applied to document text once
// before matching, so PDF line-wrapping artifacts (column padding, double
// spaces) do not defeat template patterns. Patterns written against literal
// multi-space column gaps must use \s+ instead.
func NormalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	lineStart := true
	for _, r := range s {
		switch r {
		case ' ', '\t':
			if !lineStart {
				space = true
			}
		case '\r':
			// CRLF folds into the LF that follows.
			space = false
			lineStart = true
		case '\n':
			b.WriteByte('\n')
			space = false
			lineStart = true
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
			lineStart = false
		}
	}
	return b.String()
}

// CleanText collapses all whitespace runs (including newlines) in s to a
// single space and trims the ends. Used on captured field values so a value
// wrapped across lines in the source comes out as one clean token.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
