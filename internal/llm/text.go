package llm

import "unicode/utf8"

// Truncate shortens s to at most n bytes plus an ellipsis, never splitting a
// UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
