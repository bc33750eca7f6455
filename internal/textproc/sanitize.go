// Package textproc holds the two text transforms that sit at the edges of the
// pipelines: Sanitize for document text going into the index, and Clean for
// generated answers coming out of the model.
package textproc

import "strings"

// Sanitize reduces text to printable ASCII before it is embedded and stored.
// Runes at or above DEL (and invalid UTF-8) are dropped, as are control
// characters other than tab, newline and carriage return. The result is
// trimmed.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r >= 0x7f {
			continue
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}
