package media

import "strings"

// CollapseRepeats shortens any run of an identical character longer than
// limit down to exactly limit occurrences. The platform rejects submissions
// with long repeated-character runs as spam.
func CollapseRepeats(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run <= limit {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Clamp truncates s to at most max runes.
func Clamp(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// SanitizeField prepares a free-text form value for submission: repeated
// runs collapsed first, then the length clamp, so the clamp sees the final
// text.
func SanitizeField(s string, repeatLimit, maxLen int) string {
	return Clamp(CollapseRepeats(strings.TrimSpace(s), repeatLimit), maxLen)
}
