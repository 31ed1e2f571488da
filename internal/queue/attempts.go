package queue

import (
	"fmt"
	"regexp"
	"strconv"
)

var attemptNotePattern = regexp.MustCompile(`Attempt (\d+)/\d+`)

// ParseAttempts derives a row's attempt count. The structured attempts cell
// is authoritative; older rows carry the count only inside their notes text,
// which is parsed as a fallback.
func ParseAttempts(attemptsCell, notes string) int {
	if n, err := strconv.Atoi(attemptsCell); err == nil && n >= 0 {
		return n
	}
	if m := attemptNotePattern.FindStringSubmatch(notes); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// FormatAttemptNote renders the legacy attempt marker kept in notes so rows
// written by this version stay readable to older tooling.
func FormatAttemptNote(attempt, max int) string {
	return fmt.Sprintf("Attempt %d/%d", attempt, max)
}
