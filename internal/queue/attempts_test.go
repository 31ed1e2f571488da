package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAttemptsStructuredColumn(t *testing.T) {
	assert.Equal(t, 2, ParseAttempts("2", ""))
	assert.Equal(t, 0, ParseAttempts("0", "Attempt 3/3"))
}

func TestParseAttemptsNotesFallback(t *testing.T) {
	assert.Equal(t, 2, ParseAttempts("", "Denied: slow down (Attempt 2/3)"))
	assert.Equal(t, 0, ParseAttempts("", "no marker here"))
	assert.Equal(t, 0, ParseAttempts("", ""))
}

func TestParseAttemptsIgnoresGarbage(t *testing.T) {
	assert.Equal(t, 0, ParseAttempts("many", ""))
	assert.Equal(t, 0, ParseAttempts("-1", ""))
}

func TestFormatAttemptNote(t *testing.T) {
	assert.Equal(t, "Attempt 2/3", FormatAttemptNote(2, 3))
}
