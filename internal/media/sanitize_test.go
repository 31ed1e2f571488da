package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseRepeats(t *testing.T) {
	assert.Equal(t, "wooow", CollapseRepeats("wooooooow", 3))
	assert.Equal(t, "abc", CollapseRepeats("abc", 4))
	assert.Equal(t, "!!!!", CollapseRepeats("!!!!!!!!!!", 4))
	assert.Equal(t, "", CollapseRepeats("", 4))
}

func TestCollapseRepeatsRuneSafe(t *testing.T) {
	assert.Equal(t, "گگ", CollapseRepeats("گگگگ", 2))
}

func TestCollapseRepeatsDisabled(t *testing.T) {
	assert.Equal(t, "aaaa", CollapseRepeats("aaaa", 0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, "abc", Clamp("abcdef", 3))
	assert.Equal(t, "abc", Clamp("abc", 10))
	assert.Equal(t, "abc", Clamp("abc", 0))
}

func TestClampRuneSafe(t *testing.T) {
	assert.Equal(t, "سل", Clamp("سلام", 2))
}

func TestSanitizeField(t *testing.T) {
	// Collapse happens before the clamp.
	assert.Equal(t, "heyyy", SanitizeField("  heyyyyyyyy there  ", 3, 5))
}
