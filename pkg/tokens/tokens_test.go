package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	assert.Equal(t, 0, Estimate(""))
	assert.Equal(t, 2, Estimate("hello"))
	assert.Equal(t, 6, Estimate("one two three"))
}

func TestCount_NonEmpty(t *testing.T) {
	n := Count("The quick brown fox jumps over the lazy dog.")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 20)
}

func TestTruncate_UnderLimit(t *testing.T) {
	text := "short argument"
	out, n, err := Truncate(text, 500)
	require.NoError(t, err)
	assert.Equal(t, text, out)
	assert.LessOrEqual(t, n, 500)
}

func TestTruncate_OverLimit(t *testing.T) {
	text := strings.Repeat("argument evidence rebuttal ", 400)
	out, n, err := Truncate(text, 500)
	require.NoError(t, err)
	assert.Equal(t, 500, n)
	assert.Less(t, len(out), len(text))
	// The truncated text itself decodes back to the limit.
	assert.LessOrEqual(t, Count(out), 500)
}
