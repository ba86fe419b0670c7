package channels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageShortContentUntouched(t *testing.T) {
	chunks := SplitMessage("hello world", 100)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestSplitMessagePrefersNewline(t *testing.T) {
	content := "first line\nsecond line that goes on"
	chunks := SplitMessage(content, 20)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "first line", chunks[0])
	assert.Equal(t, "second line that", chunks[1])
}

func TestSplitMessagePrefersSentenceOverClause(t *testing.T) {
	content := "One sentence here. Another, with a clause, follows after"
	chunks := SplitMessage(content, 30)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "One sentence here.", chunks[0])
}

func TestSplitMessageFallsBackToClause(t *testing.T) {
	content := "alpha beta gamma, delta epsilon zeta eta theta"
	chunks := SplitMessage(content, 20)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "alpha beta gamma,", chunks[0])
}

func TestSplitMessageNeverMidWordWhenBoundaryExists(t *testing.T) {
	content := strings.Repeat("word ", 100)
	for _, chunk := range SplitMessage(content, 23) {
		for _, w := range strings.Fields(chunk) {
			assert.Equal(t, "word", w)
		}
	}
}

func TestSplitMessageHardCutWithoutBoundary(t *testing.T) {
	content := strings.Repeat("a", 50)
	chunks := SplitMessage(content, 20)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("a", 20), chunks[0])
	assert.Equal(t, strings.Repeat("a", 20), chunks[1])
	assert.Equal(t, strings.Repeat("a", 10), chunks[2])
}

func TestSplitMessageRespectsLimitInRunes(t *testing.T) {
	content := strings.Repeat("héllo wörld ", 50)
	for _, chunk := range SplitMessage(content, 40) {
		assert.LessOrEqual(t, len([]rune(chunk)), 40)
	}
}

func TestSplitMessageTrimsWhitespaceAtBoundaries(t *testing.T) {
	content := "line one\n\n\nline two that is definitely long enough"
	for _, chunk := range SplitMessage(content, 15) {
		assert.Equal(t, strings.TrimSpace(chunk), chunk)
		assert.NotEmpty(t, chunk)
	}
}

func TestSplitMessageReassemblesAllWords(t *testing.T) {
	content := "The quick brown fox jumps over the lazy dog. " +
		"Pack my box with five dozen liquor jugs, then rest."
	var got []string
	for _, chunk := range SplitMessage(content, 25) {
		got = append(got, strings.Fields(chunk)...)
	}
	assert.Equal(t, strings.Fields(content), got)
}
