package lyrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOccurrencesWithContext(t *testing.T) {
	got := FindOccurrences(fixture, "cat", DefaultContextLineBreaks)
	require.Len(t, got, 2)

	assert.Equal(t, 4, got[0].Offset)
	assert.Equal(t, 0, got[0].ContextStart)
	assert.Equal(t, 22, got[0].ContextEnd)
	assert.Equal(t, "the cat sat\non the mat", got[0].Context)

	assert.Equal(t, 28, got[1].Offset)
	assert.Equal(t, 23, got[1].ContextStart)
	assert.Equal(t, len(fixture), got[1].ContextEnd)
	assert.Equal(t, "the cat ran", got[1].Context)

	for _, o := range got {
		assert.Contains(t, o.Context, "cat")
		assert.Equal(t, "cat", o.Match)
	}
}

func TestFindOccurrencesSingleLineBreak(t *testing.T) {
	got := FindOccurrences("one\ntwo cat two\nthree", "cat", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "two cat two", got[0].Context)
}

func TestFindOccurrencesWholeWordCaseInsensitive(t *testing.T) {
	text := "Cat concatenate CAT cats bobcat cat_ cat."
	got := FindOccurrences(text, "cat", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "Cat", got[0].Match)
	assert.Equal(t, "CAT", got[1].Match)
	assert.Equal(t, strings.LastIndex(text, "cat."), got[2].Offset)
}

func TestFindOccurrencesAtTextEdges(t *testing.T) {
	got := FindOccurrences("cat", "cat", DefaultContextLineBreaks)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ContextStart)
	assert.Equal(t, 3, got[0].ContextEnd)
	assert.Equal(t, "cat", got[0].Context)

	text := "first\nsecond\nlast cat"
	got = FindOccurrences(text, "cat", 5)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ContextStart)
	assert.Equal(t, len(text), got[0].ContextEnd)
}

func TestFindOccurrencesPhraseAcrossWhitespace(t *testing.T) {
	text := "the cat sat\non the mat\n\nthe cat ran"
	got := FindOccurrences(text, "sat on", DefaultContextLineBreaks)
	require.Len(t, got, 1)
	assert.Equal(t, "sat\non", got[0].Match)
	assert.Equal(t, 8, got[0].Offset)

	got = FindOccurrences(text, "  THE   cat ", DefaultContextLineBreaks)
	assert.Len(t, got, 2)
}

func TestFindOccurrencesEmptyTarget(t *testing.T) {
	assert.Empty(t, FindOccurrences(fixture, "   ", 1))
	assert.Empty(t, FindOccurrences("", "cat", 1))
	assert.Empty(t, FindOccurrences(fixture, "dog", 1))
}

func TestFindOccurrencesQuotesRegexMeta(t *testing.T) {
	got := FindOccurrences("what? (yeah) what.", "(yeah)", 1)
	require.Len(t, got, 1)
	assert.Equal(t, 6, got[0].Offset)
}
