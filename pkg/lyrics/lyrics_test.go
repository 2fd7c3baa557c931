package lyrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "the cat sat\non the mat\n\nthe cat ran"

func TestNormalize(t *testing.T) {
	assert.Equal(t, "hello\nworld\nagain", Normalize("Hello\r\nWORLD\rAgain"))
}

func TestTokenizeStanzasAndLines(t *testing.T) {
	stanzas := Tokenize(fixture)
	require.Len(t, stanzas, 2)

	first := stanzas[0]
	assert.Equal(t, 0, first.Ordinal)
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, "the cat sat\non the mat", first.Text)
	assert.Equal(t, 22, first.Length)
	require.Len(t, first.Lines, 2)
	assert.Equal(t, 0, first.Lines[0].Ordinal)
	assert.Equal(t, 1, first.Lines[1].Ordinal)
	assert.Equal(t, 12, first.Lines[1].Start)
	assert.Equal(t, "on the mat", first.Lines[1].Text)

	second := stanzas[1]
	assert.Equal(t, 1, second.Ordinal)
	assert.Equal(t, 24, second.Start)
	require.Len(t, second.Lines, 1)
	// line ordinals keep counting across stanzas
	assert.Equal(t, 2, second.Lines[0].Ordinal)
}

func TestTokenizeWordOffsetsAreSongRelative(t *testing.T) {
	stanzas := Tokenize(fixture)
	tokens := stanzas[1].Lines[0].Tokens
	require.Len(t, tokens, 3)
	assert.Equal(t, Token{Text: "the", Offset: 24}, tokens[0])
	assert.Equal(t, Token{Text: "cat", Offset: 28}, tokens[1])
	assert.Equal(t, "cat", fixture[tokens[1].Offset:tokens[1].Offset+3])
}

func TestTokenizeDropsEmptyFragments(t *testing.T) {
	text := "\n\nfirst line\n\n\n  \n\nsecond   \n\n\n"
	stanzas := Tokenize(text)
	require.Len(t, stanzas, 2)
	assert.Equal(t, "first line", stanzas[0].Lines[0].Text)
	assert.Equal(t, 1, stanzas[1].Ordinal)
	assert.Equal(t, 1, stanzas[1].Lines[0].Ordinal)
}

func TestTokenizeEmptyText(t *testing.T) {
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("\n\n \n"))
}

func TestWordsIgnorePunctuation(t *testing.T) {
	tokens := Words(`"Don't" stop, BELIEVIN'... café_2!`, 10)
	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}
	assert.Equal(t, []string{"don", "t", "stop", "believin", "café_2"}, texts)
	assert.Equal(t, 11, tokens[0].Offset)
}

func TestVocabulary(t *testing.T) {
	ordered, counts := Vocabulary(fixture)
	assert.Equal(t, []string{"the", "cat", "sat", "on", "mat", "ran"}, ordered)
	assert.Equal(t, 3, counts["the"])
	assert.Equal(t, 2, counts["cat"])
	assert.Equal(t, 1, counts["ran"])
}
