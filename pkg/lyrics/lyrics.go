// Package lyrics splits raw lyric text into stanzas, lines and word tokens and
// locates words and phrases inside it.
//
// All offsets are byte offsets into the text handed to the tokenizer, so a
// token's Offset can be used to slice the song text directly. Lengths are
// character (rune) counts.
package lyrics

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a single word occurrence.
type Token struct {
	Text   string // normalized (lowercased) word
	Offset int    // position of the first byte within the song text
}

// Line is one line of a stanza.
type Line struct {
	// Ordinal counts lines across the whole song: 0, 1, 2, ...
	Ordinal int
	Start   int
	Text    string
	Length  int
	Tokens  []Token
}

// Stanza is a block of lines separated from its neighbours by a blank line.
type Stanza struct {
	// Ordinal counts stanzas within the song: 0, 1, 2, ...
	Ordinal int
	Start   int
	Text    string
	Length  int
	Lines   []Line
}

var (
	// A line break followed by one or more blank (or blank-looking) lines.
	reStanzaBreak = regexp.MustCompile(`\n(?:[ \t\r]*\n)+`)
	reWord        = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)
)

// Normalize lowercases text and converts CRLF and lone CR line endings to LF.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ToLower(text)
}

// Tokenize breaks normalized song text into stanzas, lines and words.
// Empty stanzas and lines are dropped and do not consume an ordinal.
func Tokenize(text string) []Stanza {
	var stanzas []Stanza
	lineOrdinal := 0

	for _, span := range splitSpans(text, reStanzaBreak) {
		raw := text[span[0]:span[1]]
		if strings.TrimSpace(raw) == "" {
			continue
		}
		st := Stanza{
			Ordinal: len(stanzas),
			Start:   span[0],
			Text:    raw,
			Length:  utf8.RuneCountInString(raw),
		}

		pos := span[0]
		for _, l := range strings.Split(raw, "\n") {
			start := pos
			pos += len(l) + 1
			l = strings.TrimRight(l, "\r")
			if strings.TrimSpace(l) == "" {
				continue
			}
			st.Lines = append(st.Lines, Line{
				Ordinal: lineOrdinal,
				Start:   start,
				Text:    l,
				Length:  utf8.RuneCountInString(l),
				Tokens:  Words(l, start),
			})
			lineOrdinal++
		}
		stanzas = append(stanzas, st)
	}
	return stanzas
}

// Words returns the word tokens of text. base is added to every offset so
// callers can tokenize a line and get song-relative positions back.
func Words(text string, base int) []Token {
	locs := reWord.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, Token{
			Text:   strings.ToLower(text[loc[0]:loc[1]]),
			Offset: base + loc[0],
		})
	}
	return tokens
}

// Vocabulary returns the distinct words of text in first-seen order together
// with the number of times each one occurs.
func Vocabulary(text string) ([]string, map[string]int) {
	counts := make(map[string]int)
	var ordered []string
	for _, t := range Words(text, 0) {
		if _, ok := counts[t.Text]; !ok {
			ordered = append(ordered, t.Text)
		}
		counts[t.Text]++
	}
	return ordered, counts
}

// splitSpans returns the [start, end) ranges of text that lie between matches of sep.
func splitSpans(text string, sep *regexp.Regexp) [][2]int {
	var spans [][2]int
	prev := 0
	for _, loc := range sep.FindAllStringIndex(text, -1) {
		if loc[0] > prev {
			spans = append(spans, [2]int{prev, loc[0]})
		}
		prev = loc[1]
	}
	if prev < len(text) {
		spans = append(spans, [2]int{prev, len(text)})
	}
	return spans
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r) || unicode.IsMark(r)
}
