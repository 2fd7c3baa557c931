package lyrics

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultContextLineBreaks is how many line breaks the context window extends
// past a match in each direction. Two breaks keep the matched line plus one
// full line on either side.
const DefaultContextLineBreaks = 2

// Occurrence is a single match of a word or phrase together with the snippet
// of text around it.
type Occurrence struct {
	Match        string // matched text as it appears in the song
	Offset       int
	ContextStart int
	ContextEnd   int
	Context      string
}

// FindOccurrences returns every whole-word, case-insensitive match of target
// in text. Words of a multi-word target may be separated by any run of
// whitespace, including a line break. lineBreaks below 1 selects
// DefaultContextLineBreaks.
func FindOccurrences(text, target string, lineBreaks int) []Occurrence {
	re := targetPattern(target)
	if re == nil {
		return nil
	}
	if lineBreaks < 1 {
		lineBreaks = DefaultContextLineBreaks
	}

	var out []Occurrence
	for pos := 0; pos < len(text); {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if !atWordBoundary(text, start, end) {
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + size
			continue
		}
		pos = end

		from, to := contextBounds(text, start, end, lineBreaks)
		snippet := strings.TrimSpace(text[from:to])
		if snippet == "" {
			continue
		}
		out = append(out, Occurrence{
			Match:        text[start:end],
			Offset:       start,
			ContextStart: from,
			ContextEnd:   to,
			Context:      snippet,
		})
	}
	return out
}

func targetPattern(target string) *regexp.Regexp {
	fields := strings.Fields(target)
	if len(fields) == 0 {
		return nil
	}
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(fields, `\s+`))
}

// atWordBoundary reports whether text[start:end] is not glued to a word
// character on either side.
func atWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(text[start:])
		if isWordRune(r) && isWordRune(first) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		last, _ := utf8.DecodeLastRuneInString(text[:end])
		if isWordRune(r) && isWordRune(last) {
			return false
		}
	}
	return true
}

// contextBounds widens [start, end) until lineBreaks line breaks have been
// crossed in each direction, clamped to the text.
func contextBounds(text string, start, end, lineBreaks int) (int, int) {
	from := 0
	for i, seen := start-1, 0; i >= 0; i-- {
		if text[i] != '\n' {
			continue
		}
		if seen++; seen >= lineBreaks {
			from = i + 1
			break
		}
	}

	to := len(text)
	for i, seen := end, 0; i < len(text); i++ {
		if text[i] != '\n' {
			continue
		}
		if seen++; seen >= lineBreaks {
			to = i
			break
		}
	}
	return from, to
}
