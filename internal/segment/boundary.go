package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mjf789/spam-news/internal/domain"
)

var paragraphBreak = regexp.MustCompile(`\r?\n[ \t]*\r?\n\s*`)

var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true,
	"sr.": true, "jr.": true, "vs.": true, "etc.": true, "e.g.": true, "i.e.": true,
	"inc.": true, "ltd.": true, "co.": true, "corp.": true, "u.s.": true, "u.k.": true,
	"jan.": true, "feb.": true, "mar.": true, "apr.": true, "jun.": true, "jul.": true,
	"aug.": true, "sep.": true, "sept.": true, "oct.": true, "nov.": true, "dec.": true,
	"st.": true, "no.": true, "vol.": true, "gov.": true, "sen.": true, "rep.": true,
}

// sentenceSpans splits text into sentence spans covering every
// non-whitespace byte. Offsets are absolute.
func sentenceSpans(text string) []domain.Span {
	var spans []domain.Span
	start := skipSpace(text, 0)
	for i := 0; i < len(text); i++ {
		if !isSentenceEnd(text, i) {
			continue
		}
		end := i + 1
		for end < len(text) && isClosing(text[end]) {
			end++
		}
		if end > start {
			spans = append(spans, domain.Span{Start: start, End: end})
		}
		start = skipSpace(text, end)
		i = end - 1
	}
	if tail := trimRight(text, len(text)); tail > start {
		spans = append(spans, domain.Span{Start: start, End: tail})
	}
	return spans
}

// paragraphSpans splits on blank lines.
func paragraphSpans(text string) []domain.Span {
	var spans []domain.Span
	start := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		if s, e := skipSpace(text, start), trimRight(text, loc[0]); e > s {
			spans = append(spans, domain.Span{Start: s, End: e})
		}
		start = loc[1]
	}
	if s, e := skipSpace(text, start), trimRight(text, len(text)); e > s {
		spans = append(spans, domain.Span{Start: s, End: e})
	}
	return spans
}

// isSentenceEnd checks if byte i terminates a sentence.
func isSentenceEnd(text string, i int) bool {
	c := text[i]
	if c != '.' && c != '!' && c != '?' {
		return false
	}

	j := i + 1
	for j < len(text) && isClosing(text[j]) {
		j++
	}
	if j >= len(text) {
		return true
	}
	if !isSpace(text[j]) {
		return false
	}

	if c == '.' {
		if isAbbreviation(text, i) {
			return false
		}
		// Single initial such as "J. Smith".
		if i >= 1 && unicode.IsUpper(rune(text[i-1])) && (i < 2 || !unicode.IsLetter(rune(text[i-2]))) {
			return false
		}
	}

	next := skipSpace(text, j)
	if next >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[next:])
	return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '\'' || r == '“' || r == '‘' || r == '('
}

func isAbbreviation(text string, i int) bool {
	start := i
	for start > 0 && (unicode.IsLetter(rune(text[start-1])) || text[start-1] == '.') {
		start--
	}
	if start >= i {
		return false
	}
	return abbreviations[strings.ToLower(text[start:i+1])]
}

func isClosing(c byte) bool {
	return c == '"' || c == '\'' || c == ')' || c == ']'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}

func skipSpace(text string, i int) int {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i
}

func trimRight(text string, end int) int {
	for end > 0 && isSpace(text[end-1]) {
		end--
	}
	return end
}
