// Package lexicon compiles keyword lists into case-insensitive,
// plural-tolerant matchers that report byte offsets.
package lexicon

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Match is one term occurrence in a text.
type Match struct {
	Term  string
	Start int
	End   int
}

// Matcher finds occurrences of a fixed set of terms.
type Matcher struct {
	terms []string
	expr  *regexp.Regexp
}

// Compile builds a matcher. Longer terms win when terms overlap, so
// "women of color" is preferred over "women". Empty terms are ignored.
func Compile(terms []string) *Matcher {
	uniq := map[string]bool{}
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = Normalize(t)
		if t == "" || uniq[t] {
			continue
		}
		uniq[t] = true
		cleaned = append(cleaned, t)
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		if len(cleaned[i]) != len(cleaned[j]) {
			return len(cleaned[i]) > len(cleaned[j])
		}
		return cleaned[i] < cleaned[j]
	})

	m := &Matcher{terms: cleaned}
	if len(cleaned) == 0 {
		return m
	}

	alts := make([]string, len(cleaned))
	for i, t := range cleaned {
		alts[i] = "(" + termPattern(t) + ")"
	}
	m.expr = regexp.MustCompile("(?i)" + strings.Join(alts, "|"))
	return m
}

// Patterns are the named number-bearing expressions a term list may
// reference as "{name}". They recognize statistics the way a plain term
// cannot: "1%", "12.5 percent", "three times more".
var Patterns = map[string]string{
	"percentage": `\b\d+(?:[.,]\d+)?\s*(?:%|percent\b|per cent\b)`,
	"times_more": `\b(?:\d+(?:\.\d+)?|two|three|four|five|ten)\s*times\s+(?:more|higher|greater|as many)\b`,
	"times_less": `\b(?:\d+(?:\.\d+)?|two|three|four|five|ten)\s*times\s+(?:less|lower|fewer)\b`,
	"ratio":      `\b(?:\d+|one|two|three|four|five)\s+(?:in|out of)\s+(?:\d+|two|three|four|five|ten|every)\b`,
}

// PatternName returns the pattern a "{name}" term refers to.
func PatternName(term string) (string, bool) {
	if len(term) < 3 || term[0] != '{' || term[len(term)-1] != '}' {
		return "", false
	}
	return term[1 : len(term)-1], true
}

// ValidateTerm reports an error for a "{name}" term naming no pattern.
func ValidateTerm(term string) error {
	name, ok := PatternName(Normalize(term))
	if !ok {
		return nil
	}
	if _, known := Patterns[name]; !known {
		return fmt.Errorf("unknown pattern %q", term)
	}
	return nil
}

// Normalize lower-cases a term and collapses inner whitespace.
func Normalize(term string) string {
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

// termPattern anchors a term on word boundaries where the term itself
// starts or ends with a word character, and accepts an "s"/"es" plural.
// Pattern references expand to their expression unchanged.
func termPattern(term string) string {
	if name, ok := PatternName(term); ok {
		if expr, known := Patterns[name]; known {
			return expr
		}
	}
	words := strings.Fields(term)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	body := strings.Join(words, `[\s\-]+`)

	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)

	var b strings.Builder
	if isWord(first) {
		b.WriteString(`\b`)
	}
	b.WriteString(body)
	if isWord(last) {
		b.WriteString(`(?:e?s)?\b`)
	}
	return b.String()
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Terms returns the normalized terms in match-priority order.
func (m *Matcher) Terms() []string {
	out := make([]string, len(m.terms))
	copy(out, m.terms)
	return out
}

// Empty reports whether the matcher has no terms.
func (m *Matcher) Empty() bool { return m == nil || m.expr == nil }

// FindAll returns non-overlapping matches in text order.
func (m *Matcher) FindAll(text string) []Match {
	if m.Empty() {
		return nil
	}
	locs := m.expr.FindAllStringSubmatchIndex(text, -1)
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		term := ""
		for g := 1; g*2 < len(loc); g++ {
			if loc[2*g] >= 0 {
				term = m.terms[g-1]
				break
			}
		}
		matches = append(matches, Match{Term: term, Start: loc[0], End: loc[1]})
	}
	return matches
}

// Count returns the number of matches in text.
func (m *Matcher) Count(text string) int {
	return len(m.FindAll(text))
}

// Mask replaces the byte ranges of matches with spaces so later matchers
// cannot see them. Offsets are preserved.
func Mask(text string, matches []Match) string {
	if len(matches) == 0 {
		return text
	}
	b := []byte(text)
	for _, m := range matches {
		for i := m.Start; i < m.End && i < len(b); i++ {
			b[i] = ' '
		}
	}
	return string(b)
}
