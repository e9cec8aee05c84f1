package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mjf789/spam-news/internal/domain"
)

// minUnattributed is the shortest unattributed quote, in runes, kept as a
// quote rather than treated as a scare-quoted phrase.
const minUnattributed = 20

var (
	quoted = regexp.MustCompile(`"([^"\n]+)"|“([^”\n]+)”`)

	speaker = `([A-Z][\w'’-]*(?:\s+[A-Z][\w'’-]*){0,3})`
	verb    = `(?:said|says|added|adds|noted|notes|explained|told|wrote|argued)`

	// "...," said Jane Doe / "...," Jane Doe said
	saidAfter = regexp.MustCompile(`^\s*` + verb + `\s+` + speaker)
	nameAfter = regexp.MustCompile(`^\s*` + speaker + `\s+` + verb + `\b`)
	// Jane Doe said, "..."
	nameBefore = regexp.MustCompile(speaker + `\s+` + verb + `(?:\s+\w+)?,?\s*$`)
)

// extractQuotes finds quoted passages and attributes them to a speaker
// named directly before the quote, or directly after a quote that ends
// in a comma, question mark or exclamation mark.
func extractQuotes(text string) []domain.Quote {
	var quotes []domain.Quote
	for _, loc := range quoted.FindAllStringSubmatchIndex(text, -1) {
		var inner string
		if loc[2] >= 0 {
			inner = text[loc[2]:loc[3]]
		} else {
			inner = text[loc[4]:loc[5]]
		}
		inner = strings.TrimSpace(inner)
		if inner == "" {
			continue
		}
		who := attribution(text[:loc[0]], text[loc[1]:], strings.ContainsAny(inner[len(inner)-1:], ",?!"))
		if who == "" && utf8.RuneCountInString(inner) < minUnattributed {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Text:        inner,
			Attribution: who,
			Start:       loc[0],
			End:         loc[1],
		})
	}
	return quotes
}

func attribution(before, after string, open bool) string {
	if open {
		if m := saidAfter.FindStringSubmatch(after); m != nil {
			return m[1]
		}
		if m := nameAfter.FindStringSubmatch(after); m != nil {
			return m[1]
		}
	}
	if i := strings.LastIndexAny(before, ".!?\n"); i >= 0 {
		before = before[i+1:]
	}
	if m := nameBefore.FindStringSubmatch(before); m != nil {
		return m[1]
	}
	return ""
}
