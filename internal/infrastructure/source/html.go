package source

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var markupExpr = regexp.MustCompile(`(?i)</?(p|div|br|span|article|section|h[1-6]|li|ul|ol|blockquote|a|em|strong|b|i|html|body)\b[^>]*>`)

// blockSelector lists elements whose text forms a paragraph.
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote"

// LooksLikeHTML reports whether content carries HTML markup.
func LooksLikeHTML(content string) bool {
	return markupExpr.MatchString(content)
}

// CleanHTML reduces HTML content to plain paragraphs separated by blank
// lines. Script, style and navigation elements are dropped. Content without
// block elements falls back to the document's visible text.
func CleanHTML(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, figure").Remove()

	var paragraphs []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are visited on their own.
		if s.Find(blockSelector).Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return collapse(doc.Find("body").Text()), nil
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
