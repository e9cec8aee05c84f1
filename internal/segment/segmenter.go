// Package segment splits article text into overlapping windows of
// sentences or paragraphs, or into sentence windows centred on leadership
// terms, and tags units with leadership context and quotes.
package segment

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/lexicon"
)

// Mode selects the base span used for windowing.
type Mode string

const (
	ModeSentence  Mode = "sentence"
	ModeParagraph Mode = "paragraph"
	// ModeKeyword builds one unit per run of sentences around leadership
	// terms; articles without such terms yield no units.
	ModeKeyword Mode = "keyword"
)

// Config controls window construction. Lengths are in runes.
type Config struct {
	Mode             Mode
	WindowSize       int
	Overlap          int
	MinUnitLength    int
	MinContentLength int
	// LeadershipTerms tag units naming a leadership role and centre the
	// keyword mode's units.
	LeadershipTerms []string
	// KeywordContext is the number of sentences kept on each side of a
	// leadership term in keyword mode.
	KeywordContext int
}

// DefaultLeadershipTerms are the leadership roles recognized when a
// configuration names none.
func DefaultLeadershipTerms() []string {
	return []string{
		"ceo", "executive", "director", "manager", "leader", "president",
		"vp", "vice president", "board", "c-suite", "leadership", "management",
		"supervisor", "chief", "head", "chair", "chairwoman", "chairman",
		"partner", "principal", "founder",
	}
}

// DefaultConfig mirrors the three-sentence, one-overlap windows used by
// the human coding comparison.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeSentence,
		WindowSize:       3,
		Overlap:          1,
		MinUnitLength:    10,
		MinContentLength: 200,
		LeadershipTerms:  DefaultLeadershipTerms(),
		KeywordContext:   1,
	}
}

// Validate checks window arithmetic.
func (c Config) Validate() error {
	if c.Mode != ModeSentence && c.Mode != ModeParagraph && c.Mode != ModeKeyword {
		return &domain.ConfigurationError{Field: "segmentation.mode", Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	if c.WindowSize < 1 {
		return &domain.ConfigurationError{Field: "segmentation.windowSize", Reason: "must be at least 1"}
	}
	if c.Overlap < 0 || c.Overlap >= c.WindowSize {
		return &domain.ConfigurationError{Field: "segmentation.overlap", Reason: "must be in [0, windowSize)"}
	}
	if c.MinUnitLength < 0 || c.MinContentLength < 0 {
		return &domain.ConfigurationError{Field: "segmentation", Reason: "minimum lengths must not be negative"}
	}
	if c.KeywordContext < 0 {
		return &domain.ConfigurationError{Field: "segmentation.keywordContext", Reason: "must not be negative"}
	}
	if c.Mode == ModeKeyword && lexicon.Compile(c.LeadershipTerms).Empty() {
		return &domain.ConfigurationError{Field: "segmentation.leadershipTerms", Reason: "keyword mode needs at least one term"}
	}
	return nil
}

// Segmenter is stateless and safe for concurrent use.
type Segmenter struct {
	cfg        Config
	leadership *lexicon.Matcher
}

// New validates cfg and returns a segmenter.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg, leadership: lexicon.Compile(cfg.LeadershipTerms)}, nil
}

// Segment rejects articles below the minimum content length and returns a
// lazily computed segmentation.
func (s *Segmenter) Segment(article domain.Article) (*Segmentation, error) {
	trimmed := strings.TrimSpace(article.Content)
	if n := utf8.RuneCountInString(trimmed); n < s.cfg.MinContentLength || n == 0 {
		return nil, &domain.ValidationError{
			ArticleID: article.ID,
			Reason:    fmt.Sprintf("content length %d below minimum %d", n, s.cfg.MinContentLength),
		}
	}
	return &Segmentation{text: article.Content, cfg: s.cfg, leadership: s.leadership}, nil
}

// Segmentation is a restartable sequence of text units over one text.
type Segmentation struct {
	text       string
	cfg        Config
	leadership *lexicon.Matcher

	once    sync.Once
	spans   []domain.Span
	leaders []bool
	bounds  [][2]int
	quotes  []domain.Quote
}

func (g *Segmentation) compute() {
	g.once.Do(func() {
		var raw []domain.Span
		if g.cfg.Mode == ModeParagraph {
			raw = paragraphSpans(g.text)
		} else {
			raw = sentenceSpans(g.text)
		}
		g.spans = mergeShort(g.text, raw, g.cfg.MinUnitLength)
		g.leaders = make([]bool, len(g.spans))
		for i := range g.spans {
			g.spans[i].Seq = i
			sp := g.spans[i]
			g.leaders[i] = g.leadership.Count(g.text[sp.Start:sp.End]) > 0
		}
		if g.cfg.Mode == ModeKeyword {
			g.bounds = keywordBounds(g.leaders, g.cfg.KeywordContext)
		} else {
			g.bounds = windowBounds(len(g.spans), g.cfg.WindowSize, g.cfg.Overlap)
		}
		g.quotes = extractQuotes(g.text)
	})
}

// Spans returns the base spans, computing them on first use.
func (g *Segmentation) Spans() []domain.Span {
	g.compute()
	return g.spans
}

// Quotes returns the quoted passages of the text.
func (g *Segmentation) Quotes() []domain.Quote {
	g.compute()
	return g.quotes
}

// Len returns the number of units the sequence yields.
func (g *Segmentation) Len() int {
	g.compute()
	return len(g.bounds)
}

// Units yields the windows in order. Every call restarts from the first
// unit without recomputing span boundaries.
func (g *Segmentation) Units() iter.Seq[domain.TextUnit] {
	return func(yield func(domain.TextUnit) bool) {
		g.compute()
		for i, b := range g.bounds {
			covered := make([]domain.Span, b[1]-b[0])
			copy(covered, g.spans[b[0]:b[1]])
			start, end := covered[0].Start, covered[len(covered)-1].End
			unit := domain.TextUnit{
				Index:      i,
				Start:      start,
				End:        end,
				Text:       g.text[start:end],
				Spans:      covered,
				Leadership: slices.Contains(g.leaders[b[0]:b[1]], true),
				Quotes:     overlapping(g.quotes, start, end),
			}
			if !yield(unit) {
				return
			}
		}
	}
}

// Slice materializes the units.
func (g *Segmentation) Slice() []domain.TextUnit {
	units := make([]domain.TextUnit, 0, g.Len())
	for u := range g.Units() {
		units = append(units, u)
	}
	return units
}

// windowBounds returns half-open [first, last) span ranges. A tail window
// is added when the regular stride leaves trailing spans uncovered.
func windowBounds(n, size, overlap int) [][2]int {
	if n == 0 {
		return nil
	}
	if n <= size {
		return [][2]int{{0, n}}
	}
	step := size - overlap
	var bounds [][2]int
	for i := 0; i+size <= n; i += step {
		bounds = append(bounds, [2]int{i, i + size})
	}
	if last := bounds[len(bounds)-1][1]; last < n {
		bounds = append(bounds, [2]int{last - overlap, n})
	}
	return bounds
}

// keywordBounds returns one range per run of leadership spans widened by
// context spans on each side. Ranges that would share a span are merged,
// so no span belongs to two units.
func keywordBounds(leaders []bool, context int) [][2]int {
	var bounds [][2]int
	for i, hit := range leaders {
		if !hit {
			continue
		}
		lo, hi := max(0, i-context), min(len(leaders), i+context+1)
		if n := len(bounds); n > 0 && lo < bounds[n-1][1] {
			bounds[n-1][1] = hi
			continue
		}
		bounds = append(bounds, [2]int{lo, hi})
	}
	return bounds
}

func overlapping(quotes []domain.Quote, start, end int) []domain.Quote {
	var out []domain.Quote
	for _, q := range quotes {
		if q.Start < end && start < q.End {
			out = append(out, q)
		}
	}
	return out
}

// mergeShort folds spans shorter than min into their predecessor (or the
// following span when there is none) so that no text is dropped.
func mergeShort(text string, spans []domain.Span, min int) []domain.Span {
	if min <= 0 || len(spans) < 2 {
		return spans
	}
	out := make([]domain.Span, 0, len(spans))
	pendingStart := -1
	for _, sp := range spans {
		if pendingStart >= 0 {
			sp.Start = pendingStart
			pendingStart = -1
		}
		if utf8.RuneCountInString(text[sp.Start:sp.End]) >= min {
			out = append(out, sp)
			continue
		}
		if len(out) > 0 {
			out[len(out)-1].End = sp.End
			continue
		}
		pendingStart = sp.Start
	}
	if pendingStart >= 0 {
		// Every span was short.
		out = append(out, domain.Span{Start: pendingStart, End: spans[len(spans)-1].End})
	}
	return out
}
