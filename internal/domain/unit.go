package domain

// Span is a base segment (sentence or paragraph) of an article.
// Seq is its position in the article's ordered span sequence.
type Span struct {
	Seq   int
	Start int
	End   int
}

// Quote is a quoted passage of an article, with its speaker when the
// article attributes it. Offsets are absolute and cover the quote marks.
type Quote struct {
	Text        string `json:"text"`
	Attribution string `json:"attribution,omitempty"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}

// TextUnit is a window of consecutive spans. Text is Content[Start:End].
// Leadership is set when the unit names a leadership role; Quotes holds
// the quotes overlapping the unit.
type TextUnit struct {
	Index      int
	Start      int
	End        int
	Text       string
	Spans      []Span
	Leadership bool
	Quotes     []Quote
}

// SpanAt returns the sequence number of the span holding the absolute
// offset, or the unit's first span when the offset falls in a gap.
func (u TextUnit) SpanAt(offset int) int {
	for _, s := range u.Spans {
		if offset >= s.Start && offset < s.End {
			return s.Seq
		}
	}
	if len(u.Spans) > 0 {
		return u.Spans[0].Seq
	}
	return 0
}

// Quoted reports whether [start, end) overlaps one of the unit's quotes.
func (u TextUnit) Quoted(start, end int) bool {
	for _, q := range u.Quotes {
		if start < q.End && q.Start < end {
			return true
		}
	}
	return false
}
