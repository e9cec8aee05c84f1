package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mjf789/spam-news/internal/domain"
)

func article(content string) domain.Article {
	return domain.Article{ID: "a1", Content: content}
}

func spanTexts(text string, spans []domain.Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = text[s.Start:s.End]
	}
	return out
}

func TestSentenceSpans(t *testing.T) {
	t.Parallel()

	text := `Dr. Smith leads the board. Only 3.5 percent of CEOs are women! Is that changing? "Slowly," she said.`
	got := spanTexts(text, sentenceSpans(text))
	want := []string{
		"Dr. Smith leads the board.",
		"Only 3.5 percent of CEOs are women!",
		"Is that changing?",
		`"Slowly," she said.`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("sentence spans mismatch (-want +got):\n%s", diff)
	}
}

func TestParagraphSpans(t *testing.T) {
	t.Parallel()

	text := "First paragraph here.\n\nSecond paragraph\ncontinues.\n \n\nThird."
	got := spanTexts(text, paragraphSpans(text))
	want := []string{"First paragraph here.", "Second paragraph\ncontinues.", "Third."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("paragraph spans mismatch (-want +got):\n%s", diff)
	}
}

func TestWindowBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		n, size, over int
		want          [][2]int
	}{
		{name: "empty", n: 0, size: 3, over: 1, want: nil},
		{name: "shorter than window", n: 2, size: 3, over: 1, want: [][2]int{{0, 2}}},
		{name: "exact stride", n: 5, size: 3, over: 1, want: [][2]int{{0, 3}, {2, 5}}},
		{name: "tail window", n: 6, size: 3, over: 1, want: [][2]int{{0, 3}, {2, 5}, {4, 6}}},
		{name: "no overlap", n: 4, size: 2, over: 0, want: [][2]int{{0, 2}, {2, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := windowBounds(tt.n, tt.size, tt.over)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("bounds mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegmentRejectsShortContent(t *testing.T) {
	t.Parallel()

	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Segment(article("Too short."))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.ArticleID != "a1" {
		t.Fatalf("unexpected article id %q", verr.ArticleID)
	}
}

func TestUnitsReconstructText(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("Women hold few board seats. ", 3) +
		"Men dominate the C-suite.\n\nA new report was published. It found gaps. Ok."
	cfg := DefaultConfig()
	cfg.MinContentLength = 20
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seg, err := s.Segment(article(text))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	spans := seg.Spans()
	prev := 0
	for _, sp := range spans {
		if gap := text[prev:sp.Start]; strings.TrimSpace(gap) != "" {
			t.Fatalf("non-whitespace gap %q", gap)
		}
		prev = sp.End
	}
	if strings.TrimSpace(text[prev:]) != "" {
		t.Fatalf("trailing text not covered: %q", text[prev:])
	}

	units := seg.Slice()
	if len(units) == 0 {
		t.Fatal("expected units")
	}
	for i, u := range units {
		if u.Index != i {
			t.Fatalf("unit %d has index %d", i, u.Index)
		}
		if u.Text != text[u.Start:u.End] {
			t.Fatalf("unit %d text does not match offsets", i)
		}
	}
	if units[0].Start != spans[0].Start || units[len(units)-1].End != spans[len(spans)-1].End {
		t.Fatal("units do not cover all spans")
	}
}

func TestUnitsRestartable(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinContentLength = 1
	cfg.WindowSize = 2
	s, _ := New(cfg)
	seg, err := s.Segment(article("One sentence here. Two sentence here. Three sentence here. Four sentence here."))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	first := seg.Slice()
	second := seg.Slice()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("re-iteration differs (-first +second):\n%s", diff)
	}

	var count int
	for range seg.Units() {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("early break yielded %d units", count)
	}
}

func TestMergeShortKeepsText(t *testing.T) {
	t.Parallel()

	text := "Ok. This sentence is long enough. Hm. Another long sentence follows."
	spans := mergeShort(text, sentenceSpans(text), 10)
	got := spanTexts(text, spans)
	want := []string{"Ok. This sentence is long enough. Hm.", "Another long sentence follows."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merged spans mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Overlap = cfg.WindowSize
	if _, err := New(cfg); !domain.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

const keywordText = "The weather was mild all week. Analysts reviewed the quarterly numbers. " +
	"The new CEO spoke at the summit. Investors asked many questions. " +
	"Markets closed higher on Friday. Rain is expected again soon. The board approved the plan today."

func TestKeywordMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		context int
		want    []string
	}{
		{
			name:    "separate runs",
			context: 1,
			want: []string{
				"Analysts reviewed the quarterly numbers. The new CEO spoke at the summit. Investors asked many questions.",
				"Rain is expected again soon. The board approved the plan today.",
			},
		},
		{name: "merged runs", context: 2, want: []string{keywordText}},
		{
			name:    "no context",
			context: 0,
			want:    []string{"The new CEO spoke at the summit.", "The board approved the plan today."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Mode = ModeKeyword
			cfg.KeywordContext = tt.context
			cfg.MinContentLength = 1
			s, err := New(cfg)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			seg, err := s.Segment(article(keywordText))
			if err != nil {
				t.Fatalf("Segment: %v", err)
			}
			var got []string
			for _, u := range seg.Slice() {
				if !u.Leadership {
					t.Fatalf("keyword unit %d not tagged as leadership context", u.Index)
				}
				got = append(got, u.Text)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("keyword units mismatch (-want +got):\n%s", diff)
			}
			if seg.Len() != len(tt.want) {
				t.Fatalf("Len = %d, want %d", seg.Len(), len(tt.want))
			}
		})
	}
}

func TestKeywordModeWithoutLeadership(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Mode = ModeKeyword
	cfg.MinContentLength = 1
	s, _ := New(cfg)
	seg, err := s.Segment(article("The weather was mild all week. Rain is expected again soon."))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if n := len(seg.Slice()); n != 0 {
		t.Fatalf("expected no units, got %d", n)
	}
}

func TestLeadershipTagging(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.WindowSize = 2
	cfg.Overlap = 0
	cfg.MinContentLength = 1
	s, _ := New(cfg)
	seg, err := s.Segment(article(keywordText))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	var got []bool
	for _, u := range seg.Slice() {
		got = append(got, u.Leadership)
	}
	if diff := cmp.Diff([]bool{false, true, false, true}, got); diff != "" {
		t.Fatalf("leadership tags mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractQuotes(t *testing.T) {
	t.Parallel()

	text := `Progress has been slow. "Women are still shut out of the boardroom," said Maria Lopez. ` +
		`Critics called it "woke." Smith said, "We have work to do." ` +
		`“Representation matters at every level of the company,” she told reporters.`
	got := extractQuotes(text)
	want := []domain.Quote{
		{Text: "Women are still shut out of the boardroom,", Attribution: "Maria Lopez"},
		{Text: "We have work to do.", Attribution: "Smith"},
		{Text: "Representation matters at every level of the company,"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d quotes, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		want[i].Start = got[i].Start
		want[i].End = got[i].End
		if q := text[got[i].Start:got[i].End]; !strings.Contains(q, want[i].Text) {
			t.Fatalf("quote %d offsets cover %q", i, q)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("quotes mismatch (-want +got):\n%s", diff)
	}
}

func TestUnitsCarryQuotes(t *testing.T) {
	t.Parallel()

	text := `Progress has been slow. "Women are still shut out of the boardroom," said Maria Lopez.`
	cfg := DefaultConfig()
	cfg.WindowSize = 1
	cfg.Overlap = 0
	cfg.MinContentLength = 1
	s, _ := New(cfg)
	seg, err := s.Segment(article(text))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	units := seg.Slice()
	if len(units) != 2 {
		t.Fatalf("got %d units", len(units))
	}
	if len(units[0].Quotes) != 0 || len(units[1].Quotes) != 1 {
		t.Fatalf("quotes attached to wrong units: %+v", units)
	}
	start := strings.Index(text, "Women")
	if !units[1].Quoted(start, start+len("Women")) {
		t.Fatal("mention inside quote not reported as quoted")
	}
	if units[1].Quoted(strings.Index(text, "Maria"), len(text)) {
		t.Fatal("attribution reported as quoted")
	}
}

func TestKeywordConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Mode = ModeKeyword
	cfg.LeadershipTerms = nil
	if _, err := New(cfg); !domain.IsConfiguration(err) {
		t.Fatalf("expected configuration error for empty terms, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.KeywordContext = -1
	if _, err := New(cfg); !domain.IsConfiguration(err) {
		t.Fatalf("expected configuration error for negative context, got %v", err)
	}
}
