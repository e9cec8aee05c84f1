package counter

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mjf789/spam-news/internal/domain"
)

func newCounter(t *testing.T, dedup DedupPolicy) *Counter {
	t.Helper()
	c, err := New(Config{Dedup: dedup, Method: "lexical"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func span(seq int) domain.Span {
	return domain.Span{Seq: seq, Start: seq * 10, End: seq*10 + 9}
}

func unit(index int, seqs ...int) domain.TextUnit {
	u := domain.TextUnit{Index: index}
	for _, s := range seqs {
		u.Spans = append(u.Spans, span(s))
	}
	u.Start = u.Spans[0].Start
	u.End = u.Spans[len(u.Spans)-1].End
	return u
}

func detect(frames ...domain.FrameLabel) domain.FrameScores {
	scores := domain.FrameScores{}
	for _, f := range domain.AllFrames {
		scores[f] = domain.FrameScore{Value: 0.1}
	}
	for _, f := range frames {
		scores[f] = domain.FrameScore{Value: 0.9}
	}
	return scores
}

func mention(target domain.Target, seq int, subgroups ...domain.Subgroup) domain.Mention {
	return domain.Mention{Target: target, Span: seq, Start: seq * 10, End: seq*10 + 3, Subgroups: subgroups}
}

func cells(tally domain.ArticleTally) map[domain.Cell]int {
	out := map[domain.Cell]int{}
	for _, c := range tally.Cells() {
		out[c] = tally.Count(c)
	}
	return out
}

func TestGlassCeilingExample(t *testing.T) {
	t.Parallel()

	c := newCounter(t, DedupSpan)
	res, err := c.Count("a",
		[]domain.TextUnit{unit(0, 0)},
		[]domain.FrameScores{detect(domain.FrameObstacles)},
		[][]domain.Mention{{mention(domain.TargetWhiteWomen, 0), mention(domain.TargetWomenOfColor, 0)}},
	)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := map[domain.Cell]int{
		{Frame: domain.FrameObstacles, Target: domain.TargetWhiteWomen}:   1,
		{Frame: domain.FrameObstacles, Target: domain.TargetWomenOfColor}: 1,
	}
	if diff := cmp.Diff(want, cells(res.Tally)); diff != "" {
		t.Fatalf("tally mismatch (-want +got):\n%s", diff)
	}
}

func TestSubgroupsCarried(t *testing.T) {
	t.Parallel()

	c := newCounter(t, DedupSpan)
	res, err := c.Count("a",
		[]domain.TextUnit{unit(0, 0, 1)},
		[]domain.FrameScores{detect(domain.FrameUnderrepresentation)},
		[][]domain.Mention{{
			mention(domain.TargetWomenOfColor, 0, domain.SubgroupBlack),
			mention(domain.TargetWomenOfColor, 1, domain.SubgroupAsian),
		}},
	)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if len(res.Exemplars) != 1 {
		t.Fatalf("expected 1 exemplar, got %d", len(res.Exemplars))
	}
	ex := res.Exemplars[0]
	if diff := cmp.Diff([]domain.Subgroup{domain.SubgroupAsian, domain.SubgroupBlack}, ex.Subgroups); diff != "" {
		t.Fatalf("subgroups mismatch (-want +got):\n%s", diff)
	}
	if ex.Method != "lexical" || ex.Confidence != 0.9 {
		t.Fatalf("unexpected exemplar %+v", ex)
	}
	if ex.Start != 0 || ex.End != 19 {
		t.Fatalf("anchor offsets %d-%d", ex.Start, ex.End)
	}
}

func TestOverlapDoesNotInflate(t *testing.T) {
	t.Parallel()

	// Windows [0 1 2] and [2 3 4] share span 2, where the only mention is.
	units := []domain.TextUnit{unit(0, 0, 1, 2), unit(1, 2, 3, 4)}
	scores := []domain.FrameScores{detect(domain.FrameUnderrepresentation), detect(domain.FrameUnderrepresentation)}
	mentions := [][]domain.Mention{{mention(domain.TargetWomenOfColor, 2)}, {mention(domain.TargetWomenOfColor, 2)}}

	res, err := newCounter(t, DedupSpan).Count("a", units, scores, mentions)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if got := res.Tally.Total(); got != 1 {
		t.Fatalf("span dedup total = %d, want 1", got)
	}
	if res.Suppressed != 1 {
		t.Fatalf("suppressed = %d, want 1", res.Suppressed)
	}

	res, err = newCounter(t, DedupNone).Count("a", units, scores, mentions)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if got := res.Tally.Total(); got != 2 {
		t.Fatalf("no dedup total = %d, want 2", got)
	}
}

func TestDistinctSpansStillCount(t *testing.T) {
	t.Parallel()

	units := []domain.TextUnit{unit(0, 0, 1, 2), unit(1, 2, 3, 4)}
	scores := []domain.FrameScores{detect(domain.FrameObstacles), detect(domain.FrameObstacles)}
	mentions := [][]domain.Mention{{mention(domain.TargetMen, 0)}, {mention(domain.TargetMen, 4)}}

	res, err := newCounter(t, DedupSpan).Count("a", units, scores, mentions)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if got := res.Tally.Count(domain.Cell{Frame: domain.FrameObstacles, Target: domain.TargetMen}); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
}

func TestUndeterminedExcluded(t *testing.T) {
	t.Parallel()

	scores := detect(domain.FrameSuccesses)
	scores[domain.FrameObstacles] = domain.FrameScore{Undetermined: true}
	res, err := newCounter(t, DedupSpan).Count("a",
		[]domain.TextUnit{unit(0, 0)},
		[]domain.FrameScores{scores},
		[][]domain.Mention{{mention(domain.TargetUnspecified, 0)}},
	)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	want := []domain.UndeterminedUnit{{UnitIndex: 0, Frame: domain.FrameObstacles}}
	if diff := cmp.Diff(want, res.Undetermined); diff != "" {
		t.Fatalf("undetermined mismatch (-want +got):\n%s", diff)
	}
	wantCells := map[domain.Cell]int{{Frame: domain.FrameSuccesses, Target: domain.TargetUnspecified}: 1}
	if diff := cmp.Diff(wantCells, cells(res.Tally)); diff != "" {
		t.Fatalf("tally mismatch (-want +got):\n%s", diff)
	}
}

func TestConservation(t *testing.T) {
	t.Parallel()

	units := []domain.TextUnit{unit(0, 0, 1, 2), unit(1, 2, 3, 4), unit(2, 4, 5)}
	scores := []domain.FrameScores{
		detect(domain.FrameObstacles, domain.FrameSuccesses),
		detect(domain.AllFrames...),
		detect(),
	}
	mentions := [][]domain.Mention{
		{mention(domain.TargetWomen, 0), mention(domain.TargetWhite, 2)},
		{mention(domain.TargetWhite, 2), mention(domain.TargetMenOfColor, 3)},
		{mention(domain.TargetUnspecified, 4)},
	}
	for _, policy := range []DedupPolicy{DedupSpan, DedupNone} {
		res, err := newCounter(t, policy).Count("a", units, scores, mentions)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if res.Tally.Total() != len(res.Exemplars) {
			t.Fatalf("%s: tally total %d != %d exemplars", policy, res.Tally.Total(), len(res.Exemplars))
		}
		for _, f := range domain.AllFrames {
			n := 0
			for _, e := range res.Exemplars {
				if e.Frame == f {
					n++
				}
			}
			if res.Tally.FrameTotal(f) != n {
				t.Fatalf("%s: frame %s total mismatch", policy, f)
			}
		}
	}
}

func TestCountDeterministic(t *testing.T) {
	t.Parallel()

	units := []domain.TextUnit{unit(0, 0, 1), unit(1, 1, 2)}
	scores := []domain.FrameScores{detect(domain.AllFrames...), detect(domain.AllFrames...)}
	mentions := [][]domain.Mention{
		{mention(domain.TargetWomen, 0), mention(domain.TargetMen, 1)},
		{mention(domain.TargetMen, 1), mention(domain.TargetPeopleOfColor, 2, domain.SubgroupHispanic)},
	}
	c := newCounter(t, DedupSpan)
	first, _ := c.Count("a", units, scores, mentions)
	for range 10 {
		again, _ := c.Count("a", units, scores, mentions)
		if diff := cmp.Diff(first.Exemplars, again.Exemplars); diff != "" {
			t.Fatalf("non-deterministic exemplars:\n%s", diff)
		}
	}
}

func TestCountRejectsMismatchedInputs(t *testing.T) {
	t.Parallel()

	_, err := newCounter(t, DedupSpan).Count("a", []domain.TextUnit{unit(0, 0)}, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, err := New(Config{Dedup: "window"}); !domain.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := New(Config{Thresholds: domain.Thresholds{domain.FrameObstacles: 1.5}}); !domain.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func detectAt(frame domain.FrameLabel, evidence ...int) domain.FrameScores {
	scores := detect()
	scores[frame] = domain.FrameScore{Value: 0.9, Evidence: evidence}
	return scores
}

func TestEvidenceClaims(t *testing.T) {
	t.Parallel()

	// Windows [0 1 2] and [2 3 4]; the second window names a new target in
	// span 3.
	units := []domain.TextUnit{unit(0, 0, 1, 2), unit(1, 2, 3, 4)}
	mentions := [][]domain.Mention{{mention(domain.TargetUnspecified, 0)}, {mention(domain.TargetWomen, 3)}}

	tests := []struct {
		name       string
		second     domain.FrameScores
		want       map[domain.Cell]int
		suppressed int
	}{
		{
			name:       "keyword only in shared span",
			second:     detectAt(domain.FrameObstacles, 2),
			want:       map[domain.Cell]int{{Frame: domain.FrameObstacles, Target: domain.TargetUnspecified}: 1},
			suppressed: 1,
		},
		{
			name:   "fresh keyword",
			second: detectAt(domain.FrameObstacles, 2, 4),
			want: map[domain.Cell]int{
				{Frame: domain.FrameObstacles, Target: domain.TargetUnspecified}: 1,
				{Frame: domain.FrameObstacles, Target: domain.TargetWomen}:       1,
			},
		},
		{
			name:   "unlocalized score",
			second: detect(domain.FrameObstacles),
			want: map[domain.Cell]int{
				{Frame: domain.FrameObstacles, Target: domain.TargetUnspecified}: 1,
				{Frame: domain.FrameObstacles, Target: domain.TargetWomen}:       1,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := []domain.FrameScores{detectAt(domain.FrameObstacles, 2), tt.second}
			res, err := newCounter(t, DedupSpan).Count("a", units, scores, mentions)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if diff := cmp.Diff(tt.want, cells(res.Tally)); diff != "" {
				t.Fatalf("tally mismatch (-want +got):\n%s", diff)
			}
			if res.Suppressed != tt.suppressed {
				t.Fatalf("suppressed = %d, want %d", res.Suppressed, tt.suppressed)
			}
		})
	}
}

func TestLeadershipOnly(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Dedup: DedupSpan, Method: "lexical", LeadershipOnly: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	board := unit(0, 0)
	board.Leadership = true
	units := []domain.TextUnit{board, unit(1, 1)}
	scores := []domain.FrameScores{detect(domain.FrameObstacles), detect(domain.FrameObstacles)}
	mentions := [][]domain.Mention{{mention(domain.TargetWomen, 0)}, {mention(domain.TargetWomen, 1)}}

	res, err := c.Count("a", units, scores, mentions)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if res.OffContext != 1 {
		t.Fatalf("off context = %d, want 1", res.OffContext)
	}
	if got := res.Tally.Total(); got != 1 || res.Exemplars[0].UnitIndex != 0 {
		t.Fatalf("unexpected exemplars %+v", res.Exemplars)
	}
}

func TestQuotedExemplars(t *testing.T) {
	t.Parallel()

	u := unit(0, 0, 1)
	u.Quotes = []domain.Quote{{Text: "a quote", Start: 0, End: 9}}
	res, err := newCounter(t, DedupSpan).Count("a",
		[]domain.TextUnit{u},
		[]domain.FrameScores{detect(domain.FrameSuccesses)},
		[][]domain.Mention{{mention(domain.TargetWomen, 0), mention(domain.TargetMen, 1)}},
	)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	quoted := map[domain.Target]bool{}
	for _, e := range res.Exemplars {
		quoted[e.Target] = e.Quoted
	}
	want := map[domain.Target]bool{domain.TargetWomen: true, domain.TargetMen: false}
	if diff := cmp.Diff(want, quoted); diff != "" {
		t.Fatalf("quoted mismatch (-want +got):\n%s", diff)
	}
}
