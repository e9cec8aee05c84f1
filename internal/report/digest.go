package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mjf789/spam-news/internal/agreement"
	"github.com/mjf789/spam-news/internal/domain"
)

// maxDigestCells and maxDigestSkips keep notifications short.
const (
	maxDigestCells = 10
	maxDigestSkips = 3
)

// Digest renders a plain-text run summary for notifiers: article counts
// with skip reasons, frame totals, the largest cells and agreement.
func Digest(run domain.Run, summary CorpusSummary, skipped []domain.SkippedArticle, agr *agreement.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s, %s)\n", run.ID, run.Strategy, run.Status)
	fmt.Fprintf(&b, "Articles: %d tallied, %d skipped\n", run.Tallied, run.Skipped)
	writeSkips(&b, skipped)
	fmt.Fprintf(&b, "Exemplars: %d", summary.Exemplars)
	if run.Undetermined > 0 {
		fmt.Fprintf(&b, " (%d undetermined unit labels)", run.Undetermined)
	}
	b.WriteString("\n")

	for _, f := range domain.AllFrames {
		fmt.Fprintf(&b, "  %s: %d\n", f, summary.FrameTotals[f])
	}

	top := topCells(summary.Cells, maxDigestCells)
	if len(top) > 0 {
		b.WriteString("Top cells:\n")
		for _, c := range top {
			fmt.Fprintf(&b, "  %s/%s: %d\n", c.Frame, c.Target, c.Total)
		}
	}

	if agr != nil {
		if agr.MeanICC != nil {
			fmt.Fprintf(&b, "Mean ICC(A,1): %.3f over %d coded articles\n", *agr.MeanICC, agr.Articles)
		} else {
			fmt.Fprintf(&b, "Mean ICC(A,1): undefined over %d coded articles\n", agr.Articles)
		}
		if len(agr.Gaps) > 0 {
			fmt.Fprintf(&b, "Coverage gaps: %d\n", len(agr.Gaps))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSkips(b *strings.Builder, skipped []domain.SkippedArticle) {
	if len(skipped) == 0 {
		return
	}
	byKind := map[domain.SkipKind]int{}
	for _, sk := range skipped {
		byKind[sk.Kind]++
	}
	kinds := make([]string, 0, len(byKind))
	for kind, n := range byKind {
		kinds = append(kinds, fmt.Sprintf("%s %d", kind, n))
	}
	sort.Strings(kinds)
	fmt.Fprintf(b, "Skipped by kind: %s\n", strings.Join(kinds, ", "))

	for _, sk := range skipped[:min(len(skipped), maxDigestSkips)] {
		fmt.Fprintf(b, "  %s (%s): %s\n", sk.ArticleID, sk.Kind, sk.Reason)
	}
	if rest := len(skipped) - maxDigestSkips; rest > 0 {
		fmt.Fprintf(b, "  ... and %d more\n", rest)
	}
}

func topCells(cells []CellSummary, limit int) []CellSummary {
	out := make([]CellSummary, len(cells))
	copy(out, cells)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
