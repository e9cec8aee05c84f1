// Package report aggregates per-article tallies into corpus summaries and
// writes them as CSV and JSON.
package report

import (
	"github.com/mjf789/spam-news/internal/domain"
)

// CellSummary is the corpus view of one (frame, demographic) cell.
type CellSummary struct {
	Frame    domain.FrameLabel `json:"frame"`
	Target   domain.Target     `json:"demographic"`
	Total    int               `json:"total"`
	Articles int               `json:"articles"`
	Rate     float64           `json:"rate"`
	Share    float64           `json:"share"`
}

// CorpusSummary aggregates every tallied article of a run.
type CorpusSummary struct {
	Articles    int                       `json:"articles"`
	Exemplars   int                       `json:"exemplars"`
	FrameTotals map[domain.FrameLabel]int `json:"frame_totals"`
	Cells       []CellSummary             `json:"cells"`
}

// Aggregate sums tallies per cell. Rate is the mean count per tallied
// article and Share the cell's fraction of its frame total.
func Aggregate(tallies []domain.ArticleTally) CorpusSummary {
	summary := CorpusSummary{
		Articles:    len(tallies),
		FrameTotals: make(map[domain.FrameLabel]int, len(domain.AllFrames)),
	}
	totals := map[domain.Cell]int{}
	articles := map[domain.Cell]int{}
	for _, t := range tallies {
		for _, c := range t.Cells() {
			n := t.Count(c)
			totals[c] += n
			articles[c]++
			summary.FrameTotals[c.Frame] += n
			summary.Exemplars += n
		}
	}
	for _, f := range domain.AllFrames {
		if _, ok := summary.FrameTotals[f]; !ok {
			summary.FrameTotals[f] = 0
		}
	}

	cells := make([]domain.Cell, 0, len(totals))
	for c := range totals {
		cells = append(cells, c)
	}
	domain.SortCells(cells)
	for _, c := range cells {
		cs := CellSummary{Frame: c.Frame, Target: c.Target, Total: totals[c], Articles: articles[c]}
		if summary.Articles > 0 {
			cs.Rate = float64(cs.Total) / float64(summary.Articles)
		}
		if ft := summary.FrameTotals[c.Frame]; ft > 0 {
			cs.Share = float64(cs.Total) / float64(ft)
		}
		summary.Cells = append(summary.Cells, cs)
	}
	return summary
}
