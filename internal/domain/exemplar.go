package domain

import (
	"fmt"
	"sort"
)

// Exemplar is one tallied instance of a frame applied to a demographic target.
type Exemplar struct {
	ArticleID  string     `json:"article_id"`
	UnitIndex  int        `json:"unit_index"`
	Frame      FrameLabel `json:"frame"`
	Target     Target     `json:"demographic"`
	Subgroups  []Subgroup `json:"subgroups,omitempty"`
	Confidence float64    `json:"confidence"`
	Method     string     `json:"method"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Quoted     bool       `json:"quoted"`
}

// Cell keys tallies, human coding and agreement statistics.
type Cell struct {
	Frame  FrameLabel
	Target Target
}

func (c Cell) String() string {
	return fmt.Sprintf("%s/%s", c.Frame, c.Target)
}

// AllCells enumerates frame × target in reporting order.
func AllCells() []Cell {
	cells := make([]Cell, 0, len(AllFrames)*len(AllTargets))
	for _, f := range AllFrames {
		for _, t := range AllTargets {
			cells = append(cells, Cell{Frame: f, Target: t})
		}
	}
	return cells
}

// SortCells orders cells by frame, then target, in reporting order.
func SortCells(cells []Cell) {
	frameRank := make(map[FrameLabel]int, len(AllFrames))
	for i, f := range AllFrames {
		frameRank[f] = i
	}
	targetRank := make(map[Target]int, len(AllTargets))
	for i, t := range AllTargets {
		targetRank[t] = i
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Frame != cells[j].Frame {
			return frameRank[cells[i].Frame] < frameRank[cells[j].Frame]
		}
		return targetRank[cells[i].Target] < targetRank[cells[j].Target]
	})
}

// ArticleTally is the immutable per-article count of exemplars by cell.
type ArticleTally struct {
	articleID string
	counts    map[Cell]int
}

// NewArticleTally sums exemplars into a fresh tally.
func NewArticleTally(articleID string, exemplars []Exemplar) ArticleTally {
	counts := make(map[Cell]int)
	for _, e := range exemplars {
		counts[Cell{Frame: e.Frame, Target: e.Target}]++
	}
	return ArticleTally{articleID: articleID, counts: counts}
}

// ArticleID returns the article the tally belongs to.
func (t ArticleTally) ArticleID() string { return t.articleID }

// Count returns the count of a cell; absent cells are zero.
func (t ArticleTally) Count(c Cell) int { return t.counts[c] }

// Total is the sum of every cell.
func (t ArticleTally) Total() int {
	total := 0
	for _, n := range t.counts {
		total += n
	}
	return total
}

// FrameTotal sums the cells of one frame.
func (t ArticleTally) FrameTotal(f FrameLabel) int {
	total := 0
	for c, n := range t.counts {
		if c.Frame == f {
			total += n
		}
	}
	return total
}

// Cells returns the non-zero cells in reporting order.
func (t ArticleTally) Cells() []Cell {
	cells := make([]Cell, 0, len(t.counts))
	for c, n := range t.counts {
		if n > 0 {
			cells = append(cells, c)
		}
	}
	SortCells(cells)
	return cells
}
