package domain

import (
	"fmt"
	"math"
)

// HumanCoding is the averaged count of two human coders per cell for one
// article. Cells the coders did not list are zero.
type HumanCoding struct {
	counts map[Cell]float64
}

// NewHumanCoding copies counts into a read-only coding.
func NewHumanCoding(counts map[Cell]float64) HumanCoding {
	cp := make(map[Cell]float64, len(counts))
	for c, v := range counts {
		cp[c] = v
	}
	return HumanCoding{counts: cp}
}

// ParseHumanCoding reads the frame → demographic → count structure.
func ParseHumanCoding(raw map[string]map[string]float64) (HumanCoding, error) {
	counts := make(map[Cell]float64)
	for frameName, groups := range raw {
		frame, err := ParseFrame(frameName)
		if err != nil {
			return HumanCoding{}, err
		}
		for groupName, value := range groups {
			target, err := ParseTarget(groupName)
			if err != nil {
				return HumanCoding{}, err
			}
			if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
				return HumanCoding{}, fmt.Errorf("%s/%s: invalid count %v", frame, target, value)
			}
			counts[Cell{Frame: frame, Target: target}] += value
		}
	}
	return HumanCoding{counts: counts}, nil
}

// Count returns the averaged count of a cell.
func (h HumanCoding) Count(c Cell) float64 { return h.counts[c] }

// FrameTotal sums the cells of one frame.
func (h HumanCoding) FrameTotal(f FrameLabel) float64 {
	total := 0.0
	for c, v := range h.counts {
		if c.Frame == f {
			total += v
		}
	}
	return total
}

// Cells returns the non-zero cells in reporting order.
func (h HumanCoding) Cells() []Cell {
	cells := make([]Cell, 0, len(h.counts))
	for c, v := range h.counts {
		if v > 0 {
			cells = append(cells, c)
		}
	}
	SortCells(cells)
	return cells
}
