package domain

import (
	"fmt"
	"strings"
)

// FrameLabel is one of the four narrative frames. The set is closed.
type FrameLabel string

const (
	FrameUnderrepresentation FrameLabel = "underrepresentation"
	FrameOverrepresentation  FrameLabel = "overrepresentation"
	FrameObstacles           FrameLabel = "obstacles"
	FrameSuccesses           FrameLabel = "successes"
)

// AllFrames lists frames in their canonical reporting order.
var AllFrames = []FrameLabel{
	FrameUnderrepresentation,
	FrameOverrepresentation,
	FrameObstacles,
	FrameSuccesses,
}

// ParseFrame resolves a frame name case-insensitively.
func ParseFrame(name string) (FrameLabel, error) {
	candidate := FrameLabel(strings.ToLower(strings.TrimSpace(name)))
	for _, f := range AllFrames {
		if f == candidate {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown frame %q", name)
}

// FrameScore is a classifier output for one label on one unit. Evidence
// lists the sequence numbers of the unit's base spans that produced the
// score; it is empty when the classifier only scores whole units.
type FrameScore struct {
	Value        float64
	Undetermined bool
	Evidence     []int
}

// FrameScores holds one score per frame label.
type FrameScores map[FrameLabel]FrameScore

// UndeterminedScores returns scores with every label undetermined.
func UndeterminedScores() FrameScores {
	scores := make(FrameScores, len(AllFrames))
	for _, f := range AllFrames {
		scores[f] = FrameScore{Undetermined: true}
	}
	return scores
}

// Verdict is the tri-state outcome of thresholding a score.
type Verdict int

const (
	VerdictAbsent Verdict = iota
	VerdictDetected
	VerdictUndetermined
)

func (v Verdict) String() string {
	switch v {
	case VerdictDetected:
		return "detected"
	case VerdictUndetermined:
		return "undetermined"
	default:
		return "absent"
	}
}

// DefaultThreshold applies to frames without an explicit threshold.
const DefaultThreshold = 0.5

// Thresholds holds per-frame detection thresholds.
type Thresholds map[FrameLabel]float64

// For returns the threshold of a frame, falling back to DefaultThreshold.
func (t Thresholds) For(frame FrameLabel) float64 {
	if v, ok := t[frame]; ok {
		return v
	}
	return DefaultThreshold
}

// Verdict classifies a score against the frame's threshold. A missing
// score is undetermined, never absent.
func (t Thresholds) Verdict(frame FrameLabel, scores FrameScores) Verdict {
	score, ok := scores[frame]
	if !ok || score.Undetermined {
		return VerdictUndetermined
	}
	if score.Value >= t.For(frame) {
		return VerdictDetected
	}
	return VerdictAbsent
}
