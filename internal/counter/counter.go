// Package counter turns frame verdicts and demographic mentions into
// exemplars and per-article tallies.
package counter

import (
	"fmt"
	"slices"

	"github.com/mjf789/spam-news/internal/domain"
)

// DedupPolicy decides when overlapping windows count the same text once.
type DedupPolicy string

const (
	// DedupSpan counts a frame detection only when its evidence holds a
	// span not already claimed for that frame, and suppresses an exemplar
	// whose anchor spans were already claimed for the same frame and
	// target.
	DedupSpan DedupPolicy = "span"
	// DedupNone counts every detecting window.
	DedupNone DedupPolicy = "none"
)

// Config is shared read-only by all workers.
type Config struct {
	Thresholds domain.Thresholds
	Dedup      DedupPolicy
	Method     string
	// LeadershipOnly skips units that name no leadership role.
	LeadershipOnly bool
}

// Counter is stateless between articles.
type Counter struct {
	thresholds     domain.Thresholds
	dedup          DedupPolicy
	method         string
	leadershipOnly bool
}

// New validates the policy and thresholds.
func New(cfg Config) (*Counter, error) {
	dedup := cfg.Dedup
	if dedup == "" {
		dedup = DedupSpan
	}
	if dedup != DedupSpan && dedup != DedupNone {
		return nil, &domain.ConfigurationError{Field: "counting.dedup", Reason: fmt.Sprintf("unknown policy %q", dedup)}
	}
	for frame, th := range cfg.Thresholds {
		if _, err := domain.ParseFrame(string(frame)); err != nil {
			return nil, &domain.ConfigurationError{Field: "classifier.thresholds", Reason: err.Error()}
		}
		if th < 0 || th > 1 {
			return nil, &domain.ConfigurationError{Field: "classifier.thresholds." + string(frame), Reason: "must be within [0, 1]"}
		}
	}
	return &Counter{
		thresholds:     cfg.Thresholds,
		dedup:          dedup,
		method:         cfg.Method,
		leadershipOnly: cfg.LeadershipOnly,
	}, nil
}

type claimKey struct {
	frame  domain.FrameLabel
	target domain.Target
}

// Count emits one exemplar per detected (unit, frame) and target mentioned
// in the unit. scores and mentions are indexed like units.
func (c *Counter) Count(articleID string, units []domain.TextUnit, scores []domain.FrameScores, mentions [][]domain.Mention) (domain.ArticleResult, error) {
	if len(scores) != len(units) || len(mentions) != len(units) {
		return domain.ArticleResult{}, fmt.Errorf("count %s: %d units, %d scores, %d mention sets", articleID, len(units), len(scores), len(mentions))
	}

	result := domain.ArticleResult{ArticleID: articleID, Units: len(units)}
	claimed := map[claimKey]map[int]bool{}
	evidenceClaimed := map[domain.FrameLabel]map[int]bool{}

	for ui, unit := range units {
		if c.leadershipOnly && !unit.Leadership {
			result.OffContext++
			continue
		}
		byTarget := groupMentions(mentions[ui])
		for _, frame := range domain.AllFrames {
			switch c.thresholds.Verdict(frame, scores[ui]) {
			case domain.VerdictUndetermined:
				result.Undetermined = append(result.Undetermined, domain.UndeterminedUnit{UnitIndex: unit.Index, Frame: frame})
				continue
			case domain.VerdictAbsent:
				continue
			}
			score := scores[ui][frame]

			if c.dedup == DedupSpan {
				if evidenceClaimed[frame] == nil {
					evidenceClaimed[frame] = map[int]bool{}
				}
				evidence := evidenceSpans(unit, score)
				if allClaimed(evidenceClaimed[frame], evidence) {
					// Every span behind this detection was counted by an
					// earlier window.
					result.Suppressed += len(byTarget)
					continue
				}
				for _, sp := range evidence {
					evidenceClaimed[frame][sp.Seq] = true
				}
			}

			for _, target := range domain.AllTargets {
				ms, ok := byTarget[target]
				if !ok {
					continue
				}
				anchors := anchorSpans(unit, target, ms)
				if c.dedup == DedupSpan {
					key := claimKey{frame: frame, target: target}
					if claimed[key] == nil {
						claimed[key] = map[int]bool{}
					}
					if allClaimed(claimed[key], anchors) {
						result.Suppressed++
						continue
					}
					for _, sp := range anchors {
						claimed[key][sp.Seq] = true
					}
				}

				subgroups := make([][]domain.Subgroup, len(ms))
				for i, m := range ms {
					subgroups[i] = m.Subgroups
				}
				start, end := anchors[0].Start, anchors[len(anchors)-1].End
				result.Exemplars = append(result.Exemplars, domain.Exemplar{
					ArticleID:  articleID,
					UnitIndex:  unit.Index,
					Frame:      frame,
					Target:     target,
					Subgroups:  domain.MergeSubgroups(subgroups...),
					Confidence: score.Value,
					Method:     c.method,
					Start:      start,
					End:        end,
					Quoted:     unit.Quoted(start, end),
				})
			}
		}
	}

	result.Tally = domain.NewArticleTally(articleID, result.Exemplars)
	return result, nil
}

func groupMentions(mentions []domain.Mention) map[domain.Target][]domain.Mention {
	out := make(map[domain.Target][]domain.Mention, len(mentions))
	for _, m := range mentions {
		out[m.Target] = append(out[m.Target], m)
	}
	return out
}

// anchorSpans returns, in order, the unit spans holding the target's
// mentions. An unspecified target is anchored on the whole unit.
func anchorSpans(unit domain.TextUnit, target domain.Target, mentions []domain.Mention) []domain.Span {
	if len(unit.Spans) == 0 {
		return []domain.Span{{Seq: -1 - unit.Index, Start: unit.Start, End: unit.End}}
	}
	if target == domain.TargetUnspecified {
		return unit.Spans
	}
	seqs := make(map[int]bool, len(mentions))
	for _, m := range mentions {
		seqs[m.Span] = true
	}
	anchors := make([]domain.Span, 0, len(seqs))
	for _, sp := range unit.Spans {
		if seqs[sp.Seq] {
			anchors = append(anchors, sp)
		}
	}
	if len(anchors) == 0 {
		return unit.Spans
	}
	return anchors
}

// evidenceSpans returns the unit spans named by the score's evidence, or
// every unit span when the classifier did not localize it.
func evidenceSpans(unit domain.TextUnit, score domain.FrameScore) []domain.Span {
	all := anchorSpans(unit, domain.TargetUnspecified, nil)
	if len(score.Evidence) == 0 {
		return all
	}
	out := make([]domain.Span, 0, len(score.Evidence))
	for _, sp := range all {
		if slices.Contains(score.Evidence, sp.Seq) {
			out = append(out, sp)
		}
	}
	if len(out) == 0 {
		return all
	}
	return out
}

func allClaimed(claimed map[int]bool, anchors []domain.Span) bool {
	for _, sp := range anchors {
		if !claimed[sp.Seq] {
			return false
		}
	}
	return true
}
