package classifier

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mjf789/spam-news/internal/domain"
)

// EnsembleName identifies the weighted-average strategy.
const EnsembleName = "ensemble"

// Policy decides how an undetermined member score affects a label.
type Policy string

const (
	// PolicyPropagate makes the label undetermined.
	PolicyPropagate Policy = "propagate"
	// PolicyRenormalize re-weights over the determined members.
	PolicyRenormalize Policy = "renormalize"
)

const weightTolerance = 1e-6

// Member is one weighted strategy of an ensemble.
type Member struct {
	Classifier Classifier
	Weight     float64
}

// Ensemble averages member scores per label.
type Ensemble struct {
	members []Member
	policy  Policy
}

// NewEnsemble validates that weights are positive and sum to one.
func NewEnsemble(members []Member, policy Policy) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, &domain.ConfigurationError{Field: "classifier.ensemble", Reason: "no members"}
	}
	if policy == "" {
		policy = PolicyPropagate
	}
	if policy != PolicyPropagate && policy != PolicyRenormalize {
		return nil, &domain.ConfigurationError{Field: "classifier.ensemble.policy", Reason: fmt.Sprintf("unknown policy %q", policy)}
	}
	sum := 0.0
	for i, m := range members {
		if m.Classifier == nil {
			return nil, &domain.ConfigurationError{Field: "classifier.ensemble", Reason: fmt.Sprintf("member %d has no strategy", i)}
		}
		if m.Weight <= 0 || math.IsNaN(m.Weight) {
			return nil, &domain.ConfigurationError{
				Field:  "classifier.ensemble." + m.Classifier.Name(),
				Reason: "weight must be positive",
			}
		}
		sum += m.Weight
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, &domain.ConfigurationError{
			Field:  "classifier.ensemble",
			Reason: fmt.Sprintf("weights sum to %g, want 1", sum),
		}
	}
	cp := make([]Member, len(members))
	copy(cp, members)
	return &Ensemble{members: cp, policy: policy}, nil
}

// Name implements Classifier.
func (e *Ensemble) Name() string { return EnsembleName }

// Classify runs the members concurrently and combines their scores.
func (e *Ensemble) Classify(ctx context.Context, units []domain.TextUnit) ([]domain.FrameScores, error) {
	perMember := make([][]domain.FrameScores, len(e.members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range e.members {
		g.Go(func() error {
			scores, err := m.Classifier.Classify(gctx, units)
			if err != nil {
				return fmt.Errorf("%s: %w", m.Classifier.Name(), err)
			}
			if len(scores) != len(units) {
				return fmt.Errorf("%s: returned %d scores for %d units", m.Classifier.Name(), len(scores), len(units))
			}
			perMember[i] = scores
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.FrameScores, len(units))
	for u := range units {
		scores := make(domain.FrameScores, len(domain.AllFrames))
		for _, frame := range domain.AllFrames {
			scores[frame] = e.combine(perMember, u, frame)
		}
		out[u] = scores
	}
	return out, nil
}

// combine averages the determined member scores. Evidence is the union of
// the members' evidence, or empty when a scoring member cannot localize it.
func (e *Ensemble) combine(perMember [][]domain.FrameScores, unit int, frame domain.FrameLabel) domain.FrameScore {
	var value, weight float64
	var evidence []int
	localized := true
	for i, m := range e.members {
		s, ok := perMember[i][unit][frame]
		if !ok || s.Undetermined {
			if e.policy == PolicyPropagate {
				return domain.FrameScore{Undetermined: true}
			}
			continue
		}
		value += m.Weight * s.Value
		weight += m.Weight
		if s.Value > 0 {
			if len(s.Evidence) == 0 {
				localized = false
			}
			for _, seq := range s.Evidence {
				evidence = appendSeq(evidence, seq)
			}
		}
	}
	if weight == 0 {
		return domain.FrameScore{Undetermined: true}
	}
	score := domain.FrameScore{Value: clamp(value / weight)}
	if localized && score.Value > 0 {
		score.Evidence = evidence
	}
	return score
}
