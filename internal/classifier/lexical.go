package classifier

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/mjf789/spam-news/internal/domain"
	"github.com/mjf789/spam-news/internal/lexicon"
)

// LexicalName identifies the keyword strategy.
const LexicalName = "lexical"

// LexicalConfig holds frame → tier → terms, with one weight per tier.
type LexicalConfig struct {
	Frames     map[domain.FrameLabel]map[string][]string
	Weights    map[string]float64
	Saturation float64
	// Density divides hits by the unit's length in hundreds of words
	// before saturation.
	Density bool
}

// DefaultWeights returns the standard tier weights.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"strong":      2,
		"moderate":    1,
		"comparative": 1,
		"statistical": 0.5,
	}
}

// DefaultSaturation is the weighted hit sum that maps to a score of 1.
const DefaultSaturation = 2.0

type frameLexicon struct {
	matcher *lexicon.Matcher
	weights map[string]float64
}

// Lexical scores units by weighted keyword hits. It is deterministic and
// safe for concurrent use.
type Lexical struct {
	frames     map[domain.FrameLabel]frameLexicon
	saturation float64
	density    bool
}

// NewLexical compiles the keyword tables.
func NewLexical(cfg LexicalConfig) (*Lexical, error) {
	weights := cfg.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	saturation := cfg.Saturation
	if saturation == 0 {
		saturation = DefaultSaturation
	}
	if saturation < 0 {
		return nil, &domain.ConfigurationError{Field: "lexical.saturation", Reason: "must be positive"}
	}

	l := &Lexical{
		frames:     make(map[domain.FrameLabel]frameLexicon, len(domain.AllFrames)),
		saturation: saturation,
		density:    cfg.Density,
	}
	for frame, tiers := range cfg.Frames {
		if _, err := domain.ParseFrame(string(frame)); err != nil {
			return nil, &domain.ConfigurationError{Field: "frames", Reason: err.Error()}
		}
		termWeights := map[string]float64{}
		terms := make([]string, 0)
		for tier, list := range tiers {
			w, ok := weights[tier]
			if !ok {
				return nil, &domain.ConfigurationError{
					Field:  fmt.Sprintf("frames.%s.%s", frame, tier),
					Reason: "tier has no weight",
				}
			}
			if w <= 0 {
				return nil, &domain.ConfigurationError{
					Field:  "lexical.weights." + tier,
					Reason: "must be positive",
				}
			}
			for _, term := range list {
				key := lexicon.Normalize(term)
				if key == "" {
					continue
				}
				if err := lexicon.ValidateTerm(key); err != nil {
					return nil, &domain.ConfigurationError{
						Field:  fmt.Sprintf("frames.%s.%s", frame, tier),
						Reason: err.Error(),
					}
				}
				if _, dup := termWeights[key]; dup {
					return nil, &domain.ConfigurationError{
						Field:  fmt.Sprintf("frames.%s", frame),
						Reason: fmt.Sprintf("term %q listed in more than one tier", term),
					}
				}
				termWeights[key] = w
				terms = append(terms, key)
			}
		}
		l.frames[frame] = frameLexicon{matcher: lexicon.Compile(terms), weights: termWeights}
	}
	return l, nil
}

// Name implements Classifier.
func (l *Lexical) Name() string { return LexicalName }

// Classify implements Classifier. Each detected frame carries the base
// spans whose keywords produced it.
func (l *Lexical) Classify(ctx context.Context, units []domain.TextUnit) ([]domain.FrameScores, error) {
	out := make([]domain.FrameScores, len(units))
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var locate func(int) int
		if len(u.Spans) > 0 {
			locate = func(offset int) int { return u.SpanAt(u.Start + offset) }
		}
		out[i] = l.score(u.Text, locate)
	}
	return out, nil
}

// Score returns the frame scores of a single text.
func (l *Lexical) Score(text string) domain.FrameScores {
	return l.score(text, nil)
}

// score sums weighted hits per frame. locate maps a text offset to the
// span holding it; nil leaves Evidence empty.
func (l *Lexical) score(text string, locate func(int) int) domain.FrameScores {
	scores := make(domain.FrameScores, len(domain.AllFrames))
	var words float64
	if l.density {
		words = float64(len(strings.Fields(text)))
	}
	for _, frame := range domain.AllFrames {
		lex, ok := l.frames[frame]
		if !ok || lex.matcher.Empty() {
			scores[frame] = domain.FrameScore{}
			continue
		}
		sum := 0.0
		var evidence []int
		for _, m := range lex.matcher.FindAll(text) {
			sum += lex.weights[m.Term]
			if locate != nil {
				evidence = appendSeq(evidence, locate(m.Start))
			}
		}
		if l.density {
			if words == 0 {
				sum = 0
			} else {
				sum /= words / 100
			}
		}
		score := domain.FrameScore{Value: clamp(sum / l.saturation)}
		if score.Value > 0 {
			score.Evidence = evidence
		}
		scores[frame] = score
	}
	return scores
}

// appendSeq adds seq to an ascending set.
func appendSeq(seqs []int, seq int) []int {
	i := sort.SearchInts(seqs, seq)
	if i < len(seqs) && seqs[i] == seq {
		return seqs
	}
	return slices.Insert(seqs, i, seq)
}
