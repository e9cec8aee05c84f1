// Package agreement compares automated tallies with human coding using
// absolute-agreement intraclass correlation per cell and presence metrics
// per frame.
package agreement

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/mjf789/spam-news/internal/domain"
)

// DefaultConfidenceLevel is used when the configuration leaves it unset.
const DefaultConfidenceLevel = 0.95

// Config controls the evaluator.
type Config struct {
	ConfidenceLevel float64
}

// Pair couples an automated tally with its human coding. Coding is nil when
// the article was never coded.
type Pair struct {
	ArticleID string
	Tally     domain.ArticleTally
	Coding    *domain.HumanCoding
}

// Presence holds frame-level detection agreement: a frame is present in an
// article when any of its cells is non-zero.
type Presence struct {
	Frame          domain.FrameLabel `json:"frame"`
	TruePositives  int               `json:"true_positives"`
	FalsePositives int               `json:"false_positives"`
	FalseNegatives int               `json:"false_negatives"`
	TrueNegatives  int               `json:"true_negatives"`
	Precision      float64           `json:"precision"`
	Recall         float64           `json:"recall"`
	F1             float64           `json:"f1"`
	Kappa          float64           `json:"kappa"`
}

// Report is the corpus-level agreement outcome.
type Report struct {
	Articles    int                    `json:"articles"`
	Cells       []domain.CellAgreement `json:"cells"`
	MeanICC     *float64               `json:"mean_icc,omitempty"`
	MeanAbsDiff float64                `json:"mean_abs_diff"`
	Presence    []Presence             `json:"presence"`
	Gaps        []domain.CoverageGap   `json:"gaps,omitempty"`
}

// Evaluator is safe for concurrent use.
type Evaluator struct {
	level  float64
	logger *slog.Logger
}

// New validates the confidence level.
func New(cfg Config, logger *slog.Logger) (*Evaluator, error) {
	level := cfg.ConfidenceLevel
	if level == 0 {
		level = DefaultConfidenceLevel
	}
	if level <= 0 || level >= 1 {
		return nil, &domain.ConfigurationError{Field: "agreement.confidenceLevel", Reason: "must be within (0, 1)"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{level: level, logger: logger.With("component", "agreement")}, nil
}

// Evaluate computes per-cell ICCs over coded articles. Uncoded articles are
// reported as coverage gaps and excluded everywhere.
func (e *Evaluator) Evaluate(pairs []Pair) Report {
	var report Report
	coded := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Coding == nil {
			report.Gaps = append(report.Gaps, domain.CoverageGap{ArticleID: p.ArticleID, Reason: "no human coding"})
			continue
		}
		coded = append(coded, p)
	}
	report.Articles = len(coded)
	if len(coded) == 0 {
		report.Presence = e.presence(nil)
		return report
	}

	seen := map[domain.Cell]bool{}
	var cells []domain.Cell
	for _, p := range coded {
		for _, c := range append(p.Tally.Cells(), p.Coding.Cells()...) {
			if !seen[c] {
				seen[c] = true
				cells = append(cells, c)
			}
		}
	}
	domain.SortCells(cells)

	var iccSum, absSum float64
	var defined int
	for _, c := range cells {
		stat := e.cell(c, coded)
		report.Cells = append(report.Cells, stat)
		absSum += stat.MeanAbsDiff
		if stat.Defined {
			iccSum += stat.ICC
			defined++
		} else {
			e.logger.Debug("icc undefined", "cell", c.String(), "reason", stat.Note)
		}
	}
	if len(cells) > 0 {
		report.MeanAbsDiff = absSum / float64(len(cells))
	}
	if defined > 0 {
		mean := iccSum / float64(defined)
		report.MeanICC = &mean
	}
	report.Presence = e.presence(coded)
	return report
}

func (e *Evaluator) cell(c domain.Cell, pairs []Pair) domain.CellAgreement {
	stat := domain.CellAgreement{Frame: c.Frame, Target: c.Target, N: len(pairs)}
	table := make([][raters]float64, len(pairs))
	identical := true
	var absSum float64
	for i, p := range pairs {
		auto := float64(p.Tally.Count(c))
		human := p.Coding.Count(c)
		table[i] = [raters]float64{auto, human}
		if auto != human {
			identical = false
		}
		absSum += math.Abs(auto - human)
	}
	stat.MeanAbsDiff = absSum / float64(len(pairs))

	if identical {
		stat.Defined = true
		stat.ICC, stat.Lower, stat.Upper = 1, 1, 1
		stat.ICCk, stat.LowerK, stat.UpperK = 1, 1, 1
		return stat
	}

	res, ok := computeICC(table, e.level)
	if !ok {
		stat.Note = fmt.Sprintf("icc undefined with %d article(s)", len(pairs))
		return stat
	}
	stat.Defined = true
	stat.ICC, stat.Lower, stat.Upper = res.single, res.lower, res.upper
	stat.ICCk, stat.LowerK, stat.UpperK = res.average, res.lowerK, res.upperK
	if !res.boundsOK {
		stat.Note = "confidence bounds undefined"
	}
	return stat
}

func (e *Evaluator) presence(pairs []Pair) []Presence {
	out := make([]Presence, 0, len(domain.AllFrames))
	for _, f := range domain.AllFrames {
		p := Presence{Frame: f}
		for _, pair := range pairs {
			auto := pair.Tally.FrameTotal(f) > 0
			human := pair.Coding.FrameTotal(f) > 0
			switch {
			case auto && human:
				p.TruePositives++
			case auto:
				p.FalsePositives++
			case human:
				p.FalseNegatives++
			default:
				p.TrueNegatives++
			}
		}
		p.Precision = ratio(p.TruePositives, p.TruePositives+p.FalsePositives)
		p.Recall = ratio(p.TruePositives, p.TruePositives+p.FalseNegatives)
		if p.Precision+p.Recall > 0 {
			p.F1 = 2 * p.Precision * p.Recall / (p.Precision + p.Recall)
		}
		p.Kappa = kappa(p)
		out = append(out, p)
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// kappa is Cohen's kappa of the 2×2 presence table.
func kappa(p Presence) float64 {
	n := float64(p.TruePositives + p.FalsePositives + p.FalseNegatives + p.TrueNegatives)
	if n == 0 {
		return 0
	}
	po := float64(p.TruePositives+p.TrueNegatives) / n
	autoYes := float64(p.TruePositives+p.FalsePositives) / n
	humanYes := float64(p.TruePositives+p.FalseNegatives) / n
	pe := autoYes*humanYes + (1-autoYes)*(1-humanYes)
	if pe == 1 {
		if po == 1 {
			return 1
		}
		return 0
	}
	return (po - pe) / (1 - pe)
}
