package agreement

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mjf789/spam-news/internal/domain"
)

var (
	obstaclesWOC = domain.Cell{Frame: domain.FrameObstacles, Target: domain.TargetWomenOfColor}
	successesMen = domain.Cell{Frame: domain.FrameSuccesses, Target: domain.TargetMen}
)

func evaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func tally(id string, counts map[domain.Cell]int) domain.ArticleTally {
	var ex []domain.Exemplar
	for c, n := range counts {
		for range n {
			ex = append(ex, domain.Exemplar{ArticleID: id, Frame: c.Frame, Target: c.Target})
		}
	}
	return domain.NewArticleTally(id, ex)
}

func coding(counts map[domain.Cell]float64) *domain.HumanCoding {
	h := domain.NewHumanCoding(counts)
	return &h
}

func TestPerfectAgreement(t *testing.T) {
	t.Parallel()

	pairs := []Pair{{
		ArticleID: "a1",
		Tally:     tally("a1", map[domain.Cell]int{obstaclesWOC: 3}),
		Coding:    coding(map[domain.Cell]float64{obstaclesWOC: 3}),
	}}
	report := evaluator(t).Evaluate(pairs)

	require.Len(t, report.Cells, 1)
	cell := report.Cells[0]
	assert.Equal(t, obstaclesWOC, cell.Cell())
	assert.True(t, cell.Defined)
	assert.Equal(t, 1.0, cell.ICC)
	assert.Equal(t, 1.0, cell.Lower)
	assert.Equal(t, 1.0, cell.Upper)
	require.NotNil(t, report.MeanICC)
	assert.Equal(t, 1.0, *report.MeanICC)
	assert.Zero(t, report.MeanAbsDiff)
}

func TestICCKnownValues(t *testing.T) {
	t.Parallel()

	table := [][raters]float64{{1, 2}, {3, 3}, {5, 4}}
	msr, msc, mse := meanSquares(table)
	assert.InDelta(t, 4.5, msr, 1e-12)
	assert.InDelta(t, 0, msc, 1e-12)
	assert.InDelta(t, 0.5, mse, 1e-12)

	res, ok := computeICC(table, 0.95)
	require.True(t, ok)
	assert.InDelta(t, 12.0/14.0, res.single, 1e-9)
	assert.InDelta(t, 4/(4.5-0.5/3), res.average, 1e-9)
	assert.True(t, res.boundsOK)
	// Three articles leave the lower bound below -1; it is clamped.
	assert.Equal(t, -1.0, res.lower)
	assert.Equal(t, -1.0, res.lowerK)
	assert.InDelta(t, 0.99620, res.upper, 1e-3)
}

func TestICCBounds(t *testing.T) {
	t.Parallel()

	table := [][raters]float64{{1, 2}, {3, 3}, {5, 4}, {2, 2}, {6, 5}, {0, 1}, {4, 4}, {2, 3}}
	res, ok := computeICC(table, 0.95)
	require.True(t, ok)
	assert.InDelta(t, 0.89164, res.single, 1e-4)
	assert.InDelta(t, 0.94272, res.average, 1e-4)
	assert.InDelta(t, 0.55779, res.lower, 1e-3)
	assert.InDelta(t, 0.97730, res.upper, 1e-3)
	assert.InDelta(t, 0.71613, res.lowerK, 1e-3)
	assert.InDelta(t, 0.98852, res.upperK, 1e-3)
}

func TestFQuantile(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 4.9646, fQuantile(0.95, 1, 10), 1e-3)
	assert.InDelta(t, 4.2361, fQuantile(0.975, 5, 10), 1e-3)

	for _, df := range [][2]float64{{2, 3}, {4, 7.5}, {10, 1.2}} {
		q := fQuantile(0.9, df[0], df[1])
		cdf := distuv.F{D1: df[0], D2: df[1]}.CDF(q)
		assert.InDelta(t, 0.9, cdf, 1e-6, "df %v", df)
	}
}

func TestUndefinedCellExcludedFromMean(t *testing.T) {
	t.Parallel()

	pairs := []Pair{{
		ArticleID: "a1",
		Tally:     tally("a1", map[domain.Cell]int{obstaclesWOC: 2, successesMen: 1}),
		Coding:    coding(map[domain.Cell]float64{obstaclesWOC: 2}),
	}}
	report := evaluator(t).Evaluate(pairs)

	require.Len(t, report.Cells, 2)
	byCell := map[domain.Cell]domain.CellAgreement{}
	for _, c := range report.Cells {
		byCell[c.Cell()] = c
	}
	assert.True(t, byCell[obstaclesWOC].Defined)
	assert.False(t, byCell[successesMen].Defined)
	assert.NotEmpty(t, byCell[successesMen].Note)
	require.NotNil(t, report.MeanICC)
	assert.Equal(t, 1.0, *report.MeanICC)
	assert.InDelta(t, 0.5, report.MeanAbsDiff, 1e-12)
}

func TestUncodedArticlesAreGaps(t *testing.T) {
	t.Parallel()

	pairs := []Pair{
		{ArticleID: "coded", Tally: tally("coded", map[domain.Cell]int{obstaclesWOC: 1}), Coding: coding(map[domain.Cell]float64{obstaclesWOC: 1})},
		{ArticleID: "raw", Tally: tally("raw", map[domain.Cell]int{successesMen: 4})},
	}
	report := evaluator(t).Evaluate(pairs)

	assert.Equal(t, 1, report.Articles)
	assert.Equal(t, []domain.CoverageGap{{ArticleID: "raw", Reason: "no human coding"}}, report.Gaps)
	require.Len(t, report.Cells, 1)
	assert.Equal(t, 1, report.Cells[0].N)
}

func TestPresenceMetrics(t *testing.T) {
	t.Parallel()

	pairs := []Pair{
		{ArticleID: "tp", Tally: tally("tp", map[domain.Cell]int{obstaclesWOC: 1}), Coding: coding(map[domain.Cell]float64{obstaclesWOC: 2})},
		{ArticleID: "fp", Tally: tally("fp", map[domain.Cell]int{obstaclesWOC: 1}), Coding: coding(nil)},
		{ArticleID: "fn", Tally: tally("fn", nil), Coding: coding(map[domain.Cell]float64{obstaclesWOC: 0.5})},
		{ArticleID: "tn", Tally: tally("tn", nil), Coding: coding(nil)},
	}
	report := evaluator(t).Evaluate(pairs)

	var obstacles Presence
	for _, p := range report.Presence {
		if p.Frame == domain.FrameObstacles {
			obstacles = p
		}
	}
	assert.Equal(t, 1, obstacles.TruePositives)
	assert.Equal(t, 1, obstacles.FalsePositives)
	assert.Equal(t, 1, obstacles.FalseNegatives)
	assert.Equal(t, 1, obstacles.TrueNegatives)
	assert.InDelta(t, 0.5, obstacles.Precision, 1e-12)
	assert.InDelta(t, 0.5, obstacles.Recall, 1e-12)
	assert.InDelta(t, 0.5, obstacles.F1, 1e-12)
	assert.InDelta(t, 0, obstacles.Kappa, 1e-12)
}

func TestNewRejectsLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ConfidenceLevel: 1.2}, nil)
	assert.True(t, domain.IsConfiguration(err))
}
