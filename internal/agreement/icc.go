package agreement

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// raters is fixed: the automated count and the averaged human count.
const raters = 2

// iccResult holds two-way random, absolute-agreement coefficients.
type iccResult struct {
	single, lower, upper    float64
	average, lowerK, upperK float64
	boundsOK                bool
}

// meanSquares returns the row, column and error mean squares of an n×2
// table.
func meanSquares(x [][raters]float64) (msr, msc, mse float64) {
	n := float64(len(x))
	k := float64(raters)

	var grand float64
	var cols [raters]float64
	for _, row := range x {
		for j, v := range row {
			grand += v
			cols[j] += v
		}
	}
	grand /= n * k

	var ssr, ssc, sst float64
	for _, row := range x {
		mean := (row[0] + row[1]) / k
		ssr += (mean - grand) * (mean - grand)
		for _, v := range row {
			sst += (v - grand) * (v - grand)
		}
	}
	ssr *= k
	for j := range cols {
		m := cols[j]/n - grand
		ssc += m * m
	}
	ssc *= n
	sse := sst - ssr - ssc
	if sse < 0 {
		sse = 0
	}

	msr = ssr / (n - 1)
	msc = ssc / (k - 1)
	mse = sse / ((n - 1) * (k - 1))
	return msr, msc, mse
}

// computeICC returns ICC(A,1) and ICC(A,k) with McGraw–Wong bounds at the
// given confidence level. ok is false when the coefficient is undefined.
func computeICC(x [][raters]float64, level float64) (res iccResult, ok bool) {
	n := float64(len(x))
	k := float64(raters)
	if len(x) < 2 {
		return res, false
	}

	msr, msc, mse := meanSquares(x)
	den1 := msr + (k-1)*mse + k*(msc-mse)/n
	denK := msr + (msc-mse)/n
	if den1 == 0 || denK == 0 {
		return res, false
	}
	res.single = (msr - mse) / den1
	res.average = (msr - mse) / denK

	if res.single >= 1 {
		res.lower, res.upper = 1, 1
		res.lowerK, res.upperK = 1, 1
		res.boundsOK = true
		return res, true
	}

	a := k * res.single / (n * (1 - res.single))
	b := 1 + k*res.single*(n-1)/(n*(1-res.single))
	v := math.Pow(a*msc+b*mse, 2) / (math.Pow(a*msc, 2)/(k-1) + math.Pow(b*mse, 2)/((n-1)*(k-1)))
	if !(v > 0) || math.IsInf(v, 0) {
		res.lower, res.upper = res.single, res.single
		res.lowerK, res.upperK = res.average, res.average
		return res, true
	}

	p := 1 - (1-level)/2
	fu := fQuantile(p, n-1, v)
	fl := fQuantile(p, v, n-1)
	c := k*msc + (k*n-k-n)*mse
	res.lower = clampICC(n * (msr - fu*mse) / (fu*c + n*msr))
	res.upper = clampICC(n * (fl*msr - mse) / (c + n*fl*msr))
	res.lowerK = spearmanBrown(res.lower, k)
	res.upperK = spearmanBrown(res.upper, k)
	res.boundsOK = true
	return res, true
}

// spearmanBrown steps a single-rater bound up to k raters. Bounds at or
// below -1/(k-1) have no k-rater counterpart and map to -1.
func spearmanBrown(r, k float64) float64 {
	if r <= -1/(k-1) {
		return -1
	}
	return clampICC(r * k / (1 + r*(k-1)))
}

func clampICC(r float64) float64 {
	return math.Max(-1, math.Min(1, r))
}

// fQuantile inverts the F(d1, d2) distribution through the regularized
// incomplete beta function.
func fQuantile(p, d1, d2 float64) float64 {
	x := mathext.InvRegIncBeta(d1/2, d2/2, p)
	if x >= 1 {
		return math.Inf(1)
	}
	return d2 * x / (d1 * (1 - x))
}
