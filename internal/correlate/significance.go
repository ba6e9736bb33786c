package correlate

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// rClipEpsilon keeps |r| away from 1 so the sigma denominator stays finite
const rClipEpsilon = 1e-9

// Sigma converts a correlation coefficient and sample size into a z-score-like
// significance: |r| * sqrt(n-2) / sqrt(1 - r^2), with |r| clipped to 1-epsilon.
func Sigma(r float64, n int) float64 {
	if n < minSampleSize {
		return 0
	}
	r = clipAbs(r)
	return math.Abs(r) * math.Sqrt(float64(n-2)) / math.Sqrt(1-r*r)
}

// PValue is the two-sided p-value of r from the Student-t distribution with
// n-2 degrees of freedom.
func PValue(r float64, n int) float64 {
	if n < minSampleSize {
		return 1
	}
	r = clipAbs(r)
	df := float64(n - 2)
	t := math.Abs(r) * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(t)
	if p > 1 {
		p = 1
	}
	return p
}

// SlopeSigma is the t-statistic of an OLS slope estimate: |slope| / SE(slope).
// Used by the ensemble's linear-fit channel.
func SlopeSigma(x, y []float64, slope, intercept float64) float64 {
	n := len(x)
	if n < minSampleSize {
		return 0
	}

	var rss, sxx, xMean float64
	for _, v := range x {
		xMean += v
	}
	xMean /= float64(n)
	for i := range x {
		resid := y[i] - (intercept + slope*x[i])
		rss += resid * resid
		dx := x[i] - xMean
		sxx += dx * dx
	}
	if sxx == 0 {
		return math.NaN()
	}
	if rss == 0 {
		// Perfect fit: saturate the same way the correlation channel does
		// instead of reporting an infinite statistic.
		return Sigma(1, n)
	}
	se := math.Sqrt(rss / float64(n-2) / sxx)
	return math.Abs(slope) / se
}

func clipAbs(r float64) float64 {
	limit := 1 - rClipEpsilon
	if r > limit {
		return limit
	}
	if r < -limit {
		return -limit
	}
	return r
}
