// Package robustfit fits the outlier-robust consensus line
// time = intercept + slope*energy via RANSAC.
package robustfit

import (
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"lagscan/domain/result"
	"lagscan/internal/errors"
)

// Options controls the RANSAC search
type Options struct {
	// ResidualThreshold marks a point as inlier when |residual| <= threshold.
	// A non-positive value selects the MAD of y, matching the usual
	// RANSACRegressor default.
	ResidualThreshold float64
	// MinInlierFraction is the smallest acceptable consensus size relative to n.
	MinInlierFraction float64
	// MaxIterations bounds the number of random minimal subsets tried.
	MaxIterations int
}

// DefaultOptions mirrors the pipeline defaults
func DefaultOptions() Options {
	return Options{
		ResidualThreshold: 0,
		MinInlierFraction: 0.5,
		MaxIterations:     200,
	}
}

// Fit runs RANSAC over (x, y): repeatedly sample 2-point subsets, fit a
// candidate line, count inliers within the residual threshold, keep the
// consensus with the most inliers (ties broken by smaller inlier residual
// sum), then refit on all consensus inliers with ordinary least squares.
func Fit(x, y []float64, opts Options, rng *rand.Rand) (*result.RegressionFit, error) {
	n := len(x)
	if n != len(y) {
		return nil, errors.Newf(errors.CodeInsufficientData, "array length mismatch: %d vs %d", n, len(y))
	}
	if n < 3 {
		return nil, errors.Newf(errors.CodeInsufficientData, "need at least 3 points for RANSAC, got %d", n)
	}
	if opts.MaxIterations < 1 {
		return nil, errors.Newf(errors.CodeConfigInvalid, "max iterations must be positive, got %d", opts.MaxIterations)
	}
	if opts.MinInlierFraction <= 0 || opts.MinInlierFraction > 1 {
		return nil, errors.Newf(errors.CodeConfigInvalid, "min inlier fraction must be in (0, 1], got %g", opts.MinInlierFraction)
	}

	threshold := opts.ResidualThreshold
	if threshold <= 0 {
		threshold = medianAbsoluteDeviation(y)
	}
	if threshold <= 0 {
		return nil, errors.New(errors.CodeDegenerateInput, "cannot derive residual threshold from constant response")
	}

	bestCount := 0
	bestResidSum := math.Inf(1)
	var bestSlope, bestIntercept float64

	for iter := 0; iter < opts.MaxIterations; iter++ {
		i := rng.Intn(n)
		j := rng.Intn(n)
		if i == j || x[i] == x[j] {
			continue
		}

		slope := (y[j] - y[i]) / (x[j] - x[i])
		intercept := y[i] - slope*x[i]

		count := 0
		residSum := 0.0
		for k := 0; k < n; k++ {
			resid := math.Abs(y[k] - (intercept + slope*x[k]))
			if resid <= threshold {
				count++
				residSum += resid
			}
		}

		if count > bestCount || (count == bestCount && residSum < bestResidSum) {
			bestCount = count
			bestResidSum = residSum
			bestSlope = slope
			bestIntercept = intercept
		}
	}

	minInliers := int(math.Ceil(opts.MinInlierFraction * float64(n)))
	if bestCount < minInliers {
		return nil, errors.Newf(errors.CodeNotEnoughInliers,
			"best consensus has %d/%d inliers, below required fraction %g",
			bestCount, n, opts.MinInlierFraction)
	}

	// Refit on the consensus set, then recompute the mask against the refit line.
	mask := inlierMask(x, y, bestSlope, bestIntercept, threshold)
	xin, yin := selectMasked(x, y, mask)
	intercept, slope := stat.LinearRegression(xin, yin, nil, false)
	mask = inlierMask(x, y, slope, intercept, threshold)

	count := 0
	for _, in := range mask {
		if in {
			count++
		}
	}

	return &result.RegressionFit{
		Slope:          slope,
		Intercept:      intercept,
		InlierMask:     mask,
		InlierCount:    count,
		InlierFraction: float64(count) / float64(n),
		ResidualThresh: threshold,
		Iterations:     opts.MaxIterations,
	}, nil
}

func inlierMask(x, y []float64, slope, intercept, threshold float64) []bool {
	mask := make([]bool, len(x))
	for k := range x {
		mask[k] = math.Abs(y[k]-(intercept+slope*x[k])) <= threshold
	}
	return mask
}

func selectMasked(x, y []float64, mask []bool) ([]float64, []float64) {
	var xs, ys []float64
	for i, in := range mask {
		if in {
			xs = append(xs, x[i])
			ys = append(ys, y[i])
		}
	}
	return xs, ys
}

// medianAbsoluteDeviation is the MAD with the 1.4826 consistency scaling,
// a robust spread estimate
func medianAbsoluteDeviation(data []float64) float64 {
	med, err := stats.Median(data)
	if err != nil {
		return 0
	}
	devs := make([]float64, len(data))
	for i, v := range data {
		devs[i] = math.Abs(v - med)
	}
	mad, err := stats.Median(devs)
	if err != nil {
		return 0
	}
	return 1.4826 * mad
}
