// Package correlate is the single parameterized correlation estimator used by
// every higher-level component of the pipeline.
package correlate

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"lagscan/domain/result"
	"lagscan/internal/errors"
)

// minSampleSize is the smallest n for which any coefficient here is defined
const minSampleSize = 3

// Coefficient computes the requested correlation between x and y.
// Fails with INSUFFICIENT_DATA for n < 3 and DEGENERATE_INPUT when either
// array has zero variance; it never silently returns NaN.
func Coefficient(estimator result.EstimatorName, x, y []float64) (float64, error) {
	if err := validatePair(x, y); err != nil {
		return 0, err
	}

	switch estimator {
	case result.EstimatorPearson:
		return clampUnit(stat.Correlation(x, y, nil)), nil
	case result.EstimatorSpearman:
		return clampUnit(stat.Correlation(ranks(x), ranks(y), nil)), nil
	case result.EstimatorKendall:
		return clampUnit(stat.Kendall(x, y, nil)), nil
	default:
		return 0, errors.Newf(errors.CodeConfigInvalid, "unknown correlation estimator %q", estimator)
	}
}

// Analyze computes the coefficient plus its significance in one call
func Analyze(estimator result.EstimatorName, x, y []float64) (result.CorrelationResult, error) {
	r, err := Coefficient(estimator, x, y)
	if err != nil {
		return result.CorrelationResult{}, err
	}
	n := len(x)
	return result.NewCorrelationResult(estimator, r, PValue(r, n), Sigma(r, n), n)
}

func validatePair(x, y []float64) error {
	if len(x) != len(y) {
		return errors.Newf(errors.CodeInsufficientData, "array length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) < minSampleSize {
		return errors.Newf(errors.CodeInsufficientData, "need at least %d points, got %d", minSampleSize, len(x))
	}
	if !hasVariance(x) {
		return errors.New(errors.CodeDegenerateInput, "first array has zero variance")
	}
	if !hasVariance(y) {
		return errors.New(errors.CodeDegenerateInput, "second array has zero variance")
	}
	return nil
}

func hasVariance(data []float64) bool {
	for _, v := range data[1:] {
		if v != data[0] {
			return true
		}
	}
	return false
}

// ranks assigns ranks to data, handling ties by averaging
func ranks(data []float64) []float64 {
	n := len(data)
	out := make([]float64, n)

	type pair struct {
		value float64
		index int
	}
	pairs := make([]pair, n)
	for i, v := range data {
		pairs[i] = pair{v, i}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	i := 0
	for i < n {
		j := i
		for j < n-1 && pairs[j+1].value == pairs[i].value {
			j++
		}
		// Average rank across the tied group
		avgRank := float64(i+j)/2.0 + 1
		for k := i; k <= j; k++ {
			out[pairs[k].index] = avgRank
		}
		i = j + 1
	}
	return out
}

func clampUnit(r float64) float64 {
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}
