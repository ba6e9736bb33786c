package nullcal

import (
	"github.com/montanaflynn/stats"

	"lagscan/domain/result"
	"lagscan/internal/errors"
)

// Classify compares the observed ensemble score against the dynamic
// null-derived threshold: the configured percentile of the null scores.
// The conventional fixed sigma cuts are reported alongside for transparency
// but never drive the verdict.
func Classify(null *result.NullDistribution, observed, percentile float64) (*result.Classification, error) {
	if null == nil || len(null.Scores) == 0 {
		return nil, errors.New(errors.CodeInsufficientData, "empty null distribution")
	}
	if percentile <= 0 || percentile >= 100 {
		return nil, errors.Newf(errors.CodeConfigInvalid, "threshold percentile must be in (0, 100), got %g", percentile)
	}

	threshold, err := stats.Percentile(null.Scores, percentile)
	if err != nil {
		return nil, errors.Wrap(err, "null percentile computation failed")
	}

	return &result.Classification{
		Detected:          observed > threshold,
		Threshold:         threshold,
		Percentile:        percentile,
		Observed:          observed,
		Margin:            observed - threshold,
		Band:              result.BandForSigma(observed),
		ExceedsTwoSigma:   observed >= 2,
		ExceedsThreeSigma: observed >= 3,
		ExceedsFiveSigma:  observed >= 5,
	}, nil
}
