// Package ensemble combines several independently defined significance
// sub-methods over the same sample into one confidence score.
package ensemble

import (
	"context"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"lagscan/domain/result"
	"lagscan/internal/correlate"
	"lagscan/internal/errors"
	"lagscan/internal/robustfit"
)

// Sub-method names, used as weight keys in configuration
const (
	MethodDirect       = "direct_correlation"
	MethodSlope        = "linear_slope"
	MethodResidual     = "residual_correlation"
	MethodBinned       = "energy_binned"
	MethodRANSACInlier = "ransac_inlier"
)

// residualExponent is the fixed intrinsic-lag exponent the residual channel
// detrends with before re-correlating
const residualExponent = -0.3

// minBinOccupancy is the smallest usable energy bin
const minBinOccupancy = 6

// method computes one significance estimate over the sample
type method struct {
	name    string
	compute func(energy, time []float64, rng *rand.Rand) (float64, error)
}

// Combiner runs the sub-method battery and combines the outcomes by
// configurable non-negative weights (equal by default)
type Combiner struct {
	methods []method
	weights map[string]float64
	bins    int
	ransac  robustfit.Options
}

// NewCombiner creates the ensemble combiner. weights may be nil for equal
// weighting; individual missing keys default to 1.
func NewCombiner(weights map[string]float64, bins int, ransac robustfit.Options) (*Combiner, error) {
	for name, w := range weights {
		if w < 0 {
			return nil, errors.Newf(errors.CodeConfigInvalid, "ensemble weight for %q must be non-negative, got %g", name, w)
		}
	}
	if bins < 2 {
		return nil, errors.Newf(errors.CodeConfigInvalid, "energy bins must be >= 2, got %d", bins)
	}

	c := &Combiner{weights: weights, bins: bins, ransac: ransac}
	c.methods = []method{
		{MethodDirect, c.directSigma},
		{MethodSlope, c.slopeSigma},
		{MethodResidual, c.residualSigma},
		{MethodBinned, c.binnedSigma},
		{MethodRANSACInlier, c.ransacInlierSigma},
	}
	return c, nil
}

// Score runs every sub-method and reports the weighted combination, the
// dispersion across methods and the single best method. Sub-method failures
// are recoverable: they are excluded with an annotation, and only a fully
// failed battery is an error.
func (c *Combiner) Score(ctx context.Context, energy, time []float64, rng *rand.Rand) (*result.EnsembleScore, error) {
	score := &result.EnsembleScore{}

	var sigmas []float64
	var weightSum, combined float64
	bestSigma := math.Inf(-1)

	for _, m := range c.methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sigma, err := m.compute(energy, time, rng)
		if err != nil {
			score.Excluded = append(score.Excluded, result.MethodFailure{
				Method: m.name,
				Code:   errors.GetCode(err),
				Reason: err.Error(),
			})
			continue
		}

		w := c.weightFor(m.name)
		score.PerMethod = append(score.PerMethod, result.MethodScore{
			Method: m.name,
			Sigma:  sigma,
			Weight: w,
		})
		sigmas = append(sigmas, sigma)
		combined += w * sigma
		weightSum += w
		if sigma > bestSigma {
			bestSigma = sigma
			score.BestMethod = m.name
		}
	}

	if len(sigmas) == 0 {
		return nil, errors.New(errors.CodeInsufficientData, "every ensemble sub-method failed")
	}
	if weightSum == 0 {
		return nil, errors.New(errors.CodeConfigInvalid, "surviving ensemble sub-methods have zero total weight")
	}

	score.Combined = combined / weightSum
	if len(sigmas) > 1 {
		score.Dispersion, _ = stats.StandardDeviation(sigmas)
	}
	return score, nil
}

func (c *Combiner) weightFor(name string) float64 {
	if c.weights == nil {
		return 1
	}
	if w, ok := c.weights[name]; ok {
		return w
	}
	return 1
}

// directSigma is the plain full-sample correlation significance
func (c *Combiner) directSigma(energy, time []float64, _ *rand.Rand) (float64, error) {
	res, err := correlate.Analyze(result.EstimatorPearson, energy, time)
	if err != nil {
		return 0, err
	}
	return res.Sigma, nil
}

// slopeSigma is the t-statistic of the ordinary least-squares slope
func (c *Combiner) slopeSigma(energy, time []float64, _ *rand.Rand) (float64, error) {
	if len(energy) < 3 {
		return 0, errors.Newf(errors.CodeInsufficientData, "need at least 3 points, got %d", len(energy))
	}
	intercept, slope := stat.LinearRegression(energy, time, nil, false)
	sigma := correlate.SlopeSigma(energy, time, slope, intercept)
	if math.IsNaN(sigma) {
		return 0, errors.New(errors.CodeDegenerateInput, "slope significance undefined")
	}
	return sigma, nil
}

// residualSigma detrends a fixed-exponent power-law lag and re-correlates the
// residuals with energy
func (c *Combiner) residualSigma(energy, time []float64, _ *rand.Rand) (float64, error) {
	if len(energy) < 3 {
		return 0, errors.Newf(errors.CodeInsufficientData, "need at least 3 points, got %d", len(energy))
	}

	basis := make([]float64, len(energy))
	for i, e := range energy {
		basis[i] = math.Pow(e, residualExponent)
	}
	intercept, slope := stat.LinearRegression(basis, time, nil, false)

	residuals := make([]float64, len(time))
	for i := range time {
		residuals[i] = time[i] - (intercept + slope*basis[i])
	}

	res, err := correlate.Analyze(result.EstimatorPearson, energy, residuals)
	if err != nil {
		return 0, err
	}
	return res.Sigma, nil
}

// binnedSigma averages per-energy-bin correlation significances
func (c *Combiner) binnedSigma(energy, time []float64, _ *rand.Rand) (float64, error) {
	n := len(energy)
	nBins := min(c.bins, n/100)
	if nBins < 2 {
		return 0, errors.Newf(errors.CodeInsufficientData, "%d points support no energy binning", n)
	}

	eMin, eMax := energy[0], energy[0]
	for _, e := range energy {
		eMin = math.Min(eMin, e)
		eMax = math.Max(eMax, e)
	}
	width := (eMax - eMin) / float64(nBins)
	if width <= 0 {
		return 0, errors.New(errors.CodeDegenerateInput, "zero energy range")
	}

	var binSigmas []float64
	for b := 0; b < nBins; b++ {
		lo := eMin + float64(b)*width
		hi := lo + width

		var be, bt []float64
		for i, e := range energy {
			if e >= lo && (e < hi || (b == nBins-1 && e <= hi)) {
				be = append(be, e)
				bt = append(bt, time[i])
			}
		}
		if len(be) < minBinOccupancy {
			continue
		}
		res, err := correlate.Analyze(result.EstimatorPearson, be, bt)
		if err != nil {
			continue
		}
		binSigmas = append(binSigmas, res.Sigma)
	}

	if len(binSigmas) == 0 {
		return 0, errors.New(errors.CodeInsufficientData, "no energy bin was populated enough to correlate")
	}
	mean, _ := stats.Mean(binSigmas)
	return mean, nil
}

// ransacInlierSigma is the correlation significance restricted to the RANSAC
// consensus inliers, suppressing the influence of extreme outliers
func (c *Combiner) ransacInlierSigma(energy, time []float64, rng *rand.Rand) (float64, error) {
	fit, err := robustfit.Fit(energy, time, c.ransac, rng)
	if err != nil {
		return 0, err
	}

	var ie, it []float64
	for i, in := range fit.InlierMask {
		if in {
			ie = append(ie, energy[i])
			it = append(it, time[i])
		}
	}
	res, err := correlate.Analyze(result.EstimatorPearson, ie, it)
	if err != nil {
		return 0, err
	}
	return res.Sigma, nil
}
