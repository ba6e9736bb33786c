package lagfit

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"lagscan/domain/result"
	"lagscan/internal/correlate"
	"lagscan/internal/errors"
)

// boundPenalty steers the minimizer back inside the variant's parameter box
const boundPenalty = 1e8

// Fitter fits every registered variant and compares them by AIC
type Fitter struct {
	variants []Variant
}

// NewFitter creates a fitter over the full variant registry
func NewFitter() *Fitter {
	return &Fitter{variants: Registry()}
}

// FitAll fits each variant against (energy, time). A variant that fails to
// converge is recoverable: it is skipped with a reason and excluded from the
// comparison. The best surviving variant is the one with minimum AIC, ties
// broken by fewer parameters. Fails only when no variant converged.
func (f *Fitter) FitAll(ctx context.Context, energy, time []float64) (*result.ModelSelection, error) {
	if len(energy) != len(time) {
		return nil, errors.Newf(errors.CodeInsufficientData, "array length mismatch: %d vs %d", len(energy), len(time))
	}
	if len(energy) < 3 {
		return nil, errors.Newf(errors.CodeInsufficientData, "need at least 3 points for model fitting, got %d", len(energy))
	}
	for i, e := range energy {
		if e <= 0 {
			return nil, errors.Newf(errors.CodeDegenerateInput, "non-positive energy %g at index %d", e, i)
		}
	}

	v := newView(energy, time)
	sel := &result.ModelSelection{}

	for _, variant := range f.variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fit, err := f.fitVariant(variant, v)
		if err != nil {
			sel.Skipped = append(sel.Skipped, result.SkippedModel{
				Variant: variant.Tag,
				Reason:  err.Error(),
			})
			continue
		}
		sel.Fits = append(sel.Fits, fit)
	}

	if len(sel.Fits) == 0 {
		return nil, errors.New(errors.CodeFitFailure, "no lag model variant converged")
	}

	best := sel.Fits[0]
	for _, fit := range sel.Fits[1:] {
		if fit.AIC < best.AIC || (fit.AIC == best.AIC && len(fit.Params) < len(best.Params)) {
			best = fit
		}
	}
	sel.Best = best.Variant

	return sel, nil
}

func (f *Fitter) fitVariant(variant Variant, v view) (result.LagModelFit, error) {
	k := variant.ParamCount()
	n := len(v.Energy)
	dof := n - k
	if dof < 1 {
		return result.LagModelFit{}, errors.Newf(errors.CodeFitFailure,
			"%s: %d points leave no degrees of freedom for %d parameters", variant.Tag, n, k)
	}

	var params []float64
	var err error
	if variant.Basis != nil {
		params, err = solveLinear(variant, v)
	} else {
		params, err = solveNonlinear(variant, v)
	}
	if err != nil {
		return result.LagModelFit{}, err
	}
	for _, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return result.LagModelFit{}, errors.Newf(errors.CodeFitFailure, "%s: non-finite parameter estimate", variant.Tag)
		}
	}

	pred := variant.Predict(v, params)
	return f.score(variant, v, params, pred)
}

// score computes the fit-quality metrics. Residuals are taken with unit
// weights, so chi-square is the residual sum of squares and AIC = 2k + chi2
// orders variants by both misfit and complexity.
func (f *Fitter) score(variant Variant, v view, params, pred []float64) (result.LagModelFit, error) {
	n := len(v.Time)
	k := variant.ParamCount()

	var chi2, ssTot float64
	for i := range v.Time {
		resid := v.Time[i] - pred[i]
		if math.IsNaN(resid) || math.IsInf(resid, 0) {
			return result.LagModelFit{}, errors.Newf(errors.CodeFitFailure, "%s: non-finite prediction", variant.Tag)
		}
		chi2 += resid * resid
		dt := v.Time[i] - v.TMean
		ssTot += dt * dt
	}

	dof := n - k
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1 - chi2/ssTot
	}

	// Constant-family predictions have no variance; their predicted/observed
	// correlation is reported as zero rather than failing the variant.
	predObs := 0.0
	if r, err := correlate.Coefficient(result.EstimatorPearson, pred, v.Time); err == nil {
		predObs = r
	}

	return result.LagModelFit{
		Variant:            variant.Tag,
		Params:             params,
		ParamNames:         variant.ParamNames,
		ChiSquare:          chi2,
		DOF:                dof,
		ReducedChiSquare:   chi2 / float64(dof),
		AIC:                2*float64(k) + chi2,
		BIC:                float64(k)*math.Log(float64(n)) + chi2,
		RSquared:           rSquared,
		PredObsCorrelation: predObs,
	}, nil
}

// solveLinear fits a linear-in-parameters variant by QR least squares
func solveLinear(variant Variant, v view) ([]float64, error) {
	n := len(v.Energy)
	k := variant.ParamCount()

	a := mat.NewDense(n, k, nil)
	b := mat.NewDense(n, 1, nil)
	for i, e := range v.Energy {
		row := variant.Basis(e)
		for j, val := range row {
			a.Set(i, j, val)
		}
		b.Set(i, 0, v.Time[i])
	}

	var qr mat.QR
	qr.Factorize(a)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, b); err != nil {
		return nil, errors.Newf(errors.CodeFitFailure, "%s: singular design matrix: %v", variant.Tag, err)
	}

	params := make([]float64, k)
	for j := 0; j < k; j++ {
		params[j] = beta.At(j, 0)
	}
	return params, nil
}

// solveNonlinear minimizes the bound-penalized residual sum of squares with
// Nelder-Mead from the variant's initial guess
func solveNonlinear(variant Variant, v view) ([]float64, error) {
	lo, hi := variant.Bounds(v)
	x0 := variant.Guess(v)

	objective := func(p []float64) float64 {
		clamped, dist := clampToBounds(p, lo, hi)
		pred := variant.Predict(v, clamped)
		var ssr float64
		for i := range v.Time {
			resid := v.Time[i] - pred[i]
			ssr += resid * resid
		}
		if math.IsNaN(ssr) || math.IsInf(ssr, 0) {
			return math.MaxFloat64
		}
		return ssr + boundPenalty*dist
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		FuncEvaluations: 10000,
		MajorIterations: 3000,
	}

	res, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, errors.Newf(errors.CodeFitFailure, "%s: minimization failed: %v", variant.Tag, err)
	}
	if res == nil || math.IsNaN(res.F) || math.IsInf(res.F, 0) {
		return nil, errors.Newf(errors.CodeFitFailure, "%s: minimization diverged", variant.Tag)
	}

	params, _ := clampToBounds(res.X, lo, hi)
	return params, nil
}

// clampToBounds projects p into [lo, hi] and returns the squared distance moved
func clampToBounds(p, lo, hi []float64) ([]float64, float64) {
	out := make([]float64, len(p))
	dist := 0.0
	for i, v := range p {
		c := v
		if c < lo[i] {
			c = lo[i]
		}
		if c > hi[i] {
			c = hi[i]
		}
		d := v - c
		dist += d * d
		out[i] = c
	}
	return out, dist
}

func newView(energy, time []float64) view {
	v := view{
		Energy: energy,
		Time:   time,
		EMin:   energy[0],
		EMax:   energy[0],
		TMin:   time[0],
		TMax:   time[0],
	}
	var tSum float64
	for i := range energy {
		if energy[i] < v.EMin {
			v.EMin = energy[i]
		}
		if energy[i] > v.EMax {
			v.EMax = energy[i]
		}
		if time[i] < v.TMin {
			v.TMin = time[i]
		}
		if time[i] > v.TMax {
			v.TMax = time[i]
		}
		tSum += time[i]
	}
	v.TMean = tSum / float64(len(time))
	return v
}
