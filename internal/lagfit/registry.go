// Package lagfit fits the family of competing energy-to-time lag models and
// selects the best variant by information criterion.
package lagfit

import (
	"math"

	"lagscan/domain/result"
)

// view is the read-only data each variant fits against. Time is part of the
// view because the temporally-evolving variant predicts against the fixed
// observed arrival times.
type view struct {
	Energy []float64
	Time   []float64
	EMin   float64
	EMax   float64
	TMin   float64
	TMax   float64
	TMean  float64
}

// breakMargin keeps the free break energy strictly inside the observed range
const breakMargin = 0.01

// Variant is the declarative metadata for one lag model: parameter names,
// bounds, initial guess and prediction. Linear-in-parameter variants carry a
// Basis and are solved in closed form; the rest go through the nonlinear
// minimizer. New variants only need a registry entry, never orchestration
// changes.
type Variant struct {
	Tag        result.ModelVariant
	ParamNames []string

	// Basis returns the design-matrix row for one energy; nil for nonlinear variants.
	Basis func(e float64) []float64

	Guess   func(v view) []float64
	Bounds  func(v view) (lo, hi []float64)
	Predict func(v view, params []float64) []float64
}

// ParamCount returns k for the information-criterion penalty
func (va Variant) ParamCount() int {
	return len(va.ParamNames)
}

// Registry returns every competing variant in fit order
func Registry() []Variant {
	return []Variant{
		{
			Tag:        result.ModelConstant,
			ParamNames: []string{"t0"},
			Basis:      func(e float64) []float64 { return []float64{1} },
			Predict: func(v view, p []float64) []float64 {
				return mapEnergy(v, func(e float64) float64 { return p[0] })
			},
		},
		{
			Tag:        result.ModelLinear,
			ParamNames: []string{"t0", "alpha"},
			Basis:      func(e float64) []float64 { return []float64{1, e} },
			Predict: func(v view, p []float64) []float64 {
				return mapEnergy(v, func(e float64) float64 { return p[0] + p[1]*e })
			},
		},
		{
			Tag:        result.ModelQuadratic,
			ParamNames: []string{"t0", "alpha", "beta"},
			Basis:      func(e float64) []float64 { return []float64{1, e, e * e} },
			Predict: func(v view, p []float64) []float64 {
				return mapEnergy(v, func(e float64) float64 { return p[0] + p[1]*e + p[2]*e*e })
			},
		},
		{
			Tag:        result.ModelLogarithmic,
			ParamNames: []string{"t0", "gamma"},
			Basis:      func(e float64) []float64 { return []float64{1, math.Log(e)} },
			Predict: func(v view, p []float64) []float64 {
				return mapEnergy(v, func(e float64) float64 { return p[0] + p[1]*math.Log(e) })
			},
		},
		{
			Tag:        result.ModelPowerLaw,
			ParamNames: []string{"t0", "alpha", "beta"},
			Guess: func(v view) []float64 {
				return []float64{v.TMean, 0.1, -0.3}
			},
			Bounds: func(v view) (lo, hi []float64) {
				tPad := v.TMax - v.TMin + 1
				return []float64{v.TMin - tPad, -100, -2}, []float64{v.TMax + tPad, 100, 2}
			},
			Predict: func(v view, p []float64) []float64 {
				return mapEnergy(v, func(e float64) float64 {
					return p[0] + p[1]*math.Pow(e, p[2])
				})
			},
		},
		{
			Tag:        result.ModelBrokenPowerLaw,
			ParamNames: []string{"t0", "alpha1", "alpha2", "e_break", "beta"},
			Guess: func(v view) []float64 {
				return []float64{v.TMean, 0.05, 0.02, 0.5 * (v.EMin + v.EMax), -0.3}
			},
			Bounds: func(v view) (lo, hi []float64) {
				tPad := v.TMax - v.TMin + 1
				span := v.EMax - v.EMin
				return []float64{v.TMin - tPad, -100, -100, v.EMin + breakMargin*span, -2},
					[]float64{v.TMax + tPad, 100, 100, v.EMax - breakMargin*span, 2}
			},
			Predict: func(v view, p []float64) []float64 {
				t0, a1, a2, eBreak, beta := p[0], p[1], p[2], p[3], p[4]
				return mapEnergy(v, func(e float64) float64 {
					if e < eBreak {
						return t0 + a1*math.Pow(e, beta)
					}
					return t0 + a2*math.Pow(e, -0.4)
				})
			},
		},
		{
			Tag:        result.ModelExponential,
			ParamNames: []string{"t0", "alpha", "scale"},
			Guess: func(v view) []float64 {
				scale := (v.EMax - v.EMin) / 3
				if scale <= 0 {
					scale = 1
				}
				return []float64{v.TMean, 0.1, scale}
			},
			Bounds: func(v view) (lo, hi []float64) {
				tPad := v.TMax - v.TMin + 1
				return []float64{v.TMin - tPad, -100, 1e-3}, []float64{v.TMax + tPad, 100, 10 * v.EMax}
			},
			Predict: func(v view, p []float64) []float64 {
				return mapEnergy(v, func(e float64) float64 {
					return p[0] + p[1]*math.Exp(-e/p[2])
				})
			},
		},
		{
			Tag:        result.ModelTemporal,
			ParamNames: []string{"t0", "alpha", "beta", "gamma"},
			Guess: func(v view) []float64 {
				return []float64{v.TMean, -1.0, -0.5, 0.01}
			},
			Bounds: func(v view) (lo, hi []float64) {
				return []float64{v.TMin, -100, -2, -0.1}, []float64{v.TMax, 100, 2, 0.1}
			},
			Predict: func(v view, p []float64) []float64 {
				t0, alpha, beta, gamma := p[0], p[1], p[2], p[3]
				out := make([]float64, len(v.Energy))
				for i, e := range v.Energy {
					out[i] = t0 + alpha*math.Pow(e, beta)*(1+gamma*v.Time[i])
				}
				return out
			},
		},
		{
			Tag:        result.ModelMultiComponent,
			ParamNames: []string{"t0", "alpha1", "beta1", "alpha2", "beta2", "e_break"},
			Guess: func(v view) []float64 {
				return []float64{v.TMean, 0.05, -0.3, 0.02, -0.4, 0.5 * (v.EMin + v.EMax)}
			},
			Bounds: func(v view) (lo, hi []float64) {
				tPad := v.TMax - v.TMin + 1
				span := v.EMax - v.EMin
				return []float64{v.TMin - tPad, -100, -2, -100, -2, v.EMin + breakMargin*span},
					[]float64{v.TMax + tPad, 100, 2, 100, 2, v.EMax - breakMargin*span}
			},
			Predict: func(v view, p []float64) []float64 {
				t0, a1, b1, a2, b2, eBreak := p[0], p[1], p[2], p[3], p[4], p[5]
				base := a1 * math.Pow(eBreak, b1)
				return mapEnergy(v, func(e float64) float64 {
					if e < eBreak {
						return t0 + a1*math.Pow(e, b1)
					}
					return t0 + base + a2*math.Pow(e, b2)
				})
			},
		},
	}
}

func mapEnergy(v view, f func(e float64) float64) []float64 {
	out := make([]float64, len(v.Energy))
	for i, e := range v.Energy {
		out[i] = f(e)
	}
	return out
}
