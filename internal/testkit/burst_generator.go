// Package testkit generates synthetic photon bursts with known ground truth,
// used by the test suites and the demo binary.
package testkit

import (
	"math"
	"math/rand"

	"lagscan/domain/photon"
)

// BurstConfig configures the synthetic burst generator
type BurstConfig struct {
	PhotonCount int     `json:"photon_count"`
	Seed        int64   `json:"seed"`
	EnergyMin   float64 `json:"energy_min"` // keV, lower clip of the lognormal draw
	EnergyMax   float64 `json:"energy_max"` // keV, upper clip
	BurstScale  float64 `json:"burst_scale"` // mean of the exponential arrival profile, seconds

	// LagSlope injects a linear energy-dependent delay: t += slope * E.
	// Zero means energy and time are independent.
	LagSlope float64 `json:"lag_slope"`

	// LagExponent switches the injected delay to a power law t += slope * E^exp
	// when nonzero
	LagExponent float64 `json:"lag_exponent"`

	TimeNoise       float64 `json:"time_noise"`       // Gaussian jitter on arrival times, seconds
	OutlierFraction float64 `json:"outlier_fraction"` // fraction of photons with scattered times
	OutlierSpread   float64 `json:"outlier_spread"`   // scatter amplitude for outliers, seconds
}

// DefaultBurstConfig returns a moderately bright burst with no injected lag
func DefaultBurstConfig() BurstConfig {
	return BurstConfig{
		PhotonCount:   2000,
		Seed:          42,
		EnergyMin:     0.1,
		EnergyMax:     80.0,
		BurstScale:    20.0,
		TimeNoise:     0.0,
		OutlierSpread: 100.0,
	}
}

// GenerateBurst draws a synthetic photon sample. Energies follow a clipped
// lognormal spectrum and arrival times an exponential burst profile, with the
// configured lag, noise, and outlier contamination applied on top.
func GenerateBurst(cfg BurstConfig) (*photon.Sample, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	times := make([]float64, cfg.PhotonCount)
	energies := make([]float64, cfg.PhotonCount)
	for i := range energies {
		e := math.Exp(rng.NormFloat64()*1.2 + 0.5)
		if e < cfg.EnergyMin {
			e = cfg.EnergyMin
		}
		if e > cfg.EnergyMax {
			e = cfg.EnergyMax
		}
		energies[i] = e

		t := rng.ExpFloat64() * cfg.BurstScale
		if cfg.LagSlope != 0 {
			if cfg.LagExponent != 0 {
				t += cfg.LagSlope * math.Pow(e, cfg.LagExponent)
			} else {
				t += cfg.LagSlope * e
			}
		}
		if cfg.TimeNoise > 0 {
			t += rng.NormFloat64() * cfg.TimeNoise
		}
		times[i] = t
	}

	if cfg.OutlierFraction > 0 {
		outliers := int(float64(cfg.PhotonCount) * cfg.OutlierFraction)
		for i := 0; i < outliers; i++ {
			idx := rng.Intn(cfg.PhotonCount)
			times[idx] = (rng.Float64()*2 - 1) * cfg.OutlierSpread
		}
	}

	return photon.NewSample(times, energies)
}

// LinearSample builds a noiseless y = intercept + slope*x sample over evenly
// spaced positive x values
func LinearSample(n int, slope, intercept float64) (x, y []float64) {
	x = make([]float64, n)
	y = make([]float64, n)
	for i := range x {
		x[i] = 1.0 + float64(i)*0.5
		y[i] = intercept + slope*x[i]
	}
	return x, y
}

// IndependentSample draws two unrelated standard-normal series
func IndependentSample(n int, seed int64) (x, y []float64) {
	rng := rand.New(rand.NewSource(seed))
	x = make([]float64, n)
	y = make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
		y[i] = rng.NormFloat64()
	}
	return x, y
}

// ContaminatedLinear builds a linear sample and scatters the given fraction of
// points far off the line, for exercising robust fits
func ContaminatedLinear(n int, slope, intercept, fraction, spread float64, seed int64) (x, y []float64) {
	rng := rand.New(rand.NewSource(seed))
	x, y = LinearSample(n, slope, intercept)
	outliers := int(float64(n) * fraction)
	for i := 0; i < outliers; i++ {
		idx := rng.Intn(n)
		y[idx] += (rng.Float64()*2 - 1) * spread
	}
	return x, y
}
