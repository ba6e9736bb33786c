package robustfit

import (
	"math"
	"math/rand"
	"testing"

	"lagscan/internal/errors"
	"lagscan/internal/testkit"
)

// TestFit_RecoversLineUnderContamination verifies the consensus line matches
// the generating line when 10% of points are scattered far off it
func TestFit_RecoversLineUnderContamination(t *testing.T) {
	const trueSlope, trueIntercept = 1.5, 3.0
	x, y := testkit.ContaminatedLinear(500, trueSlope, trueIntercept, 0.10, 5000.0, 17)

	fit, err := Fit(x, y, DefaultOptions(), rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(fit.Slope-trueSlope) > 0.05 {
		t.Errorf("slope: expected ~%f, got %f", trueSlope, fit.Slope)
	}
	if math.Abs(fit.Intercept-trueIntercept) > 1.0 {
		t.Errorf("intercept: expected ~%f, got %f", trueIntercept, fit.Intercept)
	}
	if fit.InlierFraction < 0.85 {
		t.Errorf("expected at least 85%% inliers on 10%% contamination, got %f", fit.InlierFraction)
	}
}

// TestFit_CleanLine verifies a noiseless line is recovered exactly with every
// point in the consensus
func TestFit_CleanLine(t *testing.T) {
	x, y := testkit.LinearSample(100, -0.7, 12.0)

	fit, err := Fit(x, y, DefaultOptions(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(fit.Slope+0.7) > 1e-9 || math.Abs(fit.Intercept-12.0) > 1e-6 {
		t.Errorf("expected slope -0.7 intercept 12, got %f / %f", fit.Slope, fit.Intercept)
	}
	if fit.InlierCount != 100 {
		t.Errorf("every point lies on the line, got %d/100 inliers", fit.InlierCount)
	}
}

// TestFit_NotEnoughInliers verifies the failure code when no line reaches the
// required consensus fraction
func TestFit_NotEnoughInliers(t *testing.T) {
	// Pure scatter with a tiny threshold: no 2-point line collects half the sample
	rng := rand.New(rand.NewSource(5))
	n := 200
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64() * 100
		y[i] = rng.Float64() * 1000
	}

	opts := Options{ResidualThreshold: 0.001, MinInlierFraction: 0.5, MaxIterations: 100}
	_, err := Fit(x, y, opts, rand.New(rand.NewSource(9)))
	if !errors.HasCode(err, errors.CodeNotEnoughInliers) {
		t.Errorf("expected NOT_ENOUGH_INLIERS, got %v", err)
	}
}

// TestFit_InputValidation covers the argument error paths
func TestFit_InputValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name string
		x, y []float64
		opts Options
		code string
	}{
		{"too short", []float64{1, 2}, []float64{1, 2}, DefaultOptions(), errors.CodeInsufficientData},
		{"mismatch", []float64{1, 2, 3}, []float64{1, 2}, DefaultOptions(), errors.CodeInsufficientData},
		{"zero iterations", []float64{1, 2, 3}, []float64{1, 2, 3}, Options{MinInlierFraction: 0.5}, errors.CodeConfigInvalid},
		{"bad fraction", []float64{1, 2, 3}, []float64{1, 2, 3}, Options{MinInlierFraction: 1.5, MaxIterations: 10}, errors.CodeConfigInvalid},
		{"constant response", []float64{1, 2, 3, 4}, []float64{5, 5, 5, 5}, DefaultOptions(), errors.CodeDegenerateInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.x, tt.y, tt.opts, rng)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

// TestMedianAbsoluteDeviation checks the scaled MAD on a known spread
func TestMedianAbsoluteDeviation(t *testing.T) {
	mad := medianAbsoluteDeviation([]float64{1, 2, 3, 4, 5, 6, 7})
	// median 4, absolute deviations {3,2,1,0,1,2,3}, median 2, scaled by 1.4826
	if math.Abs(mad-2*1.4826) > 1e-9 {
		t.Errorf("expected %f, got %f", 2*1.4826, mad)
	}

	// Even length: the two middle values are averaged
	mad = medianAbsoluteDeviation([]float64{1, 2, 3, 4})
	if math.Abs(mad-1.4826) > 1e-9 {
		t.Errorf("expected %f, got %f", 1.4826, mad)
	}
}
