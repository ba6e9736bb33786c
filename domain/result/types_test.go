package result

import (
	"testing"
)

// TestNewCorrelationResult_Invariants rejects out-of-range statistics
func TestNewCorrelationResult_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		r, p    float64
		n       int
		wantErr bool
	}{
		{"valid", 0.5, 0.01, 100, false},
		{"boundary r", 1.0, 0.0, 3, false},
		{"r above one", 1.1, 0.5, 100, true},
		{"negative p", 0.5, -0.1, 100, true},
		{"p above one", 0.5, 1.5, 100, true},
		{"tiny sample", 0.5, 0.5, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCorrelationResult(EstimatorPearson, tt.r, tt.p, 1.0, tt.n)
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestBandForSigma checks the fixed band boundaries
func TestBandForSigma(t *testing.T) {
	tests := []struct {
		sigma float64
		want  SignificanceBand
	}{
		{0, BandNone},
		{1.99, BandNone},
		{2.0, BandMarginal},
		{2.99, BandMarginal},
		{3.0, BandSignificant},
		{4.99, BandSignificant},
		{5.0, BandStrong},
		{50, BandStrong},
	}
	for _, tt := range tests {
		if got := BandForSigma(tt.sigma); got != tt.want {
			t.Errorf("BandForSigma(%g) = %s, want %s", tt.sigma, got, tt.want)
		}
	}
}

// TestModelSelection_BestFit verifies lookup of the selected variant
func TestModelSelection_BestFit(t *testing.T) {
	sel := ModelSelection{
		Fits: []LagModelFit{
			{Variant: ModelConstant, AIC: 10},
			{Variant: ModelLinear, AIC: 4},
		},
		Best: ModelLinear,
	}

	fit, ok := sel.BestFit()
	if !ok || fit.Variant != ModelLinear {
		t.Errorf("expected the linear fit, got %+v (ok=%v)", fit, ok)
	}

	sel.Best = ModelPowerLaw
	if _, ok := sel.BestFit(); ok {
		t.Error("absent variant should not be found")
	}
}

// TestResamplingDistribution_Contains checks the interval test
func TestResamplingDistribution_Contains(t *testing.T) {
	d := ResamplingDistribution{CILower: -0.1, CIUpper: 0.4}
	if !d.Contains(0.0) || !d.Contains(-0.1) || !d.Contains(0.4) {
		t.Error("interval should be inclusive of its endpoints")
	}
	if d.Contains(0.5) || d.Contains(-0.2) {
		t.Error("values outside the interval should be rejected")
	}
}

// TestRunReport_Failures verifies failure annotation bookkeeping
func TestRunReport_Failures(t *testing.T) {
	report := NewRunReport(42, 100)
	if report.RunID == "" {
		t.Error("report should carry a run identifier")
	}
	if report.Seed != 42 || report.SampleSize != 100 {
		t.Errorf("provenance misrecorded: %+v", report)
	}

	report.AddFailure("bootstrap", "INSUFFICIENT_DATA", "too few points")
	if !report.Failed("bootstrap") {
		t.Error("annotated component should report as failed")
	}
	if report.Failed("permutation") {
		t.Error("non-annotated component should not report as failed")
	}
}
