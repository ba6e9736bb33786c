package pipeline

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"lagscan/adapters/rng"
	"lagscan/domain/photon"
	"lagscan/domain/result"
	"lagscan/internal/config"
	"lagscan/internal/ensemble"
	"lagscan/internal/errors"
	"lagscan/ports"
)

// testConfig shrinks the trial counts so full-pipeline tests stay fast
func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.BootstrapTrials = 200
	cfg.PermutationTrials = 300
	cfg.NullCalibrationDatasets = 40
	cfg.Workers = 4
	return cfg
}

// linearLagSample builds lognormal energies with exactly linear arrival times
func linearLagSample(t *testing.T, n int, slope, intercept float64, seed int64) *photon.Sample {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	energies := make([]float64, n)
	times := make([]float64, n)
	for i := range energies {
		e := math.Exp(r.NormFloat64()*1.2 + 0.5)
		if e < 0.1 {
			e = 0.1
		}
		if e > 80 {
			e = 80
		}
		energies[i] = e
		times[i] = intercept + slope*e
	}
	sample, err := photon.NewSample(times, energies)
	if err != nil {
		t.Fatal(err)
	}
	return sample
}

// independentSample builds lognormal energies against unrelated arrival times
func independentSample(t *testing.T, n int, seed int64) *photon.Sample {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	energies := make([]float64, n)
	times := make([]float64, n)
	for i := range energies {
		e := math.Exp(r.NormFloat64()*1.2 + 0.5)
		if e < 0.1 {
			e = 0.1
		}
		if e > 80 {
			e = 80
		}
		energies[i] = e
		times[i] = r.ExpFloat64() * 20
	}
	sample, err := photon.NewSample(times, energies)
	if err != nil {
		t.Fatal(err)
	}
	return sample
}

// TestRun_StrongSignal drives a clean injected lag through the whole pipeline
// and checks every stage reports it
func TestRun_StrongSignal(t *testing.T) {
	sample := linearLagSample(t, 1000, 2.0, 10.0, 1)

	analyzer, err := NewAnalyzer(testConfig(), rng.New())
	if err != nil {
		t.Fatal(err)
	}
	report, err := analyzer.Run(context.Background(), sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.RunID == "" {
		t.Error("report should carry a run identifier")
	}

	var pearson *result.CorrelationResult
	for i := range report.Correlations {
		if report.Correlations[i].Estimator == result.EstimatorPearson {
			pearson = &report.Correlations[i]
		}
	}
	if pearson == nil {
		t.Fatal("pearson correlation missing from report")
	}
	if pearson.Coefficient < 0.99 {
		t.Errorf("exact linear lag should saturate pearson, got %f", pearson.Coefficient)
	}
	if pearson.Sigma < 50 {
		t.Errorf("expected an overwhelming significance, got %f sigma", pearson.Sigma)
	}

	if report.Permutation == nil || report.Permutation.EmpiricalP != 0 {
		t.Errorf("no permutation should match the injected lag: %+v", report.Permutation)
	}
	if report.Regression == nil || math.Abs(report.Regression.Slope-2.0) > 0.05 {
		t.Errorf("robust slope should recover 2.0: %+v", report.Regression)
	}
	if report.Models == nil || report.Models.Best != result.ModelLinear {
		t.Errorf("model comparison should select linear, got %+v", report.Models)
	}
	if report.Classification == nil || !report.Classification.Detected {
		t.Errorf("verdict should be a detection: %+v", report.Classification)
	}
}

// TestRun_NullSample verifies independent data does not produce a detection
func TestRun_NullSample(t *testing.T) {
	sample := independentSample(t, 1000, 2)

	cfg := testConfig()
	cfg.DynamicThresholdPercentile = 99
	cfg.NullCalibrationDatasets = 100

	analyzer, err := NewAnalyzer(cfg, rng.New())
	if err != nil {
		t.Fatal(err)
	}
	report, err := analyzer.Run(context.Background(), sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, c := range report.Correlations {
		if c.Estimator == result.EstimatorPearson && math.Abs(c.Coefficient) > 0.1 {
			t.Errorf("independent data should be near zero correlation, got %f", c.Coefficient)
		}
	}
	if report.Classification == nil {
		t.Fatal("null runs still produce a verdict")
	}
	if report.Classification.Detected {
		t.Errorf("independent data should not be a detection: observed %f threshold %f",
			report.Classification.Observed, report.Classification.Threshold)
	}
}

// TestRun_ContaminatedSample verifies the robust channel outperforms the
// direct correlation when a tenth of the arrival times are scattered
func TestRun_ContaminatedSample(t *testing.T) {
	sample := linearLagSample(t, 1000, 2.0, 10.0, 3)
	times := sample.Times()
	energies := sample.Energies()
	r := rand.New(rand.NewSource(99))
	for i := 0; i < 100; i++ {
		times[r.Intn(len(times))] = (r.Float64()*2 - 1) * 5000
	}
	contaminated, err := photon.NewSample(times, energies)
	if err != nil {
		t.Fatal(err)
	}

	analyzer, err := NewAnalyzer(testConfig(), rng.New())
	if err != nil {
		t.Fatal(err)
	}
	report, err := analyzer.Run(context.Background(), contaminated)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Ensemble == nil {
		t.Fatal("ensemble score missing")
	}

	var direct, robust float64
	for _, m := range report.Ensemble.PerMethod {
		switch m.Method {
		case ensemble.MethodDirect:
			direct = m.Sigma
		case ensemble.MethodRANSACInlier:
			robust = m.Sigma
		}
	}
	if robust <= direct {
		t.Errorf("inlier-restricted sigma (%f) should beat the diluted direct sigma (%f)",
			robust, direct)
	}
}

// TestRun_EnergyScaleEstimate verifies the optional distance-scaled bound
func TestRun_EnergyScaleEstimate(t *testing.T) {
	sample := linearLagSample(t, 800, 2.0, 10.0, 4)

	const factor = 3.2e17
	scale := ports.DistanceScaleFunc(func(z float64) float64 { return factor })

	analyzer, err := NewAnalyzer(testConfig(), rng.New(), WithDistanceScale(scale, 1.5))
	if err != nil {
		t.Fatal(err)
	}
	report, err := analyzer.Run(context.Background(), sample)
	if err != nil {
		t.Fatal(err)
	}

	if report.EnergyScale == nil {
		t.Fatal("energy scale estimate missing")
	}
	wantEQG := factor / math.Abs(report.Regression.Slope)
	if math.Abs(report.EnergyScale.EQG-wantEQG) > 1e-6*wantEQG {
		t.Errorf("E_QG: expected %g, got %g", wantEQG, report.EnergyScale.EQG)
	}
	if report.EnergyScale.Redshift != 1.5 {
		t.Errorf("redshift should be echoed, got %f", report.EnergyScale.Redshift)
	}
}

// TestRun_TinySampleDegradesGracefully verifies a sample too small for any
// statistic yields an annotated report, not a hard failure
func TestRun_TinySampleDegradesGracefully(t *testing.T) {
	sample, err := photon.NewSample([]float64{1, 2}, []float64{3, 4})
	if err != nil {
		t.Fatal(err)
	}

	analyzer, err := NewAnalyzer(testConfig(), rng.New())
	if err != nil {
		t.Fatal(err)
	}
	report, err := analyzer.Run(context.Background(), sample)
	if err != nil {
		t.Fatalf("small samples should degrade, not abort: %v", err)
	}

	if len(report.Failures) == 0 {
		t.Error("expected component failures annotated")
	}
	if report.Classification != nil {
		t.Error("no verdict should be possible on two photons")
	}
}

// TestNewAnalyzer_Validation verifies configuration problems abort construction
func TestNewAnalyzer_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.DynamicThresholdPercentile = 150
	if _, err := NewAnalyzer(cfg, rng.New()); !errors.HasCode(err, errors.CodeConfigInvalid) {
		t.Errorf("bad percentile: expected CONFIG_INVALID, got %v", err)
	}
	if _, err := NewAnalyzer(testConfig(), nil); !errors.HasCode(err, errors.CodeConfigInvalid) {
		t.Errorf("nil rng: expected CONFIG_INVALID, got %v", err)
	}

	analyzer, err := NewAnalyzer(testConfig(), rng.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := analyzer.Run(context.Background(), nil); err == nil {
		t.Error("nil sample must abort")
	}
}
