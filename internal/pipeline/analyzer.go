// Package pipeline wires the statistical components into the linear analysis
// sequence: Correlate, Resample, RobustFit, ModelFit, Ensemble, Calibrate,
// Classify. A run is a pure function of (sample, configuration, seed); no
// component keeps state across runs.
package pipeline

import (
	"context"
	"log"
	"math"
	"time"

	"lagscan/domain/photon"
	"lagscan/domain/result"
	"lagscan/internal/config"
	"lagscan/internal/correlate"
	"lagscan/internal/ensemble"
	"lagscan/internal/errors"
	"lagscan/internal/lagfit"
	"lagscan/internal/nullcal"
	"lagscan/internal/resample"
	"lagscan/internal/robustfit"
	"lagscan/ports"
)

// planckEnergyGeV scales the reported energy-bound ratio
const planckEnergyGeV = 1.22e19

// Analyzer runs the full detection-and-validation pipeline over one sample
type Analyzer struct {
	cfg config.Config
	rng ports.RNGPort

	distance ports.DistanceScale
	redshift float64
}

// Option configures optional collaborators on the analyzer
type Option func(*Analyzer)

// WithDistanceScale enables the energy-scale estimate through the external
// distance function for a source at the given redshift
func WithDistanceScale(ds ports.DistanceScale, redshift float64) Option {
	return func(a *Analyzer) {
		a.distance = ds
		a.redshift = redshift
	}
}

// NewAnalyzer validates the configuration and builds the pipeline
func NewAnalyzer(cfg config.Config, rng ports.RNGPort, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New(errors.CodeConfigInvalid, "nil RNG port")
	}

	a := &Analyzer{cfg: cfg, rng: rng}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run executes every stage against the sample and returns a best-effort
// report: failures local to one component are annotated and excluded, and
// "no significant signal" is a successful outcome. Only malformed input
// aborts the run.
func (a *Analyzer) Run(ctx context.Context, sample *photon.Sample) (*result.RunReport, error) {
	if sample == nil {
		return nil, errors.New(errors.CodeConfigInvalid, "nil photon sample")
	}

	start := time.Now()
	energies := sample.Energies()
	times := sample.Times()
	report := result.NewRunReport(a.cfg.RandomSeed, sample.Len())

	log.Printf("[Analyzer] run %s: %d photons, seed %d", report.RunID, sample.Len(), a.cfg.RandomSeed)

	a.runCorrelations(energies, times, report)
	a.runResampling(ctx, energies, times, report)
	a.runRobustFit(ctx, energies, times, report)
	a.runModelFit(ctx, energies, times, report)

	combiner := a.runEnsemble(ctx, energies, times, report)
	a.runEnergyScale(report)
	a.runCalibration(ctx, combiner, energies, times, report)

	report.RuntimeMs = time.Since(start).Milliseconds()
	log.Printf("[Analyzer] run %s finished in %dms (%d component failures)",
		report.RunID, report.RuntimeMs, len(report.Failures))
	return report, nil
}

func (a *Analyzer) runCorrelations(energies, times []float64, report *result.RunReport) {
	for _, estimator := range []result.EstimatorName{
		result.EstimatorPearson,
		result.EstimatorSpearman,
		result.EstimatorKendall,
	} {
		res, err := correlate.Analyze(estimator, energies, times)
		if err != nil {
			report.AddFailure("correlation/"+string(estimator), errors.GetCode(err), err.Error())
			continue
		}
		report.Correlations = append(report.Correlations, res)
	}
}

func (a *Analyzer) runResampling(ctx context.Context, energies, times []float64, report *result.RunReport) {
	engine := resample.NewEngine(a.rng, a.cfg.Workers)

	perm, err := engine.PermutationTest(ctx, energies, times, a.cfg.PermutationTrials, a.cfg.RandomSeed)
	if err != nil {
		report.AddFailure("permutation", errors.GetCode(err), err.Error())
	} else {
		report.Permutation = perm
	}

	boot, err := engine.Bootstrap(ctx, energies, times, a.cfg.BootstrapTrials, a.cfg.RandomSeed)
	if err != nil {
		report.AddFailure("bootstrap", errors.GetCode(err), err.Error())
	} else {
		report.Bootstrap = boot
	}
}

func (a *Analyzer) runRobustFit(ctx context.Context, energies, times []float64, report *result.RunReport) {
	rng, err := a.rng.SeededStream(ctx, "ransac", a.cfg.RandomSeed)
	if err != nil {
		report.AddFailure("ransac", errors.GetCode(err), err.Error())
		return
	}

	fit, err := robustfit.Fit(energies, times, a.ransacOptions(), rng)
	if err != nil {
		report.AddFailure("ransac", errors.GetCode(err), err.Error())
		return
	}
	report.Regression = fit
}

func (a *Analyzer) runModelFit(ctx context.Context, energies, times []float64, report *result.RunReport) {
	sel, err := lagfit.NewFitter().FitAll(ctx, energies, times)
	if err != nil {
		report.AddFailure("lag_models", errors.GetCode(err), err.Error())
		return
	}
	report.Models = sel
}

func (a *Analyzer) runEnsemble(ctx context.Context, energies, times []float64, report *result.RunReport) *ensemble.Combiner {
	combiner, err := ensemble.NewCombiner(a.cfg.EnsembleMethodWeights, a.cfg.EnergyBins, a.ransacOptions())
	if err != nil {
		report.AddFailure("ensemble", errors.GetCode(err), err.Error())
		return nil
	}

	rng, err := a.rng.SeededStream(ctx, "ensemble", a.cfg.RandomSeed)
	if err != nil {
		report.AddFailure("ensemble", errors.GetCode(err), err.Error())
		return combiner
	}

	score, err := combiner.Score(ctx, energies, times, rng)
	if err != nil {
		report.AddFailure("ensemble", errors.GetCode(err), err.Error())
		return combiner
	}
	report.Ensemble = score
	return combiner
}

// runEnergyScale converts the robust slope into the externally scaled energy
// bound. Reported for downstream consumers only; the verdict never uses it.
func (a *Analyzer) runEnergyScale(report *result.RunReport) {
	if a.distance == nil || report.Regression == nil {
		return
	}
	slope := math.Abs(report.Regression.Slope)
	if slope < 1e-10 {
		report.AddFailure("energy_scale", errors.CodeDegenerateInput, "slope too small for a finite energy bound")
		return
	}

	eqg := a.distance.Factor(a.redshift) / slope
	report.EnergyScale = &result.EnergyScaleEstimate{
		EQG:         eqg,
		PlanckRatio: eqg / planckEnergyGeV,
		Redshift:    a.redshift,
	}
}

func (a *Analyzer) runCalibration(ctx context.Context, combiner *ensemble.Combiner, energies, times []float64, report *result.RunReport) {
	if combiner == nil || report.Ensemble == nil {
		report.AddFailure("null_calibration", errors.CodeInsufficientData, "no ensemble score to calibrate against")
		return
	}

	calibrator, err := nullcal.NewCalibrator(combiner, a.rng, a.cfg.NullGeneration, a.cfg.NullCalibrationDatasets, a.cfg.Workers)
	if err != nil {
		report.AddFailure("null_calibration", errors.GetCode(err), err.Error())
		return
	}

	null, err := calibrator.Calibrate(ctx, energies, times, a.cfg.RandomSeed)
	if err != nil {
		report.AddFailure("null_calibration", errors.GetCode(err), err.Error())
		return
	}
	report.Null = null

	verdict, err := nullcal.Classify(null, report.Ensemble.Combined, a.cfg.DynamicThresholdPercentile)
	if err != nil {
		report.AddFailure("classification", errors.GetCode(err), err.Error())
		return
	}
	report.Classification = verdict

	log.Printf("[Analyzer] score %.3f vs threshold %.3f (p%.0f of %d null datasets): detected=%v",
		verdict.Observed, verdict.Threshold, verdict.Percentile, null.Datasets, verdict.Detected)
}

func (a *Analyzer) ransacOptions() robustfit.Options {
	return robustfit.Options{
		ResidualThreshold: a.cfg.RANSACResidualThreshold,
		MinInlierFraction: a.cfg.RANSACMinInlierFraction,
		MaxIterations:     a.cfg.RANSACMaxIterations,
	}
}
