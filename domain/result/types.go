package result

import (
	"fmt"

	"lagscan/domain/core"
)

// ============================================================================
// STABLE PRIMITIVES (Canonical, never change)
// ============================================================================

// EstimatorName identifies a correlation estimator
type EstimatorName string

const (
	EstimatorPearson  EstimatorName = "pearson"
	EstimatorSpearman EstimatorName = "spearman"
	EstimatorKendall  EstimatorName = "kendall"
)

// CorrelationResult carries one estimator's view of the energy-time dependency.
// INVARIANTS:
// - Coefficient in [-1, 1]
// - PValue in [0, 1]
// - SampleSize >= 3
type CorrelationResult struct {
	Estimator   EstimatorName `json:"estimator"`
	Coefficient float64       `json:"coefficient"`
	PValue      float64       `json:"p_value"`
	Sigma       float64       `json:"sigma"`
	SampleSize  int           `json:"sample_size"`
}

// NewCorrelationResult creates a correlation result with invariant checks
func NewCorrelationResult(name EstimatorName, r, p, sigma float64, n int) (CorrelationResult, error) {
	if r < -1 || r > 1 {
		return CorrelationResult{}, fmt.Errorf("coefficient must be in [-1, 1], got %f", r)
	}
	if p < 0 || p > 1 {
		return CorrelationResult{}, fmt.Errorf("p-value must be in [0, 1], got %f", p)
	}
	if n < 3 {
		return CorrelationResult{}, fmt.Errorf("sample size must be >= 3, got %d", n)
	}
	return CorrelationResult{
		Estimator:   name,
		Coefficient: r,
		PValue:      p,
		Sigma:       sigma,
		SampleSize:  n,
	}, nil
}

// ============================================================================
// RESAMPLING
// ============================================================================

// ResamplingDistribution summarizes a bootstrap distribution of a statistic
type ResamplingDistribution struct {
	Statistic string    `json:"statistic"`
	Trials    int       `json:"trials"`
	Values    []float64 `json:"values,omitempty"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	CILower   float64   `json:"ci_lower"` // 2.5th percentile
	CIUpper   float64   `json:"ci_upper"` // 97.5th percentile
	P95       float64   `json:"p95"`
	P99       float64   `json:"p99"`
}

// Contains reports whether v falls inside the [2.5%, 97.5%] interval
func (d ResamplingDistribution) Contains(v float64) bool {
	return v >= d.CILower && v <= d.CIUpper
}

// PermutationTest holds the empirical null comparison for the observed correlation
type PermutationTest struct {
	ObservedR  float64 `json:"observed_r"`
	EmpiricalP float64 `json:"empirical_p"` // fraction of |r_perm| >= |r_observed|
	Trials     int     `json:"trials"`
	NullMean   float64 `json:"null_mean"`
	NullStdDev float64 `json:"null_std_dev"`
}

// ============================================================================
// ROBUST REGRESSION
// ============================================================================

// RegressionFit is the RANSAC consensus line time = Intercept + Slope*energy
type RegressionFit struct {
	Slope          float64 `json:"slope"`
	Intercept      float64 `json:"intercept"`
	InlierMask     []bool  `json:"inlier_mask,omitempty"`
	InlierCount    int     `json:"inlier_count"`
	InlierFraction float64 `json:"inlier_fraction"`
	ResidualThresh float64 `json:"residual_threshold"`
	Iterations     int     `json:"iterations"`
}

// ============================================================================
// LAG MODELS
// ============================================================================

// ModelVariant tags one hypothesized energy-to-time relationship
type ModelVariant string

const (
	ModelConstant       ModelVariant = "constant"
	ModelLinear         ModelVariant = "linear"
	ModelQuadratic      ModelVariant = "quadratic"
	ModelPowerLaw       ModelVariant = "power_law"
	ModelBrokenPowerLaw ModelVariant = "broken_power_law"
	ModelExponential    ModelVariant = "exponential"
	ModelLogarithmic    ModelVariant = "logarithmic"
	ModelTemporal       ModelVariant = "temporal_evolving"
	ModelMultiComponent ModelVariant = "multi_component"
)

// LagModelFit carries one variant's converged parameters and fit quality
type LagModelFit struct {
	Variant            ModelVariant `json:"variant"`
	Params             []float64    `json:"params"`
	ParamNames         []string     `json:"param_names"`
	ChiSquare          float64      `json:"chi_square"`
	DOF                int          `json:"dof"`
	ReducedChiSquare   float64      `json:"reduced_chi_square"`
	AIC                float64      `json:"aic"`
	BIC                float64      `json:"bic"`
	RSquared           float64      `json:"r_squared"`
	PredObsCorrelation float64      `json:"pred_obs_correlation"`
}

// SkippedModel records a variant excluded from comparison and why
type SkippedModel struct {
	Variant ModelVariant `json:"variant"`
	Reason  string       `json:"reason"`
}

// ModelSelection is the outcome of the competing-model comparison
type ModelSelection struct {
	Fits    []LagModelFit  `json:"fits"`
	Skipped []SkippedModel `json:"skipped,omitempty"`
	Best    ModelVariant   `json:"best"`
}

// BestFit returns the selected variant's fit
func (m ModelSelection) BestFit() (LagModelFit, bool) {
	for _, f := range m.Fits {
		if f.Variant == m.Best {
			return f, true
		}
	}
	return LagModelFit{}, false
}

// ============================================================================
// ENSEMBLE / NULL CALIBRATION / CLASSIFICATION
// ============================================================================

// MethodScore is one sub-method's contribution to the ensemble
type MethodScore struct {
	Method string  `json:"method"`
	Sigma  float64 `json:"sigma"`
	Weight float64 `json:"weight"`
}

// MethodFailure records a sub-method excluded from the ensemble and why
type MethodFailure struct {
	Method string `json:"method"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// EnsembleScore is the weighted combination of the sub-method significances.
// INVARIANT: with non-negative weights, Combined lies between the minimum and
// maximum of the constituent sigmas.
type EnsembleScore struct {
	Combined   float64         `json:"combined"`
	Dispersion float64         `json:"dispersion"` // std dev across sub-methods
	BestMethod string          `json:"best_method"`
	PerMethod  []MethodScore   `json:"per_method"`
	Excluded   []MethodFailure `json:"excluded,omitempty"`
}

// NullDistribution is the ensemble-score distribution under simulated independence
type NullDistribution struct {
	Strategy string    `json:"strategy"`
	Datasets int       `json:"datasets"`
	Scores   []float64 `json:"scores,omitempty"`
	Mean     float64   `json:"mean"`
	StdDev   float64   `json:"std_dev"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
}

// SignificanceBand is the conventional fixed-sigma classification, reported
// for transparency next to the dynamic verdict
type SignificanceBand string

const (
	BandNone        SignificanceBand = "none"        // < 2 sigma
	BandMarginal    SignificanceBand = "marginal"    // >= 2 sigma
	BandSignificant SignificanceBand = "significant" // >= 3 sigma
	BandStrong      SignificanceBand = "strong"      // >= 5 sigma
)

// Classification is the final dynamic-threshold verdict
type Classification struct {
	Detected          bool             `json:"detected"`
	Threshold         float64          `json:"threshold"`
	Percentile        float64          `json:"percentile"`
	Observed          float64          `json:"observed"`
	Margin            float64          `json:"margin"`
	Band              SignificanceBand `json:"band"`
	ExceedsTwoSigma   bool             `json:"exceeds_two_sigma"`
	ExceedsThreeSigma bool             `json:"exceeds_three_sigma"`
	ExceedsFiveSigma  bool             `json:"exceeds_five_sigma"`
}

// BandForSigma maps a significance to its conventional fixed band
func BandForSigma(sigma float64) SignificanceBand {
	switch {
	case sigma >= 5.0:
		return BandStrong
	case sigma >= 3.0:
		return BandSignificant
	case sigma >= 2.0:
		return BandMarginal
	default:
		return BandNone
	}
}

// ============================================================================
// RUN REPORT (the structured result record)
// ============================================================================

// EnergyScaleEstimate is the externally scaled energy bound derived from the
// robust slope. Reported only; never part of the detection decision.
type EnergyScaleEstimate struct {
	EQG         float64 `json:"e_qg"`
	PlanckRatio float64 `json:"planck_ratio"`
	Redshift    float64 `json:"redshift"`
}

// ComponentFailure annotates a sub-analysis that was excluded from the report
type ComponentFailure struct {
	Component string `json:"component"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// RunReport is the complete output record of one pipeline run, consumed by
// external report and plot generators
type RunReport struct {
	RunID      core.RunID `json:"run_id"`
	Seed       int64      `json:"seed"`
	SampleSize int        `json:"sample_size"`

	Correlations   []CorrelationResult     `json:"correlations,omitempty"`
	Permutation    *PermutationTest        `json:"permutation,omitempty"`
	Bootstrap      *ResamplingDistribution `json:"bootstrap,omitempty"`
	Regression     *RegressionFit          `json:"regression,omitempty"`
	Models         *ModelSelection         `json:"models,omitempty"`
	Ensemble       *EnsembleScore          `json:"ensemble,omitempty"`
	Null           *NullDistribution       `json:"null,omitempty"`
	Classification *Classification         `json:"classification,omitempty"`
	EnergyScale    *EnergyScaleEstimate    `json:"energy_scale,omitempty"`

	Failures  []ComponentFailure `json:"failures,omitempty"`
	RuntimeMs int64              `json:"runtime_ms"`
	CreatedAt core.Timestamp     `json:"created_at"`
}

// NewRunReport creates an empty report for a run
func NewRunReport(seed int64, sampleSize int) *RunReport {
	return &RunReport{
		RunID:      core.NewRunID(),
		Seed:       seed,
		SampleSize: sampleSize,
		CreatedAt:  core.Now(),
	}
}

// AddFailure annotates a failed component on the report
func (r *RunReport) AddFailure(component, code, message string) {
	r.Failures = append(r.Failures, ComponentFailure{
		Component: component,
		Code:      code,
		Message:   message,
	})
}

// Failed reports whether the named component was annotated as failed
func (r *RunReport) Failed(component string) bool {
	for _, f := range r.Failures {
		if f.Component == component {
			return true
		}
	}
	return false
}
