package config

import (
	"os"
	"strconv"
	"strings"

	"lagscan/internal/errors"
)

// NullStrategy selects how synthetic no-effect datasets are generated during
// threshold calibration. The choice materially changes the calibrated
// threshold, so it is an explicit configuration decision.
type NullStrategy string

const (
	// NullPermute shuffles the energy array against the time array, preserving
	// both marginals exactly.
	NullPermute NullStrategy = "permute"
	// NullRedraw resamples both marginals independently with replacement.
	NullRedraw NullStrategy = "redraw"
)

// Config holds every tunable of the detection pipeline. A run is a pure
// function of (sample, Config, seed); nothing here is global state.
type Config struct {
	BootstrapTrials         int
	PermutationTrials       int
	NullCalibrationDatasets int

	RANSACResidualThreshold float64 // <= 0 selects an automatic MAD-based threshold
	RANSACMinInlierFraction float64
	RANSACMaxIterations     int

	EnsembleMethodWeights      map[string]float64 // empty means equal weights
	EnergyBins                 int
	DynamicThresholdPercentile float64
	NullGeneration             NullStrategy

	RandomSeed int64
	Workers    int // 0 selects runtime.NumCPU at the call site
}

// Defaults returns the baseline configuration
func Defaults() Config {
	return Config{
		BootstrapTrials:            1000,
		PermutationTrials:          10000,
		NullCalibrationDatasets:    200,
		RANSACResidualThreshold:    0, // auto
		RANSACMinInlierFraction:    0.5,
		RANSACMaxIterations:        200,
		EnsembleMethodWeights:      nil,
		EnergyBins:                 5,
		DynamicThresholdPercentile: 90,
		NullGeneration:             NullPermute,
		RandomSeed:                 42,
		Workers:                    0,
	}
}

// Load reads configuration from environment variables on top of defaults
func Load() (Config, error) {
	cfg := Defaults()

	var err error
	if cfg.BootstrapTrials, err = envInt("LAGSCAN_BOOTSTRAP_TRIALS", cfg.BootstrapTrials); err != nil {
		return cfg, err
	}
	if cfg.PermutationTrials, err = envInt("LAGSCAN_PERMUTATION_TRIALS", cfg.PermutationTrials); err != nil {
		return cfg, err
	}
	if cfg.NullCalibrationDatasets, err = envInt("LAGSCAN_NULL_DATASETS", cfg.NullCalibrationDatasets); err != nil {
		return cfg, err
	}
	if cfg.RANSACResidualThreshold, err = envFloat("LAGSCAN_RANSAC_RESIDUAL_THRESHOLD", cfg.RANSACResidualThreshold); err != nil {
		return cfg, err
	}
	if cfg.RANSACMinInlierFraction, err = envFloat("LAGSCAN_RANSAC_MIN_INLIER_FRACTION", cfg.RANSACMinInlierFraction); err != nil {
		return cfg, err
	}
	if cfg.RANSACMaxIterations, err = envInt("LAGSCAN_RANSAC_MAX_ITERATIONS", cfg.RANSACMaxIterations); err != nil {
		return cfg, err
	}
	if cfg.EnergyBins, err = envInt("LAGSCAN_ENERGY_BINS", cfg.EnergyBins); err != nil {
		return cfg, err
	}
	if cfg.DynamicThresholdPercentile, err = envFloat("LAGSCAN_THRESHOLD_PERCENTILE", cfg.DynamicThresholdPercentile); err != nil {
		return cfg, err
	}
	if cfg.RandomSeed, err = envInt64("LAGSCAN_RANDOM_SEED", cfg.RandomSeed); err != nil {
		return cfg, err
	}
	if cfg.Workers, err = envInt("LAGSCAN_WORKERS", cfg.Workers); err != nil {
		return cfg, err
	}
	if v := os.Getenv("LAGSCAN_NULL_STRATEGY"); v != "" {
		cfg.NullGeneration = NullStrategy(strings.ToLower(strings.TrimSpace(v)))
	}
	if v := os.Getenv("LAGSCAN_ENSEMBLE_WEIGHTS"); v != "" {
		weights, err := parseWeights(v)
		if err != nil {
			return cfg, err
		}
		cfg.EnsembleMethodWeights = weights
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every option; any violation aborts the run with CONFIG_INVALID
func (c Config) Validate() error {
	if c.BootstrapTrials < 1 {
		return errors.Newf(errors.CodeConfigInvalid, "bootstrap trials must be positive, got %d", c.BootstrapTrials)
	}
	if c.PermutationTrials < 1 {
		return errors.Newf(errors.CodeConfigInvalid, "permutation trials must be positive, got %d", c.PermutationTrials)
	}
	if c.NullCalibrationDatasets < 1 {
		return errors.Newf(errors.CodeConfigInvalid, "null calibration datasets must be positive, got %d", c.NullCalibrationDatasets)
	}
	if c.RANSACMinInlierFraction <= 0 || c.RANSACMinInlierFraction > 1 {
		return errors.Newf(errors.CodeConfigInvalid, "RANSAC min inlier fraction must be in (0, 1], got %g", c.RANSACMinInlierFraction)
	}
	if c.RANSACMaxIterations < 1 {
		return errors.Newf(errors.CodeConfigInvalid, "RANSAC max iterations must be positive, got %d", c.RANSACMaxIterations)
	}
	if c.EnergyBins < 2 {
		return errors.Newf(errors.CodeConfigInvalid, "energy bins must be >= 2, got %d", c.EnergyBins)
	}
	if c.DynamicThresholdPercentile <= 0 || c.DynamicThresholdPercentile >= 100 {
		return errors.Newf(errors.CodeConfigInvalid, "threshold percentile must be in (0, 100), got %g", c.DynamicThresholdPercentile)
	}
	if c.NullGeneration != NullPermute && c.NullGeneration != NullRedraw {
		return errors.Newf(errors.CodeConfigInvalid, "unknown null generation strategy %q", c.NullGeneration)
	}
	if c.Workers < 0 {
		return errors.Newf(errors.CodeConfigInvalid, "workers must be >= 0, got %d", c.Workers)
	}
	for name, w := range c.EnsembleMethodWeights {
		if w < 0 {
			return errors.Newf(errors.CodeConfigInvalid, "ensemble weight for %q must be non-negative, got %g", name, w)
		}
	}
	return nil
}

// parseWeights parses comma-separated method=weight pairs, e.g.
// "direct_correlation=2,linear_slope=0.5"
func parseWeights(v string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Newf(errors.CodeConfigInvalid,
				"LAGSCAN_ENSEMBLE_WEIGHTS: malformed pair %q, want method=weight", pair)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, errors.Newf(errors.CodeConfigInvalid,
				"LAGSCAN_ENSEMBLE_WEIGHTS: invalid weight %q for %q", value, name)
		}
		out[strings.TrimSpace(name)] = w
	}
	if len(out) == 0 {
		return nil, errors.New(errors.CodeConfigInvalid, "LAGSCAN_ENSEMBLE_WEIGHTS: no method=weight pairs")
	}
	return out, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, errors.Newf(errors.CodeConfigInvalid, "%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, errors.Newf(errors.CodeConfigInvalid, "%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, errors.Newf(errors.CodeConfigInvalid, "%s: invalid number %q", key, v)
	}
	return f, nil
}
