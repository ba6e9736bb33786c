package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lagscan/internal/errors"
)

// TestDefaults verifies the baseline configuration is itself valid
func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1000, cfg.BootstrapTrials)
	assert.Equal(t, 10000, cfg.PermutationTrials)
	assert.Equal(t, NullPermute, cfg.NullGeneration)
	assert.Equal(t, 90.0, cfg.DynamicThresholdPercentile)
	assert.Equal(t, int64(42), cfg.RandomSeed)
}

// TestValidate_Rejections covers one violation per option
func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero bootstrap", func(c *Config) { c.BootstrapTrials = 0 }},
		{"zero permutation", func(c *Config) { c.PermutationTrials = 0 }},
		{"zero null datasets", func(c *Config) { c.NullCalibrationDatasets = 0 }},
		{"inlier fraction above one", func(c *Config) { c.RANSACMinInlierFraction = 1.5 }},
		{"zero ransac iterations", func(c *Config) { c.RANSACMaxIterations = 0 }},
		{"one energy bin", func(c *Config) { c.EnergyBins = 1 }},
		{"percentile at 100", func(c *Config) { c.DynamicThresholdPercentile = 100 }},
		{"unknown null strategy", func(c *Config) { c.NullGeneration = "mirror" }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"negative weight", func(c *Config) { c.EnsembleMethodWeights = map[string]float64{"direct_correlation": -1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "expected CONFIG_INVALID, got %v", err)
		})
	}
}

// TestLoad_EnvOverrides verifies environment variables override defaults
func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LAGSCAN_BOOTSTRAP_TRIALS", "500")
	t.Setenv("LAGSCAN_THRESHOLD_PERCENTILE", "97.5")
	t.Setenv("LAGSCAN_NULL_STRATEGY", "REDRAW")
	t.Setenv("LAGSCAN_RANDOM_SEED", "1234567890123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.BootstrapTrials)
	assert.Equal(t, 97.5, cfg.DynamicThresholdPercentile)
	assert.Equal(t, NullRedraw, cfg.NullGeneration)
	assert.Equal(t, int64(1234567890123), cfg.RandomSeed)
	// Untouched options keep their defaults
	assert.Equal(t, 10000, cfg.PermutationTrials)
}

// TestLoad_EnsembleWeights verifies method=weight pairs load from the environment
func TestLoad_EnsembleWeights(t *testing.T) {
	t.Setenv("LAGSCAN_ENSEMBLE_WEIGHTS", "direct_correlation=2, linear_slope=0.5,ransac_inlier=0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{
		"direct_correlation": 2,
		"linear_slope":       0.5,
		"ransac_inlier":      0,
	}, cfg.EnsembleMethodWeights)
}

// TestLoad_EnsembleWeightsMalformed covers the weight-parsing failure paths
func TestLoad_EnsembleWeightsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"missing equals", "direct_correlation"},
		{"non-numeric weight", "direct_correlation=heavy"},
		{"only separators", ", ,"},
		{"negative weight", "direct_correlation=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LAGSCAN_ENSEMBLE_WEIGHTS", tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid), "got %v", err)
		})
	}
}

// TestLoad_MalformedEnv verifies unparsable variables surface as CONFIG_INVALID
func TestLoad_MalformedEnv(t *testing.T) {
	t.Setenv("LAGSCAN_ENERGY_BINS", "five")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

// TestLoad_InvalidCombination verifies loaded values still pass full validation
func TestLoad_InvalidCombination(t *testing.T) {
	t.Setenv("LAGSCAN_THRESHOLD_PERCENTILE", "250")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}
