package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream derives an independent deterministic RNG for one trial of a named
	// component. Resampling and null-calibration workers each take their own
	// stream so trials share no mutable state and results are reproducible for
	// the same (component, trial, baseSeed) triple.
	Stream(ctx context.Context, component string, trial int, baseSeed int64) (*rand.Rand, error)
}
