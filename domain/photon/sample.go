package photon

import (
	"math"

	"lagscan/internal/errors"
)

// Sample is an immutable photon-event sample: one arrival time and one
// measured energy per detected photon, in detection order. All derived
// statistics in the pipeline are pure functions of a Sample; nothing
// downstream may mutate it.
type Sample struct {
	times    []float64
	energies []float64
}

// NewSample validates and copies the event arrays into an immutable sample.
// INVARIANTS:
// - times and energies have identical, non-zero length
// - every value is finite
// - every energy is strictly positive
func NewSample(times, energies []float64) (*Sample, error) {
	if len(times) != len(energies) {
		return nil, errors.Newf(errors.CodeConfigInvalid,
			"time/energy length mismatch: %d vs %d", len(times), len(energies))
	}
	if len(times) == 0 {
		return nil, errors.New(errors.CodeInsufficientData, "empty photon sample")
	}
	for i := range times {
		if math.IsNaN(times[i]) || math.IsInf(times[i], 0) {
			return nil, errors.Newf(errors.CodeDegenerateInput, "non-finite arrival time at index %d", i)
		}
		if math.IsNaN(energies[i]) || math.IsInf(energies[i], 0) {
			return nil, errors.Newf(errors.CodeDegenerateInput, "non-finite energy at index %d", i)
		}
		if energies[i] <= 0 {
			return nil, errors.Newf(errors.CodeDegenerateInput, "non-positive energy %g at index %d", energies[i], i)
		}
	}

	s := &Sample{
		times:    make([]float64, len(times)),
		energies: make([]float64, len(energies)),
	}
	copy(s.times, times)
	copy(s.energies, energies)
	return s, nil
}

// MustNewSample creates a sample and panics on invalid input.
// Use only in tests and generators - production code should handle validation errors.
func MustNewSample(times, energies []float64) *Sample {
	s, err := NewSample(times, energies)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of photon events
func (s *Sample) Len() int {
	return len(s.times)
}

// Times returns a copy of the arrival-time array
func (s *Sample) Times() []float64 {
	out := make([]float64, len(s.times))
	copy(out, s.times)
	return out
}

// Energies returns a copy of the energy array
func (s *Sample) Energies() []float64 {
	out := make([]float64, len(s.energies))
	copy(out, s.energies)
	return out
}

// EnergyRange returns the observed minimum and maximum energies
func (s *Sample) EnergyRange() (min, max float64) {
	min, max = s.energies[0], s.energies[0]
	for _, e := range s.energies {
		if e < min {
			min = e
		}
		if e > max {
			max = e
		}
	}
	return min, max
}
