// Package resample implements the permutation-test and bootstrap procedures.
// Trials are independent and run on an errgroup worker pool; each trial draws
// from its own derived RNG stream so results are reproducible for a given
// seed regardless of scheduling.
package resample

import (
	"context"
	"math"
	"runtime"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"lagscan/domain/result"
	"lagscan/internal/correlate"
	"lagscan/internal/errors"
	"lagscan/ports"
)

// Engine runs seeded resampling procedures over one photon sample
type Engine struct {
	rng     ports.RNGPort
	workers int
}

// NewEngine creates a resampling engine. workers <= 0 uses NumCPU.
func NewEngine(rng ports.RNGPort, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{rng: rng, workers: workers}
}

// PermutationTest shuffles x against y `trials` times and reports the
// empirical two-sided p-value: the fraction of trials whose shuffled |r|
// reaches the observed |r|.
func (e *Engine) PermutationTest(ctx context.Context, x, y []float64, trials int, seed int64) (*result.PermutationTest, error) {
	if trials < 1 {
		return nil, errors.Newf(errors.CodeConfigInvalid, "permutation trials must be positive, got %d", trials)
	}
	observed, err := correlate.Coefficient(result.EstimatorPearson, x, y)
	if err != nil {
		return nil, err
	}

	nullDist := make([]float64, trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for trial := 0; trial < trials; trial++ {
		trial := trial
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng, err := e.rng.Stream(gctx, "permutation", trial, seed)
			if err != nil {
				return err
			}

			shuffled := make([]float64, len(x))
			copy(shuffled, x)
			fisherYates(shuffled, rng)

			// Degenerate shuffles cannot occur: the permutation preserves the
			// marginal, and the observed coefficient already validated it.
			r, err := correlate.Coefficient(result.EstimatorPearson, shuffled, y)
			if err != nil {
				return err
			}
			nullDist[trial] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	extreme := 0
	for _, r := range nullDist {
		if math.Abs(r) >= math.Abs(observed) {
			extreme++
		}
	}

	mean, _ := stats.Mean(nullDist)
	stdDev, _ := stats.StandardDeviationSample(nullDist)

	return &result.PermutationTest{
		ObservedR:  observed,
		EmpiricalP: float64(extreme) / float64(trials),
		Trials:     trials,
		NullMean:   mean,
		NullStdDev: stdDev,
	}, nil
}

// Bootstrap resamples (x, y) index pairs with replacement `trials` times and
// summarizes the resulting correlation distribution: mean, standard deviation
// and the [2.5%, 97.5%] percentile interval, plus the significance
// percentiles reported alongside in validation summaries.
func (e *Engine) Bootstrap(ctx context.Context, x, y []float64, trials int, seed int64) (*result.ResamplingDistribution, error) {
	if trials < 1 {
		return nil, errors.Newf(errors.CodeConfigInvalid, "bootstrap trials must be positive, got %d", trials)
	}
	if _, err := correlate.Coefficient(result.EstimatorPearson, x, y); err != nil {
		return nil, err
	}

	values := make([]float64, trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for trial := 0; trial < trials; trial++ {
		trial := trial
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng, err := e.rng.Stream(gctx, "bootstrap", trial, seed)
			if err != nil {
				return err
			}

			n := len(x)
			bx := make([]float64, n)
			by := make([]float64, n)
			for i := 0; i < n; i++ {
				idx := rng.Intn(n)
				bx[i] = x[idx]
				by[i] = y[idx]
			}

			r, err := correlate.Coefficient(result.EstimatorPearson, bx, by)
			if err != nil {
				// A degenerate resample (all pairs identical) carries no
				// correlation signal; record zero rather than fail the trial.
				if errors.HasCode(err, errors.CodeDegenerateInput) {
					values[trial] = 0
					return nil
				}
				return err
			}
			values[trial] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summarize("pearson_r", values)
}

func summarize(statistic string, values []float64) (*result.ResamplingDistribution, error) {
	mean, err := stats.Mean(values)
	if err != nil {
		return nil, errors.Wrap(err, "bootstrap summary failed")
	}
	stdDev, _ := stats.StandardDeviationSample(values)
	ciLower, _ := stats.Percentile(values, 2.5)
	ciUpper, _ := stats.Percentile(values, 97.5)
	p95, _ := stats.Percentile(values, 95)
	p99, _ := stats.Percentile(values, 99)

	return &result.ResamplingDistribution{
		Statistic: statistic,
		Trials:    len(values),
		Values:    values,
		Mean:      mean,
		StdDev:    stdDev,
		CILower:   ciLower,
		CIUpper:   ciUpper,
		P95:       p95,
		P99:       p99,
	}, nil
}

func fisherYates(data []float64, rng interface{ Intn(int) int }) {
	for i := len(data) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		data[i], data[j] = data[j], data[i]
	}
}
