package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"lagscan/adapters/eventcsv"
	"lagscan/adapters/rng"
	"lagscan/domain/photon"
	"lagscan/internal/config"
	"lagscan/internal/pipeline"
	"lagscan/internal/testkit"
	"lagscan/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:   "lagscan",
		Short: "Energy-dependent timing lag detection and validation",
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newDemoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAnalyzeCmd() *cobra.Command {
	var seed int64
	var redshift float64
	var distanceFactor float64

	cmd := &cobra.Command{
		Use:   "analyze [event-file.csv]",
		Short: "Run the full detection pipeline over a photon event file",
		Long: `Analyze a two-column CSV event list (arrival time, energy) and report
correlation, resampling, robust-fit, model-selection, ensemble, and
null-calibration results as JSON.

Example: lagscan analyze events.csv --seed 12345 --redshift 1.5 --distance-factor 3.2e17`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := eventcsv.NewLoader(args[0]).Load(cmd.Context())
			if err != nil {
				return err
			}
			return runPipeline(cmd, sample, seed, redshift, distanceFactor)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic resampling")
	cmd.Flags().Float64Var(&redshift, "redshift", 0, "Source redshift for the energy-scale estimate")
	cmd.Flags().Float64Var(&distanceFactor, "distance-factor", 0, "Distance scale factor K(z); 0 disables the energy-scale estimate")

	return cmd
}

func newDemoCmd() *cobra.Command {
	var seed int64
	var photons int
	var lagSlope float64
	var outlierFraction float64

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the pipeline over a synthetic burst with known ground truth",
		RunE: func(cmd *cobra.Command, args []string) error {
			burstCfg := testkit.DefaultBurstConfig()
			burstCfg.Seed = seed
			burstCfg.PhotonCount = photons
			burstCfg.LagSlope = lagSlope
			burstCfg.OutlierFraction = outlierFraction

			sample, err := testkit.GenerateBurst(burstCfg)
			if err != nil {
				return err
			}
			log.Printf("Generated synthetic burst: %d photons, injected slope %.3f, %.0f%% outliers",
				sample.Len(), lagSlope, outlierFraction*100)
			return runPipeline(cmd, sample, seed, 0, 0)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for generation and resampling")
	cmd.Flags().IntVar(&photons, "photons", 2000, "Number of photons to generate")
	cmd.Flags().Float64Var(&lagSlope, "lag-slope", 0, "Injected linear lag slope, seconds per keV")
	cmd.Flags().Float64Var(&outlierFraction, "outliers", 0, "Fraction of photons scattered as outliers")

	return cmd
}

func runPipeline(cmd *cobra.Command, sample *photon.Sample, seed int64, redshift, distanceFactor float64) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.RandomSeed = seed

	var opts []pipeline.Option
	if distanceFactor > 0 {
		scale := ports.DistanceScaleFunc(func(float64) float64 { return distanceFactor })
		opts = append(opts, pipeline.WithDistanceScale(scale, redshift))
	}

	analyzer, err := pipeline.NewAnalyzer(cfg, rng.New(), opts...)
	if err != nil {
		return err
	}

	report, err := analyzer.Run(cmd.Context(), sample)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
