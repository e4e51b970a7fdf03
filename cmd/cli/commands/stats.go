package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dashlytics/compute/internal/engine"
	"github.com/dashlytics/compute/pkg/models"
)

type StatsOptions struct {
	InputFile    string
	OutputFormat string
	OutputFile   string
}

func NewStatsCmd(loadConfig ConfigLoader) *cobra.Command {
	opts := &StatsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute descriptive statistics for a dataset",
		Long: `Compute count, sum, mean, median, mode, range, variance, standard
deviation and percentiles for a numeric dataset.`,
		Example: `  # Statistics for a CSV file
  computectl stats --input readings.csv

  # JSON output from stdin
  cat readings.csv | computectl stats --input - --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, opts, loadConfig)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file, - for stdin (required)")
	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text, json)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runStats(cmd *cobra.Command, opts *StatsOptions, loadConfig ConfigLoader) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := readSeries(opts.InputFile)
	if err != nil {
		return err
	}

	eng := engine.New(cfg.Compute, logger)
	if err := eng.Initialize(cmd.Context()); err != nil {
		return err
	}
	defer eng.Cleanup(cmd.Context())

	summary, err := eng.CalculateStatistics(cmd.Context(), data.Values)
	if err != nil {
		return err
	}

	return writeOutput(opts.OutputFile, func(w io.Writer) error {
		if opts.OutputFormat == "json" {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}
		renderStats(w, summary)
		return nil
	})
}

func renderStats(w io.Writer, s *models.StatisticalSummary) {
	fmt.Fprintln(w, "Statistics:")
	fmt.Fprintf(w, "  Count:    %d\n", s.Count)
	fmt.Fprintf(w, "  Sum:      %.6g\n", s.Sum)
	fmt.Fprintf(w, "  Mean:     %.6g\n", s.Mean)
	fmt.Fprintf(w, "  Median:   %.6g\n", s.Median)
	fmt.Fprintf(w, "  Mode:     %v\n", s.Mode)
	fmt.Fprintf(w, "  Min:      %.6g\n", s.Min)
	fmt.Fprintf(w, "  Max:      %.6g\n", s.Max)
	fmt.Fprintf(w, "  Range:    %.6g\n", s.Range)
	fmt.Fprintf(w, "  Variance: %.6g\n", s.Variance)
	fmt.Fprintf(w, "  Std Dev:  %.6g\n", s.StandardDeviation)
	fmt.Fprintln(w, "  Percentiles:")
	fmt.Fprintf(w, "    P25: %.6g\n", s.Percentiles.P25)
	fmt.Fprintf(w, "    P50: %.6g\n", s.Percentiles.P50)
	fmt.Fprintf(w, "    P75: %.6g\n", s.Percentiles.P75)
	fmt.Fprintf(w, "    P90: %.6g\n", s.Percentiles.P90)
	fmt.Fprintf(w, "    P95: %.6g\n", s.Percentiles.P95)
	fmt.Fprintf(w, "    P99: %.6g\n", s.Percentiles.P99)
}
