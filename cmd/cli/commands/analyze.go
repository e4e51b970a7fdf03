package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dashlytics/compute/internal/engine"
	"github.com/dashlytics/compute/pkg/models"
)

type AnalyzeOptions struct {
	InputFile        string
	ForecastHorizon  int
	SeasonalPeriod   int
	AnomalyThreshold float64
	OutputFormat     string
	OutputFile       string
}

func NewAnalyzeCmd(loadConfig ConfigLoader) *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze time series trend, seasonality and anomalies",
		Long: `Analyze a time series to classify its trend, detect seasonality,
flag anomalous points and produce a deterministic forecast.`,
		Example: `  # Basic analysis
  computectl analyze --input sensor_data.csv

  # Longer forecast with a known daily period
  computectl analyze --input data.csv --forecast-horizon 24 --seasonal-period 24`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, loadConfig)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV file, - for stdin (required)")
	cmd.Flags().IntVar(&opts.ForecastHorizon, "forecast-horizon", 0, "Number of points to forecast (0 uses config)")
	cmd.Flags().IntVar(&opts.SeasonalPeriod, "seasonal-period", 0, "Known seasonal period to test (0 auto-detects)")
	cmd.Flags().Float64Var(&opts.AnomalyThreshold, "anomaly-threshold", 0, "Z-score anomaly threshold (0 uses config)")
	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text, json)")
	cmd.Flags().StringVarP(&opts.OutputFile, "output", "o", "-", "Output file (- for stdout)")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *AnalyzeOptions, loadConfig ConfigLoader) error {
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

	analysis, err := eng.AnalyzeTimeSeries(cmd.Context(), data, &models.AnalysisOptions{
		ForecastHorizon:  opts.ForecastHorizon,
		SeasonalPeriod:   opts.SeasonalPeriod,
		AnomalyThreshold: opts.AnomalyThreshold,
	})
	if err != nil {
		return err
	}

	return writeOutput(opts.OutputFile, func(w io.Writer) error {
		if opts.OutputFormat == "json" {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(analysis)
		}
		renderAnalysis(w, analysis)
		return nil
	})
}

func renderAnalysis(w io.Writer, a *models.TimeSeriesAnalysis) {
	fmt.Fprintln(w, "Analysis Results:")
	fmt.Fprintf(w, "  Trend:       %s\n", a.Trend)
	fmt.Fprintf(w, "  Seasonality: %t\n", a.Seasonality)

	fmt.Fprintf(w, "  Anomalies:   %d\n", len(a.Anomalies))
	for _, anomaly := range a.Anomalies {
		fmt.Fprintf(w, "    index %d: value %.6g (severity %.2f)\n",
			anomaly.Index, anomaly.Value, anomaly.Severity)
	}

	if len(a.Forecast) > 0 {
		fmt.Fprintf(w, "  Forecast (%d points):\n", len(a.Forecast))
		for i, v := range a.Forecast {
			fmt.Fprintf(w, "    +%d: %.6g\n", i+1, v)
		}
	}

	if a.Statistics != nil {
		fmt.Fprintln(w)
		renderStats(w, a.Statistics)
	}
}
