// Package timeseries computes trend, seasonality, anomaly and forecast
// analysis over sequenced numeric data.
package timeseries

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dashlytics/compute/internal/statistics"
	"github.com/dashlytics/compute/pkg/errors"
	"github.com/dashlytics/compute/pkg/models"
)

// Config contains analyzer defaults. Per-call options override them.
type Config struct {
	// TrendThreshold is the minimum total fitted change, relative to the
	// value scale, for a series to classify as increasing or decreasing.
	TrendThreshold float64
	// AnomalyThreshold is the z-score above which a point is anomalous.
	AnomalyThreshold float64
	// ForecastHorizon is the default number of forecast points.
	ForecastHorizon int
	// SmoothingFactor is the exponential smoothing alpha for the forecast
	// baseline.
	SmoothingFactor float64
	// MaxLag bounds the autocorrelation search for seasonality.
	MaxLag int
	// MinPoints is the minimum series length for trend and seasonality
	// analysis.
	MinPoints int
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		TrendThreshold:   0.1,
		AnomalyThreshold: 2.5,
		ForecastHorizon:  10,
		SmoothingFactor:  0.3,
		MaxLag:           50,
		MinPoints:        2,
	}
}

// Analyzer performs time series analysis.
type Analyzer struct {
	calc   *statistics.Calculator
	logger *logrus.Logger
	config Config
}

// NewAnalyzer creates an analyzer backed by the given calculator.
func NewAnalyzer(calc *statistics.Calculator, logger *logrus.Logger, config Config) *Analyzer {
	if logger == nil {
		logger = logrus.New()
	}
	def := DefaultConfig()
	if config.TrendThreshold <= 0 {
		config.TrendThreshold = def.TrendThreshold
	}
	if config.AnomalyThreshold <= 0 {
		config.AnomalyThreshold = def.AnomalyThreshold
	}
	if config.ForecastHorizon < 1 {
		config.ForecastHorizon = def.ForecastHorizon
	}
	if config.SmoothingFactor <= 0 || config.SmoothingFactor >= 1 {
		config.SmoothingFactor = def.SmoothingFactor
	}
	if config.MaxLag < 2 {
		config.MaxLag = def.MaxLag
	}
	if config.MinPoints < 2 {
		config.MinPoints = def.MinPoints
	}
	return &Analyzer{calc: calc, logger: logger, config: config}
}

// Analyze computes trend, seasonality, anomalies and a forecast for data.
// Values are ordered by timestamp before analysis when timestamps are
// present. The result is deterministic for a given input.
func (a *Analyzer) Analyze(ctx context.Context, data *models.AnalyticsData, opts *models.AnalysisOptions) (*models.TimeSeriesAnalysis, error) {
	if len(data.Values) == 0 {
		return nil, errors.NewEmptyDatasetError("cannot analyze an empty series")
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if len(data.Values) < a.config.MinPoints {
		return nil, errors.NewInsufficientDataError(a.config.MinPoints, len(data.Values))
	}

	values := orderByTimestamp(data.Values, data.Timestamps)

	summary, err := a.calc.Summarize(ctx, values)
	if err != nil {
		return nil, err
	}

	horizon := a.config.ForecastHorizon
	anomalyThreshold := a.config.AnomalyThreshold
	smoothing := a.config.SmoothingFactor
	seasonalPeriod := 0
	if opts != nil {
		if opts.ForecastHorizon > 0 {
			horizon = opts.ForecastHorizon
		}
		if opts.AnomalyThreshold > 0 {
			anomalyThreshold = opts.AnomalyThreshold
		}
		if opts.SmoothingFactor > 0 && opts.SmoothingFactor < 1 {
			smoothing = opts.SmoothingFactor
		}
		if opts.SeasonalPeriod > 1 {
			seasonalPeriod = opts.SeasonalPeriod
		}
	}

	slope, intercept := linearFit(values)
	trend := a.classifyTrend(values, summary, slope)
	seasonal, period := a.detectSeasonality(values, slope, intercept, seasonalPeriod)
	anomalies := a.detectAnomalies(values, summary, anomalyThreshold)
	forecast := a.forecast(values, slope, smoothing, horizon, seasonal, period)

	return &models.TimeSeriesAnalysis{
		Trend:       trend,
		Seasonality: seasonal,
		Anomalies:   anomalies,
		Forecast:    forecast,
		Statistics:  summary,
	}, nil
}

// orderByTimestamp returns values sorted by their timestamps. Without
// timestamps the original order is kept.
func orderByTimestamp(values []float64, timestamps []int64) []float64 {
	if len(timestamps) != len(values) {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}

	indices := make([]int, len(values))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return timestamps[indices[i]] < timestamps[indices[j]]
	})

	out := make([]float64, len(values))
	for i, idx := range indices {
		out[i] = values[idx]
	}
	return out
}

// linearFit computes the least-squares slope and intercept over indices.
func linearFit(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, values[0]
	}

	sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denominator
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// classifyTrend compares the total fitted change against the value scale.
func (a *Analyzer) classifyTrend(values []float64, summary *models.StatisticalSummary, slope float64) models.TrendDirection {
	scale := math.Max(math.Abs(summary.Mean), summary.StandardDeviation)
	if scale < 1e-12 {
		scale = 1e-12
	}

	totalChange := slope * float64(len(values)-1)
	relative := totalChange / scale

	switch {
	case relative > a.config.TrendThreshold:
		return models.TrendIncreasing
	case relative < -a.config.TrendThreshold:
		return models.TrendDecreasing
	default:
		return models.TrendStable
	}
}

// detectSeasonality searches the autocorrelation of the detrended series
// for a significant periodic peak. When fixedPeriod is set only that lag is
// tested. It returns the decision and the detected period.
func (a *Analyzer) detectSeasonality(values []float64, slope, intercept float64, fixedPeriod int) (bool, int) {
	n := len(values)
	maxLag := n / 2
	if maxLag > a.config.MaxLag {
		maxLag = a.config.MaxLag
	}
	if maxLag < 2 {
		return false, 0
	}

	// Detrend so a monotone series does not masquerade as seasonal.
	residuals := make([]float64, n)
	mean := 0.0
	for i, v := range values {
		residuals[i] = v - (intercept + slope*float64(i))
		mean += residuals[i]
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range residuals {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(n)
	if variance < 1e-12 {
		return false, 0
	}

	significance := 1.96 / math.Sqrt(float64(n))

	lags := make([]int, 0, maxLag)
	if fixedPeriod > 1 && fixedPeriod <= maxLag {
		lags = append(lags, fixedPeriod)
	} else {
		for lag := 2; lag <= maxLag; lag++ {
			lags = append(lags, lag)
		}
	}

	bestLag, bestACF := 0, 0.0
	for _, lag := range lags {
		autocovar := 0.0
		for i := lag; i < n; i++ {
			autocovar += (residuals[i] - mean) * (residuals[i-lag] - mean)
		}
		autocovar /= float64(n)
		acf := autocovar / variance
		if acf > bestACF {
			bestACF = acf
			bestLag = lag
		}
	}

	if bestACF > significance && bestACF > 0.3 {
		return true, bestLag
	}
	return false, 0
}

// detectAnomalies flags points whose z-score exceeds the threshold.
// Severity scales with the deviation and is capped at 3.
func (a *Analyzer) detectAnomalies(values []float64, summary *models.StatisticalSummary, threshold float64) []models.Anomaly {
	anomalies := make([]models.Anomaly, 0)
	if summary.StandardDeviation < 1e-12 {
		return anomalies
	}

	for i, v := range values {
		z := math.Abs(v-summary.Mean) / summary.StandardDeviation
		if z > threshold {
			anomalies = append(anomalies, models.Anomaly{
				Index:    i,
				Value:    v,
				Severity: math.Min(3, z/threshold),
			})
		}
	}
	return anomalies
}

// forecast continues the series along the fitted trend from an
// exponentially smoothed level, optionally re-applying the detected
// seasonal pattern.
func (a *Analyzer) forecast(values []float64, slope, smoothing float64, horizon int, seasonal bool, period int) []float64 {
	n := len(values)

	level := values[0]
	for i := 1; i < n; i++ {
		level = smoothing*values[i] + (1-smoothing)*level
	}

	var pattern []float64
	if seasonal && period > 1 {
		pattern = seasonalPattern(values, period)
	}

	out := make([]float64, horizon)
	for i := 0; i < horizon; i++ {
		out[i] = level + slope*float64(i+1)
		if pattern != nil {
			out[i] += pattern[(n+i)%period]
		}
	}
	return out
}

// seasonalPattern returns per-position deviations from the series mean.
func seasonalPattern(values []float64, period int) []float64 {
	sums := make([]float64, period)
	counts := make([]int, period)
	total := 0.0
	for i, v := range values {
		sums[i%period] += v
		counts[i%period]++
		total += v
	}
	mean := total / float64(len(values))

	pattern := make([]float64, period)
	for i := range pattern {
		if counts[i] > 0 {
			pattern[i] = sums[i]/float64(counts[i]) - mean
		}
	}
	return pattern
}
