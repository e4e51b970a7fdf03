package timeseries

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashlytics/compute/internal/statistics"
	"github.com/dashlytics/compute/pkg/errors"
	"github.com/dashlytics/compute/pkg/models"
)

func newAnalyzer() *Analyzer {
	return NewAnalyzer(statistics.NewCalculator(nil, nil, 0), nil, DefaultConfig())
}

func series(values ...float64) *models.AnalyticsData {
	return &models.AnalyticsData{Values: values}
}

func TestAnalyzeIncreasingTrend(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = float64(i) * 2
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	assert.Equal(t, models.TrendIncreasing, analysis.Trend)
}

func TestAnalyzeDecreasingTrend(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = 100 - float64(i)*3
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	assert.Equal(t, models.TrendDecreasing, analysis.Trend)
}

func TestAnalyzeStableTrend(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		// Small symmetric oscillation around a constant level.
		values[i] = 10 + 0.01*math.Sin(float64(i))
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	assert.Equal(t, models.TrendStable, analysis.Trend)
}

func TestAnalyzeConstantSeries(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 7
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)

	assert.Equal(t, models.TrendStable, analysis.Trend)
	assert.False(t, analysis.Seasonality)
	assert.Empty(t, analysis.Anomalies)
	for _, v := range analysis.Forecast {
		assert.InDelta(t, 7, v, 1e-9)
	}
}

func TestAnalyzeEmptySeries(t *testing.T) {
	_, err := newAnalyzer().Analyze(context.Background(), series(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsEmptyDataset(err))
}

func TestAnalyzeInsufficientData(t *testing.T) {
	_, err := newAnalyzer().Analyze(context.Background(), series(1), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientData(err))
}

func TestAnalyzeMismatchedTimestamps(t *testing.T) {
	data := &models.AnalyticsData{
		Values:     []float64{1, 2, 3},
		Timestamps: []int64{10, 20},
	}
	_, err := newAnalyzer().Analyze(context.Background(), data, nil)
	require.Error(t, err)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.CodeMismatchedLengths, appErr.Code)
}

func TestAnalyzeOrdersByTimestamp(t *testing.T) {
	// Increasing series delivered out of order.
	data := &models.AnalyticsData{
		Values:     []float64{40, 10, 30, 20, 50, 0},
		Timestamps: []int64{400, 100, 300, 200, 500, 0},
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TrendIncreasing, analysis.Trend)
}

func TestAnalyzeDetectsAnomalies(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 10 + math.Sin(float64(i))
	}
	values[25] = 500
	values[40] = -480

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)

	indices := make([]int, 0, len(analysis.Anomalies))
	for _, anomaly := range analysis.Anomalies {
		indices = append(indices, anomaly.Index)
		assert.Greater(t, anomaly.Severity, 0.0)
		assert.LessOrEqual(t, anomaly.Severity, 3.0)
	}
	assert.ElementsMatch(t, []int{25, 40}, indices)
}

func TestAnalyzeCleanSeriesHasNoAnomalies(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 10 + math.Sin(float64(i))
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	assert.Empty(t, analysis.Anomalies)
}

func TestAnalyzeDetectsSeasonality(t *testing.T) {
	values := make([]float64, 120)
	for i := range values {
		values[i] = 10 * math.Sin(2*math.Pi*float64(i)/12)
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	assert.True(t, analysis.Seasonality)
}

func TestAnalyzeMonotoneSeriesIsNotSeasonal(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	assert.False(t, analysis.Seasonality)
}

func TestAnalyzeForecastHorizon(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i)
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...),
		&models.AnalysisOptions{ForecastHorizon: 5})
	require.NoError(t, err)
	assert.Len(t, analysis.Forecast, 5)

	analysis, err = newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	assert.Len(t, analysis.Forecast, DefaultConfig().ForecastHorizon)
}

func TestAnalyzeForecastFollowsTrend(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(i) * 2
	}

	analysis, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)

	require.NotEmpty(t, analysis.Forecast)
	for i := 1; i < len(analysis.Forecast); i++ {
		assert.Greater(t, analysis.Forecast[i], analysis.Forecast[i-1])
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	values := make([]float64, 80)
	for i := range values {
		values[i] = math.Sin(float64(i)/5) * float64(i%13)
	}

	first, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)
	second, err := newAnalyzer().Analyze(context.Background(), series(values...), nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLinearFit(t *testing.T) {
	slope, intercept := linearFit([]float64{1, 3, 5, 7})
	assert.InDelta(t, 2, slope, 1e-9)
	assert.InDelta(t, 1, intercept, 1e-9)

	slope, intercept = linearFit([]float64{5, 5, 5})
	assert.InDelta(t, 0, slope, 1e-9)
	assert.InDelta(t, 5, intercept, 1e-9)
}
