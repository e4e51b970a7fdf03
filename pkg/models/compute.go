package models

import (
	"math"
	"time"

	"github.com/dashlytics/compute/pkg/errors"
)

// ComputeConfig configures a compute engine instance.
// Invalid worker and chunk settings are clamped to defaults, never accepted
// as zero or negative.
type ComputeConfig struct {
	EnableParallelProcessing bool    `json:"enable_parallel_processing" mapstructure:"enable_parallel_processing"`
	MaxWorkers               int     `json:"max_workers" mapstructure:"max_workers"`
	ChunkSize                int     `json:"chunk_size" mapstructure:"chunk_size"`
	EnableSIMD               bool    `json:"enable_simd" mapstructure:"enable_simd"`
	EnableThreads            bool    `json:"enable_threads" mapstructure:"enable_threads"`
	AccelThreshold           int     `json:"accel_threshold" mapstructure:"accel_threshold"`
	ForecastHorizon          int     `json:"forecast_horizon" mapstructure:"forecast_horizon"`
	SmoothingFactor          float64 `json:"smoothing_factor" mapstructure:"smoothing_factor"`
	AnomalyThreshold         float64 `json:"anomaly_threshold" mapstructure:"anomaly_threshold"`
}

// DefaultComputeConfig returns the default engine configuration.
func DefaultComputeConfig() ComputeConfig {
	return ComputeConfig{
		EnableParallelProcessing: true,
		MaxWorkers:               4,
		ChunkSize:                1000,
		EnableSIMD:               true,
		EnableThreads:            false,
		AccelThreshold:           1024,
		ForecastHorizon:          10,
		SmoothingFactor:          0.3,
		AnomalyThreshold:         2.5,
	}
}

// Clamped returns a copy of the configuration with out-of-range values
// replaced by defaults.
func (c ComputeConfig) Clamped() ComputeConfig {
	def := DefaultComputeConfig()
	if c.MaxWorkers < 1 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.ChunkSize < 1 {
		c.ChunkSize = def.ChunkSize
	}
	if c.AccelThreshold < 1 {
		c.AccelThreshold = def.AccelThreshold
	}
	if c.ForecastHorizon < 1 {
		c.ForecastHorizon = def.ForecastHorizon
	}
	if c.SmoothingFactor <= 0 || c.SmoothingFactor >= 1 {
		c.SmoothingFactor = def.SmoothingFactor
	}
	if c.AnomalyThreshold <= 0 {
		c.AnomalyThreshold = def.AnomalyThreshold
	}
	return c
}

// AnalyticsData is a caller-supplied dataset. Timestamps and labels are
// optional, but when present must match the length of Values. The engine
// treats the sequences as read-only.
type AnalyticsData struct {
	Values     []float64              `json:"values"`
	Timestamps []int64                `json:"timestamps,omitempty"`
	Labels     []string               `json:"labels,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the sequence length invariant.
func (d *AnalyticsData) Validate() error {
	if len(d.Timestamps) > 0 && len(d.Timestamps) != len(d.Values) {
		return errors.NewMismatchedLengthsError("timestamps length does not match values length")
	}
	if len(d.Labels) > 0 && len(d.Labels) != len(d.Values) {
		return errors.NewMismatchedLengthsError("labels length does not match values length")
	}
	return nil
}

// Percentiles holds interpolated order statistics of a dataset.
type Percentiles struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// StatisticalSummary contains descriptive statistics for a dataset.
// Variance is the population variance, and Mode holds every value sharing
// the maximum frequency.
type StatisticalSummary struct {
	Count             int64       `json:"count"`
	Sum               float64     `json:"sum"`
	Mean              float64     `json:"mean"`
	Median            float64     `json:"median"`
	Mode              []float64   `json:"mode"`
	Min               float64     `json:"min"`
	Max               float64     `json:"max"`
	Range             float64     `json:"range"`
	Variance          float64     `json:"variance"`
	StandardDeviation float64     `json:"standard_deviation"`
	Percentiles       Percentiles `json:"percentiles"`
}

// TrendDirection classifies the linear trend of a time series.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// Anomaly marks a data point deviating from the series baseline.
// Severity is strictly positive and capped at 3.
type Anomaly struct {
	Index    int     `json:"index"`
	Value    float64 `json:"value"`
	Severity float64 `json:"severity"`
}

// TimeSeriesAnalysis contains the results of time series analysis.
type TimeSeriesAnalysis struct {
	Trend       TrendDirection      `json:"trend"`
	Seasonality bool                `json:"seasonality"`
	Anomalies   []Anomaly           `json:"anomalies"`
	Forecast    []float64           `json:"forecast"`
	Statistics  *StatisticalSummary `json:"statistics"`
}

// AnalysisOptions tunes a single time series analysis call. Zero values
// fall back to the engine configuration defaults.
type AnalysisOptions struct {
	ForecastHorizon  int     `json:"forecast_horizon,omitempty"`
	SeasonalPeriod   int     `json:"seasonal_period,omitempty"`
	AnomalyThreshold float64 `json:"anomaly_threshold,omitempty"`
	SmoothingFactor  float64 `json:"smoothing_factor,omitempty"`
}

// TaskType identifies the kind of work a compute task carries.
type TaskType string

const (
	TaskTypeStatistics TaskType = "statistics"
	TaskTypeTimeSeries TaskType = "timeseries"
)

// ExecutionPath records which execution strategy served a task.
type ExecutionPath string

const (
	PathAccelerated ExecutionPath = "accelerated"
	PathFallback    ExecutionPath = "fallback"
)

// ComputeTask is a named unit of work with an input payload and options.
type ComputeTask struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Type      TaskType         `json:"type"`
	Data      *AnalyticsData   `json:"data"`
	Options   *AnalysisOptions `json:"options,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ComputeResult pairs a task id with either a success payload or an error
// descriptor, plus execution metadata.
type ComputeResult struct {
	TaskID      string        `json:"task_id"`
	Data        interface{}   `json:"data,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Path        ExecutionPath `json:"path"`
	CompletedAt time.Time     `json:"completed_at"`
}

// PerformanceTier classifies runtime acceleration performance.
type PerformanceTier string

const (
	PerformanceLow    PerformanceTier = "low"
	PerformanceMedium PerformanceTier = "medium"
	PerformanceHigh   PerformanceTier = "high"
)

// Capabilities describes the acceleration features available at runtime.
type Capabilities struct {
	IsSupported          bool            `json:"is_supported"`
	HasThreads           bool            `json:"has_threads"`
	HasSIMD              bool            `json:"has_simd"`
	HasExceptionHandling bool            `json:"has_exception_handling"`
	HasBulkMemory        bool            `json:"has_bulk_memory"`
	HasReferenceTypes    bool            `json:"has_reference_types"`
	Performance          PerformanceTier `json:"performance"`
}

// EngineStats is a snapshot of engine state.
type EngineStats struct {
	IsAccelerationEnabled bool          `json:"is_acceleration_enabled"`
	Config                ComputeConfig `json:"config"`
	QueuedTasks           int64         `json:"queued_tasks"`
	RunningTasks          int64         `json:"running_tasks"`
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
