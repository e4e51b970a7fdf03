// Package engine provides the compute engine façade. An engine owns its
// configuration, selects the accelerated or fallback execution path at
// initialization time and composes the statistics, time series and chunked
// processing components behind a single lifecycle.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dashlytics/compute/internal/accel"
	"github.com/dashlytics/compute/internal/capability"
	"github.com/dashlytics/compute/internal/processor"
	"github.com/dashlytics/compute/internal/statistics"
	"github.com/dashlytics/compute/internal/timeseries"
	"github.com/dashlytics/compute/pkg/errors"
	"github.com/dashlytics/compute/pkg/models"
)

// State tracks the engine lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Engine is the compute engine façade.
type Engine struct {
	logger   *logrus.Logger
	config   models.ComputeConfig
	detector *capability.Detector
	metrics  *Metrics

	stateMu sync.Mutex
	state   State

	backend     accel.Backend
	calc        *statistics.Calculator
	analyzer    *timeseries.Analyzer
	caps        models.Capabilities
	accelerated bool

	queued  atomic.Int64
	running atomic.Int64

	// lifetime is cancelled by Cleanup to signal outstanding chunk work.
	lifetime context.Context
	cancel   context.CancelFunc
}

// New creates an engine with the given configuration. Invalid configuration
// values are clamped to defaults.
func New(config models.ComputeConfig, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Engine{
		logger:   logger,
		config:   config.Clamped(),
		detector: capability.NewDetector(logger),
		metrics:  NewMetrics(),
		state:    StateUninitialized,
		lifetime: lifetime,
		cancel:   cancel,
	}
}

// Initialize runs capability detection and prepares the execution path.
// Acceleration failure is never fatal: the engine falls back to the pure
// path. Initialize is idempotent after the first success.
func (e *Engine) Initialize(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	switch e.state {
	case StateDisposed:
		return errors.NewEngineDisposedError()
	case StateReady:
		return nil
	}
	e.state = StateInitializing

	e.caps = e.detector.Detect(ctx)

	e.backend = accel.NewNativeBackend()
	e.accelerated = false
	if e.caps.IsSupported {
		wasmBackend, err := accel.NewWasmBackend(ctx, accel.WasmOptions{
			EnableThreads: e.config.EnableThreads && e.caps.HasThreads,
		}, e.logger)
		if err != nil {
			e.logger.WithError(errors.NewAccelerationInitError(err)).
				Warn("acceleration unavailable, using fallback path")
		} else {
			e.backend = wasmBackend
			e.accelerated = true
		}
	}

	e.calc = statistics.NewCalculator(e.backend, e.logger, e.config.AccelThreshold)
	e.analyzer = timeseries.NewAnalyzer(e.calc, e.logger, timeseries.Config{
		AnomalyThreshold: e.config.AnomalyThreshold,
		ForecastHorizon:  e.config.ForecastHorizon,
		SmoothingFactor:  e.config.SmoothingFactor,
	})

	if e.accelerated {
		e.metrics.acceleration.Set(1)
	} else {
		e.metrics.acceleration.Set(0)
	}

	e.state = StateReady
	e.logger.WithFields(logrus.Fields{
		"accelerated": e.accelerated,
		"backend":     e.backend.Name(),
		"performance": e.caps.Performance,
	}).Info("compute engine initialized")
	return nil
}

// CalculateStatistics computes a statistical summary for values.
func (e *Engine) CalculateStatistics(ctx context.Context, values []float64) (*models.StatisticalSummary, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	done := e.trackTask(models.TaskTypeStatistics)
	summary, err := e.calc.Summarize(ctx, values)
	done(err)
	return summary, err
}

// AnalyzeTimeSeries analyzes trend, seasonality, anomalies and forecast.
func (e *Engine) AnalyzeTimeSeries(ctx context.Context, data *models.AnalyticsData, opts *models.AnalysisOptions) (*models.TimeSeriesAnalysis, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	done := e.trackTask(models.TaskTypeTimeSeries)
	analysis, err := e.analyzer.Analyze(ctx, data, opts)
	done(err)
	return analysis, err
}

// SubmitTask executes a compute task and returns its result with execution
// metadata. Errors are reported inside the result rather than returned.
func (e *Engine) SubmitTask(ctx context.Context, task *models.ComputeTask) *models.ComputeResult {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	result := &models.ComputeResult{
		TaskID: task.ID,
		Path:   e.path(),
	}
	start := time.Now()

	var (
		data interface{}
		err  error
	)
	switch task.Type {
	case models.TaskTypeStatistics:
		if task.Data == nil {
			err = errors.NewEmptyDatasetError("task carries no data")
		} else {
			data, err = e.CalculateStatistics(ctx, task.Data.Values)
		}
	case models.TaskTypeTimeSeries:
		if task.Data == nil {
			err = errors.NewEmptyDatasetError("task carries no data")
		} else {
			data, err = e.AnalyzeTimeSeries(ctx, task.Data, task.Options)
		}
	default:
		err = errors.NewUnknownTaskTypeError(string(task.Type))
	}

	result.Duration = time.Since(start)
	result.CompletedAt = time.Now()
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Data = data
	}
	return result
}

// Stats returns a snapshot of engine state.
func (e *Engine) Stats() models.EngineStats {
	return models.EngineStats{
		IsAccelerationEnabled: e.isAccelerated(),
		Config:                e.config,
		QueuedTasks:           e.queued.Load(),
		RunningTasks:          e.running.Load(),
	}
}

// Capabilities returns the detected runtime capabilities. The engine must
// be initialized first.
func (e *Engine) Capabilities() models.Capabilities {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.caps
}

// Cleanup cancels in-flight work best-effort and disposes the engine. Any
// call after Cleanup fails with an EngineDisposed error.
func (e *Engine) Cleanup(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if e.state == StateDisposed {
		return nil
	}

	e.cancel()
	if e.backend != nil {
		if err := e.backend.Close(ctx); err != nil {
			e.logger.WithError(err).Warn("backend close failed during cleanup")
		}
	}

	e.state = StateDisposed
	e.logger.Info("compute engine disposed")
	return nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

// Config returns the engine's clamped configuration.
func (e *Engine) Config() models.ComputeConfig {
	return e.config
}

func (e *Engine) checkReady() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	switch e.state {
	case StateDisposed:
		return errors.NewEngineDisposedError()
	case StateReady:
		return nil
	default:
		return errors.NewEngineNotReadyError()
	}
}

func (e *Engine) isAccelerated() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.accelerated
}

func (e *Engine) path() models.ExecutionPath {
	if e.isAccelerated() {
		return models.PathAccelerated
	}
	return models.PathFallback
}

// trackTask marks a task running for the duration of its synchronous
// dispatch and records its outcome. The returned function must be called
// exactly once. Tasks execute on the caller's goroutine and never wait for
// dispatch, so the queued counter stays at zero.
func (e *Engine) trackTask(taskType models.TaskType) func(error) {
	e.running.Add(1)
	e.metrics.runningTasks.Inc()
	start := time.Now()

	return func(err error) {
		e.running.Add(-1)
		e.metrics.runningTasks.Dec()
		e.metrics.taskDuration.WithLabelValues(string(taskType)).Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "error"
		}
		e.metrics.tasksTotal.WithLabelValues(string(taskType), status).Inc()
	}
}

// ProcessLargeDataset splits data into chunks and drives fn through the
// engine's worker pool. Option zero values fall back to the engine
// configuration. Output ordering matches input chunk order irrespective of
// completion order; the first chunk failure aborts the whole call.
func ProcessLargeDataset[T, U any](ctx context.Context, e *Engine, data []T, fn processor.ChunkFunc[T, U], opts *processor.Options) ([]U, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	resolved := processor.Options{
		ChunkSize:  e.config.ChunkSize,
		Parallel:   e.config.EnableParallelProcessing,
		MaxWorkers: e.config.MaxWorkers,
		Logger:     e.logger,
	}
	if opts != nil {
		if opts.ChunkSize > 0 {
			resolved.ChunkSize = opts.ChunkSize
		}
		resolved.Parallel = opts.Parallel && e.config.EnableParallelProcessing
		if opts.MaxWorkers > 0 && opts.MaxWorkers < resolved.MaxWorkers {
			resolved.MaxWorkers = opts.MaxWorkers
		}
		resolved.OnProgress = opts.OnProgress
	}

	// Cleanup cancels the engine lifetime, which in turn aborts
	// outstanding chunk work started through this engine.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.lifetime, cancel)
	defer stop()

	e.running.Add(1)
	e.metrics.runningTasks.Inc()
	defer func() {
		e.running.Add(-1)
		e.metrics.runningTasks.Dec()
	}()

	results, err := processor.Process(ctx, data, fn, resolved)
	if err == nil {
		e.metrics.chunksProcessed.Add(float64(len(results)))
	}
	return results, err
}
