package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects compute engine metrics into a Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	tasksTotal      *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	queuedTasks     prometheus.Gauge
	runningTasks    prometheus.Gauge
	chunksProcessed prometheus.Counter
	acceleration    prometheus.Gauge
}

// NewMetrics creates engine metrics registered on their own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compute",
			Name:      "tasks_total",
			Help:      "Total number of compute tasks by type and status",
		}, []string{"type", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "compute",
			Name:      "task_duration_seconds",
			Help:      "Compute task duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		queuedTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "compute",
			Name:      "queued_tasks",
			Help:      "Number of tasks waiting for a worker",
		}),
		runningTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "compute",
			Name:      "running_tasks",
			Help:      "Number of tasks currently executing",
		}),
		chunksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "compute",
			Name:      "chunks_processed_total",
			Help:      "Total number of dataset chunks processed",
		}),
		acceleration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "compute",
			Name:      "acceleration_enabled",
			Help:      "Whether the accelerated execution path is active",
		}),
	}

	m.registry.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.queuedTasks,
		m.runningTasks,
		m.chunksProcessed,
		m.acceleration,
	)
	return m
}

// Registry exposes the underlying registry for scraping or testing.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
