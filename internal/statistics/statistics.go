// Package statistics computes descriptive statistics for flat numeric
// datasets. Moment sums for large datasets are routed through the installed
// acceleration backend; the fallback path computes them in place.
package statistics

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dashlytics/compute/internal/accel"
	"github.com/dashlytics/compute/pkg/errors"
	"github.com/dashlytics/compute/pkg/models"
)

// DefaultAccelThreshold is the dataset size above which the accelerated
// backend is used for moment sums.
const DefaultAccelThreshold = 1024

// Calculator computes statistical summaries.
type Calculator struct {
	backend   accel.Backend
	fallback  accel.Backend
	logger    *logrus.Logger
	threshold int
}

// NewCalculator creates a calculator. backend may be nil, in which case
// every computation runs on the native fallback.
func NewCalculator(backend accel.Backend, logger *logrus.Logger, threshold int) *Calculator {
	if logger == nil {
		logger = logrus.New()
	}
	if threshold < 1 {
		threshold = DefaultAccelThreshold
	}
	return &Calculator{
		backend:   backend,
		fallback:  accel.NewNativeBackend(),
		logger:    logger,
		threshold: threshold,
	}
}

// Summarize computes the statistical summary of values.
// It fails with an EmptyDatasetError for an empty input and with an
// InvalidValueError if any element is NaN or infinite.
func (c *Calculator) Summarize(ctx context.Context, values []float64) (*models.StatisticalSummary, error) {
	n := len(values)
	if n == 0 {
		return nil, errors.NewEmptyDatasetError("cannot summarize an empty dataset")
	}
	for i, v := range values {
		if !models.IsFinite(v) {
			return nil, errors.NewInvalidValueError(i, v)
		}
	}

	backend := c.pick(n)

	sum, err := backend.Sum(ctx, values)
	if err != nil {
		c.logger.WithError(err).Warn("accelerated sum failed, using fallback")
		backend = c.fallback
		if sum, err = backend.Sum(ctx, values); err != nil {
			return nil, err
		}
	}
	mean := sum / float64(n)

	sumsq, err := backend.SumSquaredDiff(ctx, values, mean)
	if err != nil {
		if sumsq, err = c.fallback.SumSquaredDiff(ctx, values, mean); err != nil {
			return nil, err
		}
	}
	variance := sumsq / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	min, max := sorted[0], sorted[n-1]

	return &models.StatisticalSummary{
		Count:             int64(n),
		Sum:               sum,
		Mean:              mean,
		Median:            median(sorted),
		Mode:              mode(values),
		Min:               min,
		Max:               max,
		Range:             max - min,
		Variance:          variance,
		StandardDeviation: math.Sqrt(variance),
		Percentiles: models.Percentiles{
			P25: percentile(sorted, 0.25),
			P50: percentile(sorted, 0.50),
			P75: percentile(sorted, 0.75),
			P90: percentile(sorted, 0.90),
			P95: percentile(sorted, 0.95),
			P99: percentile(sorted, 0.99),
		},
	}, nil
}

// Mean returns the arithmetic mean of values.
func (c *Calculator) Mean(ctx context.Context, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.NewEmptyDatasetError("cannot average an empty dataset")
	}
	sum, err := c.pick(len(values)).Sum(ctx, values)
	if err != nil {
		if sum, err = c.fallback.Sum(ctx, values); err != nil {
			return 0, err
		}
	}
	return sum / float64(len(values)), nil
}

func (c *Calculator) pick(n int) accel.Backend {
	if c.backend != nil && n >= c.threshold {
		return c.backend
	}
	return c.fallback
}

// median returns the midpoint of a sorted sequence, averaging the two
// middle elements for an even count.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// mode returns every value sharing the maximum frequency, in ascending order.
func mode(values []float64) []float64 {
	frequency := make(map[float64]int, len(values))
	maxFreq := 0
	for _, v := range values {
		frequency[v]++
		if frequency[v] > maxFreq {
			maxFreq = frequency[v]
		}
	}

	modes := make([]float64, 0, 1)
	for v, freq := range frequency {
		if freq == maxFreq {
			modes = append(modes, v)
		}
	}
	sort.Float64s(modes)
	return modes
}

// percentile interpolates linearly between order statistics of a sorted
// sequence. p is in [0, 1].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
