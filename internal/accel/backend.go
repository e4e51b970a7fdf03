// Package accel provides the numeric kernels behind the compute engine's
// dual execution path. The native backend is the portable fallback; the wasm
// backend runs the same kernels inside a wazero-hosted WebAssembly module.
// Both implementations must produce results equal within a small relative
// tolerance for the same input.
package accel

import (
	"context"

	"github.com/dashlytics/compute/pkg/errors"
)

// Backend executes the moment and vector kernels used by the statistics
// calculator and the vector index.
type Backend interface {
	// Name identifies the backend implementation.
	Name() string

	// Sum returns the sum of values.
	Sum(ctx context.Context, values []float64) (float64, error)

	// SumSquaredDiff returns the sum of squared deviations from mean.
	SumSquaredDiff(ctx context.Context, values []float64, mean float64) (float64, error)

	// Dot returns the dot product of a and b, which must share length.
	Dot(ctx context.Context, a, b []float64) (float64, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

type nativeBackend struct{}

// NewNativeBackend returns the pure Go fallback backend.
func NewNativeBackend() Backend {
	return nativeBackend{}
}

func (nativeBackend) Name() string { return "native" }

func (nativeBackend) Sum(_ context.Context, values []float64) (float64, error) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum, nil
}

func (nativeBackend) SumSquaredDiff(_ context.Context, values []float64, mean float64) (float64, error) {
	sum := 0.0
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return sum, nil
}

func (nativeBackend) Dot(_ context.Context, a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.NewDimensionMismatchError(len(a), len(b))
	}
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

func (nativeBackend) Close(_ context.Context) error { return nil }
