// Package vector provides similarity operations over fixed-dimension
// float64 vectors. Dot products run through the acceleration backend so the
// accelerated and fallback paths share one code path with statistics.
package vector

import (
	"context"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/dashlytics/compute/internal/accel"
	"github.com/dashlytics/compute/pkg/errors"
	"github.com/dashlytics/compute/pkg/models"
)

// Match pairs a candidate vector index with its similarity score.
type Match struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Index performs similarity computations over vectors of a fixed dimension.
type Index struct {
	dimensions int
	backend    accel.Backend
	logger     *logrus.Logger
}

// NewIndex creates an index for vectors of the given dimension. backend may
// be nil, in which case the native path is used.
func NewIndex(dimensions int, backend accel.Backend, logger *logrus.Logger) *Index {
	if backend == nil {
		backend = accel.NewNativeBackend()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Index{dimensions: dimensions, backend: backend, logger: logger}
}

// Dimensions returns the vector dimension the index was built for.
func (x *Index) Dimensions() int {
	return x.dimensions
}

func (x *Index) check(v []float64) error {
	if len(v) != x.dimensions {
		return errors.NewDimensionMismatchError(x.dimensions, len(v))
	}
	for i, f := range v {
		if !models.IsFinite(f) {
			return errors.NewInvalidValueError(i, f)
		}
	}
	return nil
}

// DotProduct computes the inner product of a and b.
func (x *Index) DotProduct(ctx context.Context, a, b []float64) (float64, error) {
	if err := x.check(a); err != nil {
		return 0, err
	}
	if err := x.check(b); err != nil {
		return 0, err
	}
	return x.backend.Dot(ctx, a, b)
}

// CosineSimilarity computes the cosine of the angle between a and b.
// A zero-magnitude vector yields a similarity of 0.
func (x *Index) CosineSimilarity(ctx context.Context, a, b []float64) (float64, error) {
	dot, err := x.DotProduct(ctx, a, b)
	if err != nil {
		return 0, err
	}

	normA, err := x.backend.Dot(ctx, a, a)
	if err != nil {
		return 0, err
	}
	normB, err := x.backend.Dot(ctx, b, b)
	if err != nil {
		return 0, err
	}

	magnitude := math.Sqrt(normA) * math.Sqrt(normB)
	if magnitude == 0 {
		return 0, nil
	}
	return dot / magnitude, nil
}

// EuclideanDistance computes the L2 distance between a and b.
func (x *Index) EuclideanDistance(ctx context.Context, a, b []float64) (float64, error) {
	if err := x.check(a); err != nil {
		return 0, err
	}
	if err := x.check(b); err != nil {
		return 0, err
	}

	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum), nil
}

// Normalize returns v scaled to unit length. A zero vector is returned
// unchanged.
func (x *Index) Normalize(ctx context.Context, v []float64) ([]float64, error) {
	if err := x.check(v); err != nil {
		return nil, err
	}

	norm, err := x.backend.Dot(ctx, v, v)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(v))
	magnitude := math.Sqrt(norm)
	if magnitude == 0 {
		copy(out, v)
		return out, nil
	}
	for i, f := range v {
		out[i] = f / magnitude
	}
	return out, nil
}

// BatchCosineSimilarity scores query against every candidate, preserving
// candidate order.
func (x *Index) BatchCosineSimilarity(ctx context.Context, query []float64, candidates [][]float64) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i, candidate := range candidates {
		score, err := x.CosineSimilarity(ctx, query, candidate)
		if err != nil {
			return nil, err
		}
		scores[i] = score
	}
	return scores, nil
}

// TopK returns the k candidates most similar to query by cosine similarity,
// highest score first. Ties keep the lower candidate index first. k larger
// than the candidate count returns every candidate.
func (x *Index) TopK(ctx context.Context, query []float64, candidates [][]float64, k int) ([]Match, error) {
	if k < 1 {
		return []Match{}, nil
	}

	scores, err := x.BatchCosineSimilarity(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(scores))
	for i, score := range scores {
		matches[i] = Match{Index: i, Score: score}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}
