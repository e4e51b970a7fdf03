package vector

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashlytics/compute/pkg/errors"
)

func newIndex(dims int) *Index {
	return NewIndex(dims, nil, nil)
}

func TestDotProduct(t *testing.T) {
	dot, err := newIndex(3).DotProduct(context.Background(), []float64{1, 2, 3}, []float64{4, 5, 6})
	require.NoError(t, err)
	assert.InDelta(t, 32, dot, 1e-9)
}

func TestDotProductDimensionMismatch(t *testing.T) {
	_, err := newIndex(3).DotProduct(context.Background(), []float64{1, 2}, []float64{1, 2, 3})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.CodeDimensionMismatch, appErr.Code)
}

func TestDotProductRejectsNonFinite(t *testing.T) {
	_, err := newIndex(2).DotProduct(context.Background(), []float64{1, math.NaN()}, []float64{1, 2})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidValue(err))
}

func TestCosineSimilarity(t *testing.T) {
	idx := newIndex(2)

	same, err := idx.CosineSimilarity(context.Background(), []float64{1, 0}, []float64{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1, same, 1e-9)

	orthogonal, err := idx.CosineSimilarity(context.Background(), []float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0, orthogonal, 1e-9)

	opposite, err := idx.CosineSimilarity(context.Background(), []float64{1, 0}, []float64{-1, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1, opposite, 1e-9)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	score, err := newIndex(2).CosineSimilarity(context.Background(), []float64{0, 0}, []float64{1, 2})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestEuclideanDistance(t *testing.T) {
	dist, err := newIndex(2).EuclideanDistance(context.Background(), []float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5, dist, 1e-9)

	dist, err = newIndex(2).EuclideanDistance(context.Background(), []float64{1, 1}, []float64{1, 1})
	require.NoError(t, err)
	assert.Zero(t, dist)
}

func TestNormalize(t *testing.T) {
	idx := newIndex(2)

	unit, err := idx.Normalize(context.Background(), []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, unit[0], 1e-9)
	assert.InDelta(t, 0.8, unit[1], 1e-9)

	zero, err := idx.Normalize(context.Background(), []float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, zero)
}

func TestBatchCosineSimilarity(t *testing.T) {
	candidates := [][]float64{
		{1, 0},
		{0, 1},
		{-1, 0},
	}

	scores, err := newIndex(2).BatchCosineSimilarity(context.Background(), []float64{1, 0}, candidates)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 1, scores[0], 1e-9)
	assert.InDelta(t, 0, scores[1], 1e-9)
	assert.InDelta(t, -1, scores[2], 1e-9)
}

func TestTopK(t *testing.T) {
	candidates := [][]float64{
		{-1, 0},
		{1, 0},
		{1, 1},
		{0, 1},
	}

	matches, err := newIndex(2).TopK(context.Background(), []float64{1, 0}, candidates, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Index)
	assert.Equal(t, 2, matches[1].Index)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
}

func TestTopKBounds(t *testing.T) {
	idx := newIndex(2)
	candidates := [][]float64{{1, 0}}

	matches, err := idx.TopK(context.Background(), []float64{1, 0}, candidates, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = idx.TopK(context.Background(), []float64{1, 0}, candidates, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
