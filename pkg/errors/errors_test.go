package errors

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorError(t *testing.T) {
	err := NewAppError(ErrorTypeValidation, CodeEmptyDataset, "no data")
	assert.Equal(t, "EMPTY_DATASET: no data", err.Error())

	err = err.WithDetails("values slice was empty")
	assert.Equal(t, "EMPTY_DATASET: no data - values slice was empty", err.Error())
}

func TestEmptyDatasetError(t *testing.T) {
	err := NewEmptyDatasetError("cannot summarize an empty dataset")

	assert.True(t, IsEmptyDataset(err))
	assert.True(t, stderrors.Is(err, ErrEmptyDataset))
	assert.False(t, IsInvalidValue(err))
}

func TestInvalidValueErrorContext(t *testing.T) {
	err := NewInvalidValueError(7, math.NaN())

	assert.True(t, IsInvalidValue(err))
	assert.Equal(t, 7, err.Context["index"])
	assert.Contains(t, err.Error(), "index 7")
}

func TestInsufficientDataError(t *testing.T) {
	err := NewInsufficientDataError(2, 1)

	assert.True(t, IsInsufficientData(err))
	assert.Equal(t, 2, err.Context["required"])
	assert.Equal(t, 1, err.Context["got"])
}

func TestChunkProcessingError(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewChunkProcessingError(3, cause)

	assert.True(t, IsChunkProcessing(err))
	assert.True(t, stderrors.Is(err, cause))

	idx, ok := ChunkIndex(err)
	require.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestChunkIndexOnOtherError(t *testing.T) {
	_, ok := ChunkIndex(NewEmptyDatasetError("no data"))
	assert.False(t, ok)

	_, ok = ChunkIndex(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestUnknownTaskTypeError(t *testing.T) {
	err := NewUnknownTaskTypeError("bogus")

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, CodeUnknownTaskType, err.Code)
	assert.Equal(t, "bogus", err.Context["task_type"])
	assert.Contains(t, err.Error(), "unknown task type: bogus")
}

func TestChunkProcessingErrorWithoutChunkIndex(t *testing.T) {
	err := NewChunkProcessingError(-1, context.Canceled)

	assert.True(t, IsChunkProcessing(err))
	assert.NotContains(t, err.Error(), "chunk -1")

	idx, ok := ChunkIndex(err)
	require.True(t, ok)
	assert.Equal(t, -1, idx)
}

func TestAccelerationInitErrorIsRetryable(t *testing.T) {
	err := NewAccelerationInitError(stderrors.New("compile failed"))

	assert.True(t, IsAccelerationInit(err))
	assert.True(t, err.Retryable)
}

func TestLifecycleErrors(t *testing.T) {
	disposed := NewEngineDisposedError()
	assert.True(t, IsEngineDisposed(disposed))
	assert.True(t, stderrors.Is(disposed, ErrEngineDisposed))

	notReady := NewEngineNotReadyError()
	assert.False(t, IsEngineDisposed(notReady))
	assert.True(t, stderrors.Is(notReady, ErrEngineNotReady))
}

func TestAppErrorIsMatchesTypeAndCode(t *testing.T) {
	a := NewEmptyDatasetError("a")
	b := NewEmptyDatasetError("b")
	assert.True(t, stderrors.Is(a, b))

	c := NewEngineDisposedError()
	assert.False(t, stderrors.Is(a, c))
}

func TestWrappedAppErrorIsStillDetected(t *testing.T) {
	inner := NewInvalidValueError(0, 1)
	wrapped := NewChunkProcessingError(0, inner)

	assert.True(t, IsChunkProcessing(wrapped))

	var appErr *AppError
	require.True(t, stderrors.As(wrapped, &appErr))
	assert.Equal(t, CodeChunkProcessing, appErr.Code)
}
