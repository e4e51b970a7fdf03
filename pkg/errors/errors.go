package errors

import (
	"errors"
	"fmt"
)

// Common compute engine errors
var (
	ErrEmptyDataset     = errors.New("dataset is empty")
	ErrInvalidValue     = errors.New("dataset contains NaN or infinite values")
	ErrInsufficientData = errors.New("insufficient data points for analysis")
	ErrChunkProcessing  = errors.New("chunk processing failed")
	ErrAccelerationInit = errors.New("acceleration backend initialization failed")
	ErrEngineDisposed   = errors.New("compute engine is disposed")
	ErrEngineNotReady   = errors.New("compute engine is not initialized")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeCompute      ErrorType = "compute"
	ErrorTypeAcceleration ErrorType = "acceleration"
	ErrorTypeLifecycle    ErrorType = "lifecycle"
)

// Error codes for different error scenarios
const (
	CodeEmptyDataset      = "EMPTY_DATASET"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeInsufficientData  = "INSUFFICIENT_DATA"
	CodeMismatchedLengths = "MISMATCHED_LENGTHS"
	CodeDimensionMismatch = "DIMENSION_MISMATCH"
	CodeChunkProcessing   = "CHUNK_PROCESSING"
	CodeUnknownTaskType   = "UNKNOWN_TASK_TYPE"
	CodeAccelerationInit  = "ACCELERATION_INIT"
	CodeEngineDisposed    = "ENGINE_DISPOSED"
	CodeEngineNotReady    = "ENGINE_NOT_READY"
)

// AppError represents a compute-engine error with additional context
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewEmptyDatasetError reports an operation invoked with no data points.
func NewEmptyDatasetError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeEmptyDataset,
		Message: message,
		Cause:   ErrEmptyDataset,
	}
}

// NewInvalidValueError reports a NaN or infinite element at the given index.
func NewInvalidValueError(index int, value float64) *AppError {
	err := &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeInvalidValue,
		Message: fmt.Sprintf("value at index %d is not finite: %v", index, value),
		Cause:   ErrInvalidValue,
	}
	return err.WithContext("index", index)
}

// NewInsufficientDataError reports too few data points for the requested analysis.
func NewInsufficientDataError(required, got int) *AppError {
	err := &AppError{
		Type:    ErrorTypeValidation,
		Code:    CodeInsufficientData,
		Message: fmt.Sprintf("analysis requires at least %d data points, got %d", required, got),
		Cause:   ErrInsufficientData,
	}
	return err.WithContext("required", required).WithContext("got", got)
}

// NewMismatchedLengthsError reports analytics sequences of unequal length.
func NewMismatchedLengthsError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, CodeMismatchedLengths, message)
}

// NewDimensionMismatchError reports vectors of unequal dimension.
func NewDimensionMismatchError(expected, got int) *AppError {
	err := NewAppError(ErrorTypeValidation, CodeDimensionMismatch,
		fmt.Sprintf("expected vector dimension %d, got %d", expected, got))
	return err.WithContext("expected", expected).WithContext("got", got)
}

// NewChunkProcessingError wraps the first chunk failure of a chunked
// operation. A negative chunkIndex means no specific chunk failed, such as
// when the operation was cancelled.
func NewChunkProcessingError(chunkIndex int, cause error) *AppError {
	message := fmt.Sprintf("chunk %d failed", chunkIndex)
	if chunkIndex < 0 {
		message = "chunked operation aborted"
	}
	err := &AppError{
		Type:    ErrorTypeCompute,
		Code:    CodeChunkProcessing,
		Message: message,
		Cause:   cause,
	}
	return err.WithContext("chunk_index", chunkIndex)
}

// NewUnknownTaskTypeError reports a task submitted with an unrecognized type.
func NewUnknownTaskTypeError(taskType string) *AppError {
	err := NewAppError(ErrorTypeValidation, CodeUnknownTaskType,
		fmt.Sprintf("unknown task type: %s", taskType))
	return err.WithContext("task_type", taskType)
}

// NewAccelerationInitError wraps a failure to bring up the accelerated path.
// It is recoverable: the engine falls back to the pure path.
func NewAccelerationInitError(cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeAcceleration,
		Code:      CodeAccelerationInit,
		Message:   "failed to initialize acceleration backend",
		Cause:     cause,
		Retryable: true,
	}
}

// NewEngineDisposedError reports a call on an engine after Cleanup.
func NewEngineDisposedError() *AppError {
	return &AppError{
		Type:    ErrorTypeLifecycle,
		Code:    CodeEngineDisposed,
		Message: "engine has been disposed",
		Cause:   ErrEngineDisposed,
	}
}

// NewEngineNotReadyError reports a call on an engine before Initialize.
func NewEngineNotReadyError() *AppError {
	return &AppError{
		Type:    ErrorTypeLifecycle,
		Code:    CodeEngineNotReady,
		Message: "engine has not been initialized",
		Cause:   ErrEngineNotReady,
	}
}

// ChunkIndex extracts the failed chunk index from a chunk processing error.
// A negative index means the operation was aborted before any chunk failed.
func ChunkIndex(err error) (int, bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != CodeChunkProcessing {
		return 0, false
	}
	idx, ok := appErr.Context["chunk_index"].(int)
	return idx, ok
}

// hasCode reports whether err carries the given code.
func hasCode(err error, code string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// IsEmptyDataset reports whether err is an empty dataset error.
func IsEmptyDataset(err error) bool { return hasCode(err, CodeEmptyDataset) }

// IsInvalidValue reports whether err is a NaN/Infinity validation error.
func IsInvalidValue(err error) bool { return hasCode(err, CodeInvalidValue) }

// IsInsufficientData reports whether err is an insufficient data error.
func IsInsufficientData(err error) bool { return hasCode(err, CodeInsufficientData) }

// IsChunkProcessing reports whether err is a chunk processing error.
func IsChunkProcessing(err error) bool { return hasCode(err, CodeChunkProcessing) }

// IsAccelerationInit reports whether err is an acceleration init error.
func IsAccelerationInit(err error) bool { return hasCode(err, CodeAccelerationInit) }

// IsEngineDisposed reports whether err is an engine disposed error.
func IsEngineDisposed(err error) bool { return hasCode(err, CodeEngineDisposed) }
