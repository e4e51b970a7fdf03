// Package processor splits large datasets into ordered chunks and drives a
// caller-supplied per-chunk function either sequentially or across a bounded
// pool of workers. The first chunk failure aborts the whole operation and
// discards any partial results.
package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dashlytics/compute/pkg/errors"
)

// DefaultChunkSize is used when options leave the chunk size unset.
const DefaultChunkSize = 1000

// DefaultMaxWorkers bounds parallel chunk dispatch when unset.
const DefaultMaxWorkers = 4

// noChunk marks a ChunkProcessingError caused by cancellation rather than a
// specific chunk failure.
const noChunk = -1

// ChunkFunc processes one chunk. index is the ascending chunk index
// starting at 0.
type ChunkFunc[T, U any] func(chunk []T, index int) (U, error)

// Options controls a single chunked operation.
type Options struct {
	ChunkSize  int
	Parallel   bool
	MaxWorkers int
	// OnProgress receives a monotonically non-decreasing percentage that
	// reaches exactly 100 on success. It is never invoked after a failure.
	OnProgress func(percent int)
	Logger     *logrus.Logger
}

func (o Options) normalized() Options {
	if o.ChunkSize < 1 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.MaxWorkers < 1 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	return o
}

// Process splits data into ceil(len/chunkSize) chunks and applies fn to
// each. Results are returned in chunk-index order regardless of completion
// order. On any chunk failure the operation returns a ChunkProcessingError
// wrapping the first failure and no results.
func Process[T, U any](ctx context.Context, data []T, fn ChunkFunc[T, U], opts Options) ([]U, error) {
	opts = opts.normalized()

	bounds := chunkBounds(len(data), opts.ChunkSize)
	if len(bounds) == 0 {
		reportProgress(opts.OnProgress, 100)
		return []U{}, nil
	}

	if opts.Parallel && opts.MaxWorkers > 1 && len(bounds) > 1 {
		return processParallel(ctx, data, fn, bounds, opts)
	}
	return processSequential(ctx, data, fn, bounds, opts)
}

type bound struct{ start, end int }

func chunkBounds(length, chunkSize int) []bound {
	if length == 0 {
		return nil
	}
	count := (length + chunkSize - 1) / chunkSize
	bounds := make([]bound, 0, count)
	for start := 0; start < length; start += chunkSize {
		end := start + chunkSize
		if end > length {
			end = length
		}
		bounds = append(bounds, bound{start, end})
	}
	return bounds
}

func processSequential[T, U any](ctx context.Context, data []T, fn ChunkFunc[T, U], bounds []bound, opts Options) ([]U, error) {
	results := make([]U, len(bounds))
	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewChunkProcessingError(noChunk, err)
		}

		result, err := runChunk(fn, data[b.start:b.end], i)
		if err != nil {
			return nil, errors.NewChunkProcessingError(i, err)
		}
		results[i] = result
		reportProgress(opts.OnProgress, (i+1)*100/len(bounds))
	}
	return results, nil
}

func processParallel[T, U any](ctx context.Context, data []T, fn ChunkFunc[T, U], bounds []bound, opts Options) ([]U, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		firstErr  error
		completed int
	)

	results := make([]U, len(bounds))
	sem := make(chan struct{}, opts.MaxWorkers)

	for i, b := range bounds {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(index int, chunk []T) {
				defer wg.Done()
				defer func() { <-sem }()

				if ctx.Err() != nil {
					return
				}

				result, err := runChunk(fn, chunk, index)

				mu.Lock()
				defer mu.Unlock()
				if firstErr != nil {
					return
				}
				if err != nil {
					firstErr = errors.NewChunkProcessingError(index, err)
					cancel()
					return
				}
				results[index] = result
				completed++
				reportProgress(opts.OnProgress, completed*100/len(bounds))
			}(i, data[b.start:b.end])
		}
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewChunkProcessingError(noChunk, err)
	}
	return results, nil
}

// runChunk invokes fn, converting a panic into an error so one bad chunk
// cannot take down the worker pool.
func runChunk[T, U any](fn ChunkFunc[T, U], chunk []T, index int) (result U, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chunk processor panicked: %v", r)
		}
	}()
	return fn(chunk, index)
}

func reportProgress(onProgress func(int), percent int) {
	if onProgress != nil {
		onProgress(percent)
	}
}
