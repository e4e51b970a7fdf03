package processor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashlytics/compute/pkg/errors"
)

func intRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func sumChunk(chunk []int, _ int) (int, error) {
	sum := 0
	for _, v := range chunk {
		sum += v
	}
	return sum, nil
}

func TestProcessEmptyDataset(t *testing.T) {
	var percents []int
	results, err := Process(context.Background(), []int{}, sumChunk, Options{
		OnProgress: func(p int) { percents = append(percents, p) },
	})

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []int{100}, percents)
}

func TestProcessChunkCount(t *testing.T) {
	tests := []struct {
		length    int
		chunkSize int
		chunks    int
	}{
		{10, 3, 4},
		{10, 10, 1},
		{10, 5, 2},
		{1, 100, 1},
		{100, 1, 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("len%d_chunk%d", tt.length, tt.chunkSize), func(t *testing.T) {
			results, err := Process(context.Background(), intRange(tt.length), sumChunk, Options{
				ChunkSize: tt.chunkSize,
			})
			require.NoError(t, err)
			assert.Len(t, results, tt.chunks)
		})
	}
}

func TestProcessPreservesChunkOrder(t *testing.T) {
	fn := func(chunk []int, index int) (int, error) {
		return index, nil
	}

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%t", parallel), func(t *testing.T) {
			results, err := Process(context.Background(), intRange(97), fn, Options{
				ChunkSize:  10,
				Parallel:   parallel,
				MaxWorkers: 4,
			})
			require.NoError(t, err)
			require.Len(t, results, 10)
			for i, r := range results {
				assert.Equal(t, i, r)
			}
		})
	}
}

func TestProcessSumIdentity(t *testing.T) {
	data := intRange(1000)
	want := 999 * 1000 / 2

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%t", parallel), func(t *testing.T) {
			results, err := Process(context.Background(), data, sumChunk, Options{
				ChunkSize: 33,
				Parallel:  parallel,
			})
			require.NoError(t, err)

			total := 0
			for _, r := range results {
				total += r
			}
			assert.Equal(t, want, total)
		})
	}
}

func TestProcessFailFast(t *testing.T) {
	fn := func(chunk []int, index int) (int, error) {
		if index == 3 {
			return 0, fmt.Errorf("chunk 3 exploded")
		}
		return 0, nil
	}

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%t", parallel), func(t *testing.T) {
			results, err := Process(context.Background(), intRange(100), fn, Options{
				ChunkSize: 10,
				Parallel:  parallel,
			})

			require.Error(t, err)
			assert.Nil(t, results)
			assert.True(t, errors.IsChunkProcessing(err))
		})
	}
}

func TestProcessSequentialFailureReportsChunkIndex(t *testing.T) {
	fn := func(chunk []int, index int) (int, error) {
		if index == 3 {
			return 0, fmt.Errorf("boom")
		}
		return 0, nil
	}

	_, err := Process(context.Background(), intRange(100), fn, Options{ChunkSize: 10})
	require.Error(t, err)

	idx, ok := errors.ChunkIndex(err)
	require.True(t, ok)
	assert.Equal(t, 3, idx)
}

func TestProcessRecoversPanics(t *testing.T) {
	fn := func(chunk []int, index int) (int, error) {
		if index == 1 {
			panic("bad chunk")
		}
		return 0, nil
	}

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%t", parallel), func(t *testing.T) {
			_, err := Process(context.Background(), intRange(50), fn, Options{
				ChunkSize: 10,
				Parallel:  parallel,
			})
			require.Error(t, err)
			assert.True(t, errors.IsChunkProcessing(err))
			assert.Contains(t, err.Error(), "chunk")
		})
	}
}

func TestProgressIsMonotonicAndReaches100(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%t", parallel), func(t *testing.T) {
			var mu sync.Mutex
			var percents []int

			_, err := Process(context.Background(), intRange(1000), sumChunk, Options{
				ChunkSize:  37,
				Parallel:   parallel,
				MaxWorkers: 8,
				OnProgress: func(p int) {
					mu.Lock()
					percents = append(percents, p)
					mu.Unlock()
				},
			})
			require.NoError(t, err)

			require.NotEmpty(t, percents)
			for i := 1; i < len(percents); i++ {
				assert.GreaterOrEqual(t, percents[i], percents[i-1])
			}
			assert.Equal(t, 100, percents[len(percents)-1])
		})
	}
}

func TestNoProgressAfterFailure(t *testing.T) {
	fn := func(chunk []int, index int) (int, error) {
		if index == 2 {
			return 0, fmt.Errorf("boom")
		}
		return 0, nil
	}

	var mu sync.Mutex
	var percents []int

	_, err := Process(context.Background(), intRange(100), fn, Options{
		ChunkSize: 10,
		Parallel:  true,
		OnProgress: func(p int) {
			mu.Lock()
			percents = append(percents, p)
			mu.Unlock()
		},
	})
	require.Error(t, err)

	for _, p := range percents {
		assert.Less(t, p, 100)
	}
}

func TestProcessHonorsContextCancellation(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%t", parallel), func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := Process(ctx, intRange(100), sumChunk, Options{
				ChunkSize: 10,
				Parallel:  parallel,
			})
			require.Error(t, err)
			assert.True(t, errors.IsChunkProcessing(err))

			// Cancellation is not a chunk failure: no chunk index is blamed.
			idx, ok := errors.ChunkIndex(err)
			require.True(t, ok)
			assert.Equal(t, -1, idx)
		})
	}
}

func TestProcessParallelUsesMultipleWorkers(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	barrier := make(chan struct{})
	released := false

	fn := func(chunk []int, index int) (int, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		// Later chunks can drive inFlight back to 2; release only once.
		if inFlight == 2 && !released {
			released = true
			close(barrier)
		}
		mu.Unlock()

		<-barrier

		mu.Lock()
		inFlight--
		mu.Unlock()
		return 0, nil
	}

	_, err := Process(context.Background(), intRange(40), fn, Options{
		ChunkSize:  10,
		Parallel:   true,
		MaxWorkers: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, maxInFlight)
}

func TestProcessTransformsChunks(t *testing.T) {
	fn := func(chunk []int, _ int) ([]string, error) {
		out := make([]string, len(chunk))
		for i, v := range chunk {
			out[i] = fmt.Sprintf("v%d", v)
		}
		return out, nil
	}

	results, err := Process(context.Background(), []int{1, 2, 3, 4, 5}, fn, Options{ChunkSize: 2})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"v1", "v2"}, results[0])
	assert.Equal(t, []string{"v5"}, results[2])
}
