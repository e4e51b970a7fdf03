package accel

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/dashlytics/compute/pkg/errors"
)

const wasmPageSize = 64 * 1024

// WasmOptions configures the accelerated backend.
type WasmOptions struct {
	// EnableThreads enables the WebAssembly threads proposal on the runtime.
	EnableThreads bool
}

// WasmBackend executes the reduction kernels inside a wazero-compiled
// WebAssembly module. Calls are serialized: the kernel instance owns a single
// linear memory used as scratch space for every invocation.
type WasmBackend struct {
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory
	sumFn   api.Function
	sumsqFn api.Function
	dotFn   api.Function
	mu      sync.Mutex
}

// NewWasmBackend compiles and instantiates the kernel module. Any failure is
// returned as an AccelerationInitError so callers can fall back to the
// native backend.
func NewWasmBackend(ctx context.Context, opts WasmOptions, logger *logrus.Logger) (*WasmBackend, error) {
	if logger == nil {
		logger = logrus.New()
	}

	cfg := wazero.NewRuntimeConfig()
	if opts.EnableThreads {
		cfg = cfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	compiled, err := runtime.CompileModule(ctx, kernelModule())
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.NewAccelerationInitError(fmt.Errorf("compile kernel module: %w", err))
	}

	module, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("compute_kernel"))
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.NewAccelerationInitError(fmt.Errorf("instantiate kernel module: %w", err))
	}

	backend := &WasmBackend{
		runtime: runtime,
		module:  module,
		memory:  module.Memory(),
		sumFn:   module.ExportedFunction("sum"),
		sumsqFn: module.ExportedFunction("sumsq"),
		dotFn:   module.ExportedFunction("dot"),
	}
	if backend.memory == nil || backend.sumFn == nil || backend.sumsqFn == nil || backend.dotFn == nil {
		runtime.Close(ctx)
		return nil, errors.NewAccelerationInitError(fmt.Errorf("kernel module is missing exports"))
	}

	logger.WithField("backend", backend.Name()).Debug("acceleration backend initialized")
	return backend, nil
}

func (b *WasmBackend) Name() string { return "wasm" }

func (b *WasmBackend) Sum(ctx context.Context, values []float64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writeFloats(0, values); err != nil {
		return 0, err
	}
	return b.callF64(ctx, b.sumFn, 0, uint64(len(values)))
}

func (b *WasmBackend) SumSquaredDiff(ctx context.Context, values []float64, mean float64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writeFloats(0, values); err != nil {
		return 0, err
	}
	return b.callF64(ctx, b.sumsqFn, 0, uint64(len(values)), api.EncodeF64(mean))
}

func (b *WasmBackend) Dot(ctx context.Context, a, bvec []float64) (float64, error) {
	if len(a) != len(bvec) {
		return 0, errors.NewDimensionMismatchError(len(a), len(bvec))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	offsetB := uint32(len(a) * 8)
	if err := b.writeFloats(0, a); err != nil {
		return 0, err
	}
	if err := b.writeFloats(offsetB, bvec); err != nil {
		return 0, err
	}
	return b.callF64(ctx, b.dotFn, 0, uint64(offsetB), uint64(len(a)))
}

func (b *WasmBackend) Close(ctx context.Context) error {
	return b.runtime.Close(ctx)
}

func (b *WasmBackend) callF64(ctx context.Context, fn api.Function, params ...uint64) (float64, error) {
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, fmt.Errorf("kernel call failed: %w", err)
	}
	return math.Float64frombits(results[0]), nil
}

func (b *WasmBackend) writeFloats(offset uint32, values []float64) error {
	if len(values) == 0 {
		return nil
	}

	size := offset + uint32(len(values)*8)
	if err := b.ensureMemory(size); err != nil {
		return err
	}

	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	if !b.memory.Write(offset, buf) {
		return fmt.Errorf("kernel memory write of %d bytes at %d failed", len(buf), offset)
	}
	return nil
}

func (b *WasmBackend) ensureMemory(size uint32) error {
	current := b.memory.Size()
	if current >= size {
		return nil
	}
	delta := (uint64(size-current) + wasmPageSize - 1) / wasmPageSize
	if _, ok := b.memory.Grow(uint32(delta)); !ok {
		return fmt.Errorf("kernel memory grow by %d pages failed", delta)
	}
	return nil
}
