// Package capability probes the runtime for WebAssembly acceleration
// support. Each feature is detected by compiling a minimal module that uses
// one instruction from the corresponding proposal; a feature is available
// exactly when its probe module compiles.
package capability

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/dashlytics/compute/pkg/models"
)

var (
	// Minimal valid module: magic and version only.
	probeBase = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	// () -> () function executing "v128.const 0; drop".
	probeSIMD = []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x0A, 0x17, 0x01, 0x15, 0x00,
		0xFD, 0x0C, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x1A, 0x0B,
	}

	// Shared memory plus an "i32.atomic.load" from offset 0.
	probeThreads = []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x05, 0x04, 0x01, 0x03, 0x01, 0x01,
		0x0A, 0x0B, 0x01, 0x09, 0x00,
		0x41, 0x00, 0xFE, 0x10, 0x02, 0x00, 0x1A, 0x0B,
	}

	// Plain memory plus a zero-length "memory.copy".
	probeBulkMemory = []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x05, 0x03, 0x01, 0x00, 0x01,
		0x0A, 0x0E, 0x01, 0x0C, 0x00,
		0x41, 0x00, 0x41, 0x00, 0x41, 0x00, 0xFC, 0x0A, 0x00, 0x00, 0x0B,
	}

	// "ref.null func; drop".
	probeReferenceTypes = []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x0A, 0x07, 0x01, 0x05, 0x00,
		0xD0, 0x70, 0x1A, 0x0B,
	}

	// Empty "try/catch_all" block from the exception handling proposal.
	probeExceptions = []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
		0x03, 0x02, 0x01, 0x00,
		0x0A, 0x08, 0x01, 0x06, 0x00,
		0x06, 0x40, 0x19, 0x0B, 0x0B,
	}
)

// Detector caches a process-lifetime capability probe.
type Detector struct {
	logger *logrus.Logger
	mu     sync.Mutex
	cached *models.Capabilities
}

// NewDetector creates a capability detector.
func NewDetector(logger *logrus.Logger) *Detector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Detector{logger: logger}
}

// Detect probes the runtime for acceleration support. It never fails: any
// probe error degrades to an unsupported or reduced capability set. The
// result is cached until Invalidate is called.
func (d *Detector) Detect(ctx context.Context) models.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil {
		return *d.cached
	}

	caps := d.probe(ctx)
	d.cached = &caps

	d.logger.WithFields(logrus.Fields{
		"supported":   caps.IsSupported,
		"simd":        caps.HasSIMD,
		"threads":     caps.HasThreads,
		"bulk_memory": caps.HasBulkMemory,
		"performance": caps.Performance,
	}).Debug("runtime capabilities detected")

	return caps
}

// Invalidate drops the cached probe so the next Detect call re-probes.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
}

func (d *Detector) probe(ctx context.Context) (caps models.Capabilities) {
	caps.Performance = models.PerformanceLow

	defer func() {
		if r := recover(); r != nil {
			d.logger.WithField("panic", r).Warn("capability probe panicked")
			caps = models.Capabilities{Performance: models.PerformanceLow}
		}
	}()

	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	caps.IsSupported = compiles(ctx, rt, probeBase)
	if !caps.IsSupported {
		return caps
	}

	caps.HasSIMD = compiles(ctx, rt, probeSIMD)
	caps.HasBulkMemory = compiles(ctx, rt, probeBulkMemory)
	caps.HasReferenceTypes = compiles(ctx, rt, probeReferenceTypes)
	caps.HasExceptionHandling = compiles(ctx, rt, probeExceptions)

	// The threads proposal needs an opted-in runtime.
	threadsRT := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(api.CoreFeaturesV2|experimental.CoreFeaturesThreads))
	defer threadsRT.Close(ctx)
	caps.HasThreads = compiles(ctx, threadsRT, probeThreads)

	caps.Performance = classifyPerformance(caps)
	return caps
}

func compiles(ctx context.Context, rt wazero.Runtime, module []byte) bool {
	compiled, err := rt.CompileModule(ctx, module)
	if err != nil {
		return false
	}
	compiled.Close(ctx)
	return true
}

func classifyPerformance(caps models.Capabilities) models.PerformanceTier {
	cpus := runtime.NumCPU()
	switch {
	case caps.HasSIMD && caps.HasBulkMemory && cpus >= 8:
		return models.PerformanceHigh
	case caps.HasSIMD || cpus >= 4:
		return models.PerformanceMedium
	default:
		return models.PerformanceLow
	}
}
