package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dashlytics/compute/pkg/models"
)

// Manager owns a registry of named engines. Construct one per composition
// root and inject it; the process-wide Default is for callers without an
// injection seam.
type Manager struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewManager creates an empty engine registry.
func NewManager(logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	return &Manager{
		logger:  logger,
		engines: make(map[string]*Engine),
	}
}

var (
	defaultManager *Manager
	defaultOnce    sync.Once
)

// Default returns the process-wide manager, created on first use.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager(logrus.StandardLogger())
	})
	return defaultManager
}

// CreateEngine creates, initializes and registers an engine under name.
// It fails if the name is already taken.
func (m *Manager) CreateEngine(ctx context.Context, name string, config models.ComputeConfig) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[name]; exists {
		return nil, fmt.Errorf("engine %q already registered", name)
	}

	eng := New(config, m.logger)
	if err := eng.Initialize(ctx); err != nil {
		return nil, err
	}

	m.engines[name] = eng
	m.logger.WithField("engine", name).Info("engine registered")
	return eng, nil
}

// GetEngine returns the engine registered under name.
func (m *Manager) GetEngine(name string) (*Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[name]
	return eng, ok
}

// GetOrCreateEngine returns the engine registered under name, creating and
// initializing it with config when absent.
func (m *Manager) GetOrCreateEngine(ctx context.Context, name string, config models.ComputeConfig) (*Engine, error) {
	if eng, ok := m.GetEngine(name); ok {
		return eng, nil
	}
	eng, err := m.CreateEngine(ctx, name, config)
	if err != nil {
		if existing, ok := m.GetEngine(name); ok {
			return existing, nil
		}
		return nil, err
	}
	return eng, nil
}

// RemoveEngine disposes the named engine and removes it from the registry.
func (m *Manager) RemoveEngine(ctx context.Context, name string) error {
	m.mu.Lock()
	eng, ok := m.engines[name]
	delete(m.engines, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("engine %q not registered", name)
	}
	return eng.Cleanup(ctx)
}

// Names returns the registered engine names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	return names
}

// Stats returns a per-engine snapshot of the registry.
func (m *Manager) Stats() map[string]models.EngineStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]models.EngineStats, len(m.engines))
	for name, eng := range m.engines {
		stats[name] = eng.Stats()
	}
	return stats
}

// Shutdown disposes every registered engine and empties the registry.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[string]*Engine)
	m.mu.Unlock()

	var firstErr error
	for name, eng := range engines {
		if err := eng.Cleanup(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("cleanup of engine %q: %w", name, err)
		}
	}
	return firstErr
}
