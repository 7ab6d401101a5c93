package audioio

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// SourceFactory creates a Source for a backend.
type SourceFactory func(cfg Config, logger *slog.Logger) (Source, error)

// SinkFactory creates a Sink for a backend.
type SinkFactory func(cfg Config, logger *slog.Logger) (Sink, error)

type backendEntry struct {
	source SourceFactory
	sink   SinkFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Backend]backendEntry)
)

// RegisterBackend makes a backend available to NewSource and NewSink.
// Hardware backends call this from init.
func RegisterBackend(b Backend, source SourceFactory, sink SinkFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[b] = backendEntry{source: source, sink: sink}
}

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	entry, backend, err := lookup(cfg.Backend)
	if err != nil {
		return nil, err
	}

	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	cfg.Backend = backend
	return entry.source(cfg, logger)
}

// NewSink creates a new audio sink with the given configuration.
// If cfg.Backend is BackendAuto, the best available backend is selected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	entry, backend, err := lookup(cfg.Backend)
	if err != nil {
		return nil, err
	}

	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	cfg.Backend = backend
	return entry.sink(cfg, logger)
}

func lookup(b Backend) (backendEntry, Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if b == BackendAuto || b == "" {
		b = detectBestBackend()
	}
	entry, ok := registry[b]
	if !ok {
		return backendEntry{}, b, fmt.Errorf("%w: %s", ErrUnknownBackend, b)
	}
	return entry, b, nil
}

// detectBestBackend prefers any registered hardware backend over mock.
// Callers must hold registryMu.
func detectBestBackend() Backend {
	if _, ok := registry[BackendPortAudio]; ok {
		return BackendPortAudio
	}
	return BackendMock
}

// AvailableBackends returns the registered backends in name order.
func AvailableBackends() []Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	backends := make([]Backend, 0, len(registry))
	for b := range registry {
		backends = append(backends, b)
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i] < backends[j] })
	return backends
}
