package wasm

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// MaxMemoryPages is the largest memory a 32-bit module can address.
const MaxMemoryPages = 65536

// ErrRuntimeClosed is returned when a closed runtime is asked to compile.
var ErrRuntimeClosed = errors.New("wasm runtime is closed")

// Runtime owns one wazero runtime together with the modules compiled in it
// and the instances created from them. Nothing in this package keeps
// process-wide state: each Runtime is a value owned by whoever created it.
type Runtime struct {
	runtime wazero.Runtime

	// On-disk compilation cache, nil when CacheDir is empty.
	cache wazero.CompilationCache

	config *RuntimeConfig
	logger *zap.Logger

	mu sync.Mutex
	// Compiled modules by source name. An entry is reused only while the
	// image digest matches.
	modules map[string]*CompiledModule
	// Live instances by ID, closed on shutdown.
	instances map[string]*Instance
	closed    bool
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Memory limit for each module in 64KB pages. Zero leaves wazero's default.
	MemoryPages uint32

	// Keep DWARF custom sections so guest traps carry source positions.
	DebugEnabled bool

	// Directory for wazero's persistent compilation cache. Empty keeps
	// compiled code in memory only.
	CacheDir string
}

// CompiledModule is a validated module image ready to instantiate.
type CompiledModule struct {
	Module wazero.CompiledModule

	Name      string
	Digest    [sha256.Size]byte
	SizeBytes int64

	// Function exports, sorted.
	Exports []string

	CompiledAt time.Time
}

// HasExport reports whether the module exports a function named name.
func (c *CompiledModule) HasExport(name string) bool {
	i := sort.SearchStrings(c.Exports, name)
	return i < len(c.Exports) && c.Exports[i] == name
}

// NewRuntime creates a wazero runtime configured by config, or by
// DefaultRuntimeConfig when config is nil.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = DefaultRuntimeConfig()
	}
	if config.MemoryPages > MaxMemoryPages {
		return nil, fmt.Errorf("memory limit of %d pages exceeds the maximum of %d", config.MemoryPages, MaxMemoryPages)
	}

	rc := wazero.NewRuntimeConfig().
		WithDebugInfoEnabled(config.DebugEnabled)
	if config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryPages)
	}

	var cache wazero.CompilationCache
	if config.CacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache %s: %w", config.CacheDir, err)
		}
		cache = c
		rc = rc.WithCompilationCache(cache)
	}

	runtime := &Runtime{
		runtime:   wazero.NewRuntimeWithConfig(ctx, rc),
		cache:     cache,
		config:    config,
		logger:    logger.With(zap.String("component", "wasm-runtime")),
		modules:   make(map[string]*CompiledModule),
		instances: make(map[string]*Instance),
	}

	runtime.logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
	)

	return runtime, nil
}

// DefaultRuntimeConfig returns a 16MB memory limit with no disk cache.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:  256,
		DebugEnabled: false,
		CacheDir:     "",
	}
}

// Close closes every tracked instance, then the runtime and its cache.
// Safe to call more than once.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	instances := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.instances = make(map[string]*Instance)
	r.modules = make(map[string]*CompiledModule)
	r.mu.Unlock()

	r.logger.Info("Shutting down Wasm runtime", zap.Int("instances", len(instances)))

	var errs []error
	for _, inst := range instances {
		if err := inst.Close(ctx); err != nil {
			r.logger.Warn("Failed to close instance",
				zap.String("instance_id", inst.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}

	errs = append(errs, r.runtime.Close(ctx))
	if r.cache != nil {
		errs = append(errs, r.cache.Close(ctx))
	}

	r.logger.Info("Wasm runtime shutdown complete")
	return errors.Join(errs...)
}

// compiledModule returns the cached module for name if its digest matches.
func (r *Runtime) compiledModule(name string, digest [sha256.Size]byte) (*CompiledModule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod, ok := r.modules[name]
	if !ok || mod.Digest != digest {
		return nil, false
	}
	return mod, true
}

func (r *Runtime) storeCompiledModule(module *CompiledModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[module.Name] = module
}

// GetInstance returns a tracked instance.
func (r *Runtime) GetInstance(instanceID string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[instanceID]
	return inst, ok
}

// Instances returns the number of tracked instances.
func (r *Runtime) Instances() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

func (r *Runtime) trackInstance(inst *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRuntimeClosed
	}
	r.instances[inst.ID] = inst
	return nil
}

func (r *Runtime) untrackInstance(instanceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, instanceID)
}

// IsClosed returns whether the runtime has been closed.
func (r *Runtime) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
