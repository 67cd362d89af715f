package wasm

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
)

// InstanceManager creates and manages module instances.
type InstanceManager struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, logger *zap.Logger) *InstanceManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstanceManager{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Instance ID (if empty, one is generated).
	InstanceID string

	// Function exports that must be present. Instantiation fails otherwise.
	RequiredExports []string
}

// Instance represents an instantiated Wasm module.
type Instance struct {
	// wazero module instance.
	module api.Module

	// Instance metadata.
	ID         string
	ModuleName string
	CreatedAt  time.Time

	// Exported functions, resolved once at instantiation.
	exports map[string]Function

	runtime *Runtime
}

var _ Guest = (*Instance)(nil)

// Instantiate creates a new instance from a compiled module and resolves its
// export table. The guest gets no imports: a freestanding module that expects
// WASI or host functions fails here.
func (m *InstanceManager) Instantiate(ctx context.Context, compiled *CompiledModule, config *InstanceConfig) (*Instance, error) {
	if config == nil {
		config = &InstanceConfig{}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = generateInstanceID()
	}

	m.logger.Info("Instantiating Wasm module",
		zap.String("module", compiled.Name),
		zap.String("instance_id", instanceID),
	)

	// Reactor-style module: no _start, _initialize is run below.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions()

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &ModuleLoadError{
			ModuleName: compiled.Name,
			Stage:      StageInstantiate,
			Err: &InstantiationError{
				ModuleName: compiled.Name,
				InstanceID: instanceID,
				Err:        err,
			},
		}
	}

	// Memory() wraps a nil *MemoryInstance in a non-nil interface when the
	// module defines none, so look the export up by name.
	memory := module.ExportedMemory(abi.ExportMemory)
	if memory == nil {
		module.Close(ctx)
		return nil, &ModuleLoadError{
			ModuleName: compiled.Name,
			Stage:      StageExports,
			Err:        &MissingMemoryError{ModuleName: compiled.Name},
		}
	}

	exports, err := m.resolveExports(module, compiled.Name, config.RequiredExports)
	if err != nil {
		module.Close(ctx)
		return nil, err
	}

	if initFn := module.ExportedFunction(abi.ExportInitialize); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			module.Close(ctx)
			return nil, &ModuleLoadError{
				ModuleName: compiled.Name,
				Stage:      StageInstantiate,
				Err: &InstantiationError{
					ModuleName: compiled.Name,
					InstanceID: instanceID,
					Err:        fmt.Errorf("%s failed: %w", abi.ExportInitialize, err),
				},
			}
		}
	}

	instance := &Instance{
		module:     module,
		ID:         instanceID,
		ModuleName: compiled.Name,
		CreatedAt:  time.Now(),
		exports:    exports,
		runtime:    m.runtime,
	}

	if err := m.runtime.trackInstance(instance); err != nil {
		module.Close(ctx)
		return nil, &ModuleLoadError{ModuleName: compiled.Name, Stage: StageInstantiate, Err: err}
	}

	m.logger.Info("Module instantiated successfully",
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
		zap.Uint32("memory_bytes", memory.Size()),
	)

	return instance, nil
}

// Name returns the name of the module this instance was created from.
func (i *Instance) Name() string {
	return i.ModuleName
}

// Memory returns the instance's exported linear memory, or nil. It is looked
// up on every call.
func (i *Instance) Memory() Memory {
	if mem := i.module.ExportedMemory(abi.ExportMemory); mem != nil {
		return mem
	}
	return nil
}

// Function returns a resolved export, or nil.
func (i *Instance) Function(name string) Function {
	if fn, ok := i.exports[name]; ok {
		return fn
	}
	if fn := i.module.ExportedFunction(name); fn != nil {
		return exportedFunction{fn: fn}
	}
	return nil
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	if i.runtime != nil {
		i.runtime.untrackInstance(i.ID)
	}
	return i.module.Close(ctx)
}

// resolveExports looks up every required export once. A missing export is a
// configuration error reported at load time rather than at the first call.
func (m *InstanceManager) resolveExports(module api.Module, moduleName string, required []string) (map[string]Function, error) {
	exports := make(map[string]Function, len(required))

	for _, name := range required {
		fn := module.ExportedFunction(name)
		if fn == nil {
			return nil, &ModuleLoadError{
				ModuleName: moduleName,
				Stage:      StageExports,
				Err: &FunctionNotFoundError{
					ModuleName:   moduleName,
					FunctionName: name,
				},
			}
		}
		exports[name] = exportedFunction{fn: fn}
	}

	return exports, nil
}

var instanceSeq atomic.Uint64

// generateInstanceID generates a unique instance ID.
func generateInstanceID() string {
	return fmt.Sprintf("inst-%d-%d", time.Now().UnixNano(), instanceSeq.Add(1))
}
