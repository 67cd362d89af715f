package wasm

import (
	"context"
	"crypto/sha256"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
)

// ModuleLoader reads module images and compiles them into a Runtime.
type ModuleLoader struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewModuleLoader creates a new module loader.
func NewModuleLoader(runtime *Runtime, logger *zap.Logger) *ModuleLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleLoader{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-loader")),
	}
}

// ModuleSource supplies a module image.
type ModuleSource interface {
	// Bytes returns the module image.
	Bytes() ([]byte, error)

	// Name identifies the image in logs, errors and the compile cache.
	Name() string

	// Size returns the image size in bytes, or 0 if unknown.
	Size() int64
}

// FileModuleSource reads the image from a file.
type FileModuleSource struct {
	Path string
}

func (f *FileModuleSource) Bytes() ([]byte, error) {
	return os.ReadFile(f.Path)
}

func (f *FileModuleSource) Name() string {
	return f.Path
}

func (f *FileModuleSource) Size() int64 {
	info, err := os.Stat(f.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// MemoryModuleSource supplies an image already in memory.
type MemoryModuleSource struct {
	ModuleName string
	Data       []byte
}

func (m *MemoryModuleSource) Bytes() ([]byte, error) {
	return m.Data, nil
}

func (m *MemoryModuleSource) Name() string {
	return m.ModuleName
}

func (m *MemoryModuleSource) Size() int64 {
	return int64(len(m.Data))
}

// LoadModule reads and compiles the image from source. An image already
// compiled under the same name with identical bytes is returned from cache.
func (l *ModuleLoader) LoadModule(ctx context.Context, source ModuleSource) (*CompiledModule, error) {
	name := source.Name()

	if l.runtime.IsClosed() {
		return nil, &ModuleLoadError{ModuleName: name, Stage: StageCompile, Err: ErrRuntimeClosed}
	}

	image, err := source.Bytes()
	if err != nil {
		return nil, &ModuleLoadError{
			ModuleName: name,
			Stage:      StageRead,
			Err:        err,
		}
	}

	digest := sha256.Sum256(image)
	if cached, ok := l.runtime.compiledModule(name, digest); ok {
		l.logger.Debug("Module cache hit", zap.String("module", name))
		return cached, nil
	}

	l.logger.Info("Compiling Wasm module",
		zap.String("module", name),
		zap.Int("size_bytes", len(image)),
	)

	start := time.Now()
	compiled, err := l.runtime.runtime.CompileModule(ctx, image)
	if err != nil {
		return nil, &ModuleLoadError{
			ModuleName: name,
			Stage:      StageCompile,
			Err: &CompilationError{
				ModuleName: name,
				Err:        err,
			},
		}
	}

	exports := make([]string, 0, len(compiled.ExportedFunctions()))
	for export := range compiled.ExportedFunctions() {
		exports = append(exports, export)
	}
	sort.Strings(exports)

	module := &CompiledModule{
		Module:     compiled,
		Name:       name,
		Digest:     digest,
		SizeBytes:  int64(len(image)),
		Exports:    exports,
		CompiledAt: time.Now(),
	}
	l.runtime.storeCompiledModule(module)

	l.logger.Info("Module compiled successfully",
		zap.String("module", name),
		zap.Duration("duration", time.Since(start)),
		zap.Int("exported_functions", len(exports)),
	)

	return module, nil
}

// LoadModuleFromFile loads the image at path.
func (l *ModuleLoader) LoadModuleFromFile(ctx context.Context, path string) (*CompiledModule, error) {
	return l.LoadModule(ctx, &FileModuleSource{Path: path})
}

// LoadModuleFromMemory loads an in-memory image under name.
func (l *ModuleLoader) LoadModuleFromMemory(ctx context.Context, name string, data []byte) (*CompiledModule, error) {
	return l.LoadModule(ctx, &MemoryModuleSource{ModuleName: name, Data: data})
}
