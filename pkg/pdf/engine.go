package pdf

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
)

type (
	// ModuleSource supplies the module image to Load.
	ModuleSource = wasm.ModuleSource

	// FileSource reads the module image from a file.
	FileSource = wasm.FileModuleSource

	// MemorySource supplies the module image from a byte slice.
	MemorySource = wasm.MemoryModuleSource

	// RuntimeConfig tunes the wazero runtime hosting the module.
	RuntimeConfig = wasm.RuntimeConfig
)

// Engine is one loaded and instantiated rendering module. Documents are
// created from an Engine and share its linear memory and allocator, so every
// guest call made through an Engine is serialized behind a single mutex and
// runs its whole allocate, invoke, free sequence without interleaving.
type Engine struct {
	mu sync.Mutex

	// Set when the Engine owns the runtime it was loaded into.
	runtime *wasm.Runtime

	guest    wasm.Guest
	dispatch *wasm.Dispatcher
	view     *wasm.MemoryView
	marshal  *wasm.Marshaller

	// Live documents keyed by guest handle, released on Close.
	docs map[uint32]*Document

	defaultFormat      PageFormat
	defaultOrientation PageOrientation

	closed bool
	logger *zap.Logger
}

// Load compiles and instantiates the module image from source in a new
// runtime. It blocks until the module is ready; the returned Engine owns the
// runtime and must be closed. A nil cfg uses wasm defaults, a nil logger
// disables logging.
func Load(ctx context.Context, logger *zap.Logger, source ModuleSource, cfg *RuntimeConfig) (*Engine, error) {
	return load(ctx, logger, source, cfg, nil)
}

// LoadFile is Load for a module image on disk.
func LoadFile(ctx context.Context, logger *zap.Logger, path string, cfg *RuntimeConfig) (*Engine, error) {
	return load(ctx, logger, &FileSource{Path: path}, cfg, nil)
}

func load(ctx context.Context, logger *zap.Logger, source ModuleSource, cfg *RuntimeConfig, extraExports []string) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	runtime, err := wasm.NewRuntime(ctx, logger, cfg)
	if err != nil {
		return nil, &ModuleLoadError{ModuleName: source.Name(), Stage: wasm.StageInstantiate, Err: err}
	}

	compiled, err := wasm.NewModuleLoader(runtime, logger).LoadModule(ctx, source)
	if err != nil {
		return nil, closeAfterFailure(ctx, logger, runtime.Close, err)
	}

	required := append(append([]string(nil), abi.RequiredExports...), extraExports...)
	instance, err := wasm.NewInstanceManager(runtime, logger).Instantiate(ctx, compiled, &wasm.InstanceConfig{
		RequiredExports: required,
	})
	if err != nil {
		return nil, closeAfterFailure(ctx, logger, runtime.Close, err)
	}

	e := newEngine(instance, logger)
	e.runtime = runtime
	return e, nil
}

// closeAfterFailure closes the runtime of a failed load. A close failure is
// logged and joined to err.
func closeAfterFailure(ctx context.Context, logger *zap.Logger, closeRuntime func(context.Context) error, err error) error {
	if cerr := closeRuntime(ctx); cerr != nil {
		logger.Warn("Failed to close runtime after load failure", zap.Error(cerr))
		return errors.Join(err, cerr)
	}
	return err
}

// NewEngineWithGuest wraps an already instantiated guest. The caller keeps
// ownership of whatever backs the guest; Close only releases documents.
func NewEngineWithGuest(guest wasm.Guest, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, name := range abi.RequiredExports {
		if guest.Function(name) == nil {
			return nil, &ModuleLoadError{
				ModuleName: guest.Name(),
				Stage:      wasm.StageExports,
				Err:        &FunctionNotFoundError{ModuleName: guest.Name(), FunctionName: name},
			}
		}
	}
	if guest.Memory() == nil {
		return nil, &ModuleLoadError{
			ModuleName: guest.Name(),
			Stage:      wasm.StageExports,
			Err:        &wasm.MissingMemoryError{ModuleName: guest.Name()},
		}
	}
	return newEngine(guest, logger), nil
}

func newEngine(guest wasm.Guest, logger *zap.Logger) *Engine {
	dispatch := wasm.NewDispatcher(guest, logger)
	view := wasm.NewMemoryView(guest)
	return &Engine{
		guest:              guest,
		dispatch:           dispatch,
		view:               view,
		marshal:            wasm.NewMarshaller(dispatch, view, logger),
		docs:               make(map[uint32]*Document),
		defaultFormat:      PageFormatA4,
		defaultOrientation: PageOrientationPortrait,
		logger:             logger.With(zap.String("component", "pdf-engine"), zap.String("module", guest.Name())),
	}
}

// Version returns the guest's version string.
func (e *Engine) Version(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", ErrEngineClosed
	}
	return e.version(ctx)
}

// version reads the guest's version string. The caller holds e.mu.
func (e *Engine) version(ctx context.Context) (string, error) {
	ptr, err := e.dispatch.Unguarded(ctx, abi.ExportGetVersion)
	if err != nil {
		return "", err
	}
	raw, err := e.view.ReadCString(ptr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// NewDocument creates a document in the guest and returns its host handle.
func (e *Engine) NewDocument(ctx context.Context, format PageFormat, orientation PageOrientation) (*Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}

	handle, err := e.dispatch.Status(ctx, abi.ExportCreateEncoder, int32(format), int32(orientation))
	if err != nil {
		return nil, err
	}

	doc := &Document{
		engine: e,
		handle: uint32(handle),
		state:  StateCreated,
		logger: e.logger.With(zap.String("component", "pdf-document"), zap.Uint32("handle", uint32(handle))),
	}
	e.docs[doc.handle] = doc

	e.logger.Debug("Document created",
		zap.Uint32("handle", doc.handle),
		zap.Stringer("format", format),
		zap.Stringer("orientation", orientation),
	)
	return doc, nil
}

// NewDefaultDocument creates a document using the engine's default page
// format and orientation (A4 portrait unless configured otherwise).
func (e *Engine) NewDefaultDocument(ctx context.Context) (*Document, error) {
	e.mu.Lock()
	format, orientation := e.defaultFormat, e.defaultOrientation
	e.mu.Unlock()
	return e.NewDocument(ctx, format, orientation)
}

// SetDefaults changes the page settings used by NewDefaultDocument.
func (e *Engine) SetDefaults(format PageFormat, orientation PageOrientation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaultFormat, e.defaultOrientation = format, orientation
}

// Documents returns the number of documents not yet released.
func (e *Engine) Documents() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.docs)
}

// Close releases every live document, then shuts down the instance and the
// runtime if the Engine owns them. Safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	var errs []error
	for _, doc := range e.docs {
		e.logger.Warn("Releasing document left open at close", zap.Uint32("handle", doc.handle))
		errs = append(errs, doc.releaseLocked(ctx))
	}

	if e.runtime != nil {
		errs = append(errs, e.runtime.Close(ctx))
	}

	e.closed = true
	e.logger.Info("Engine closed")
	return errors.Join(errs...)
}
