package pdf

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/woxQAQ/pdfnano-wasm/internal/bundle"
	"github.com/woxQAQ/pdfnano-wasm/internal/config"
	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
)

// LoadFromConfig reads the configuration file at configPath (defaults only
// when empty) and loads the module it names. module_path may be a module file
// or a bundle directory. A nil logger is built from log_level. The configured
// page settings become the engine's document defaults.
func LoadFromConfig(ctx context.Context, logger *zap.Logger, configPath string) (*Engine, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger, err = cfg.NewLogger()
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	format, err := ParsePageFormat(cfg.Document.PageFormat)
	if err != nil {
		return nil, err
	}
	orientation, err := ParsePageOrientation(cfg.Document.Orientation)
	if err != nil {
		return nil, err
	}

	var e *Engine
	if bundle.IsBundle(cfg.ModulePath) {
		e, err = LoadBundle(ctx, logger, cfg.ModulePath, cfg.RuntimeConfig())
	} else {
		e, err = LoadFile(ctx, logger, cfg.ModulePath, cfg.RuntimeConfig())
	}
	if err != nil {
		return nil, err
	}

	e.SetDefaults(format, orientation)
	return e, nil
}

// LoadBundle loads the module of the bundle in dir. Exports listed in the
// manifest are required in addition to the document export table.
func LoadBundle(ctx context.Context, logger *zap.Logger, dir string, cfg *RuntimeConfig) (*Engine, error) {
	b, err := bundle.NewLoader(logger).Load(dir)
	if err != nil {
		return nil, &ModuleLoadError{ModuleName: dir, Stage: wasm.StageRead, Err: err}
	}
	return load(ctx, logger, b.Source(), cfg, b.Manifest.Exports)
}
