// Package bundle reads module bundles: a directory holding a manifest.yaml
// and the module image it names.
package bundle

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
)

// Bundle is a parsed manifest together with the module image it references.
type Bundle struct {
	Manifest *Manifest
	Data     []byte
	LoadedAt time.Time
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.Manifest.Name
}

// Version returns the bundle version.
func (b *Bundle) Version() string {
	return b.Manifest.Version
}

// Source returns the module image as a module source named name@version,
// so different versions are compiled and cached separately.
func (b *Bundle) Source() wasm.ModuleSource {
	return &wasm.MemoryModuleSource{
		ModuleName: b.Manifest.Name + "@" + b.Manifest.Version,
		Data:       b.Data,
	}
}

// IsBundle reports whether path is a directory containing a manifest.
func IsBundle(path string) bool {
	info, err := os.Stat(filepath.Join(path, ManifestFile))
	return err == nil && !info.IsDir()
}

// Loader handles loading bundles from disk.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new bundle loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger.With(zap.String("component", "bundle-loader")),
	}
}

// Load reads a single bundle from a directory.
func (l *Loader) Load(dir string) (*Bundle, error) {
	l.logger.Debug("Loading bundle", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(manifest.WasmPath())
	if err != nil {
		return nil, &BundleLoadError{
			BundleName: manifest.Name,
			Err:        err,
		}
	}

	b := &Bundle{
		Manifest: manifest,
		Data:     data,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Bundle loaded",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.Int("size_bytes", len(data)),
		zap.Strings("exports", manifest.Exports),
	)

	return b, nil
}
