package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest inside a bundle directory.
const ManifestFile = "manifest.yaml"

// Manifest represents the bundle manifest.yaml structure.
type Manifest struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Description string     `yaml:"description"`
	Wasm        WasmConfig `yaml:"wasm"`
	// Exports the module provides beyond the document export table.
	Exports []string `yaml:"exports"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
	Size int    `yaml:"size"` // KB, upper bound on the module file
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "name",
			Message: "name is required",
		}
	}

	if m.Version == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "version",
			Message: "version is required",
		}
	}

	if m.Wasm.File == "" {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: "wasm.file is required",
		}
	}

	if m.Wasm.Size < 0 {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.size",
			Message: fmt.Sprintf("size must not be negative, got %d", m.Wasm.Size),
		}
	}

	seen := make(map[string]bool, len(m.Exports))
	for _, name := range m.Exports {
		if name == "" {
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   "exports",
				Message: "export names must not be empty",
			}
		}
		if seen[name] {
			return &ManifestValidationError{
				Path:    m.Path(),
				Field:   "exports",
				Message: fmt.Sprintf("duplicate export: %s", name),
			}
		}
		seen[name] = true
	}

	info, err := os.Stat(m.WasmPath())
	if os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}
	if err != nil {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.file",
			Message: err.Error(),
		}
	}

	if m.Wasm.Size > 0 && info.Size() > int64(m.Wasm.Size)*1024 {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   "wasm.size",
			Message: fmt.Sprintf("module is %d bytes, larger than the declared %d KB", info.Size(), m.Wasm.Size),
		}
	}

	return nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
