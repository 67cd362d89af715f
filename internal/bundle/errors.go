package bundle

import (
	"fmt"
)

// ManifestNotFoundError occurs when a bundle directory has no readable manifest.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("bundle manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when the manifest is not valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse bundle manifest '%s': %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError reports the first manifest field that fails validation.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid bundle manifest '%s': %s: %s", e.Path, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid bundle manifest '%s': %s", e.Path, e.Message)
}

// WasmNotFoundError occurs when the module file named by wasm.file does not exist.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("module file '%s' named by '%s' does not exist", e.WasmFile, e.ManifestPath)
}

// BundleLoadError occurs when the module image of a valid bundle cannot be read.
type BundleLoadError struct {
	BundleName string
	Err        error
}

func (e *BundleLoadError) Error() string {
	return fmt.Sprintf("failed to load bundle '%s': %v", e.BundleName, e.Err)
}

func (e *BundleLoadError) Unwrap() error {
	return e.Err
}
