package pdf

import (
	"errors"
	"fmt"

	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
)

// Errors raised at the module boundary.
type (
	// ModuleLoadError reports that the module image could not be read,
	// compiled, instantiated, or lacks a required export.
	ModuleLoadError = wasm.ModuleLoadError

	// CallError reports that a guest export returned the -1 status sentinel
	// or trapped. Export names the export that failed.
	CallError = wasm.CallError

	// AllocationError reports that the guest allocator returned null.
	AllocationError = wasm.AllocationError

	// FunctionNotFoundError reports a missing export.
	FunctionNotFoundError = wasm.FunctionNotFoundError

	// MemoryAccessError reports an out-of-range or unterminated read of guest memory.
	MemoryAccessError = wasm.MemoryAccessError
)

var (
	// ErrDocumentReleased is returned by every operation on a released document.
	ErrDocumentReleased = errors.New("document has been released")

	// ErrEngineClosed is returned by every operation after Engine.Close.
	ErrEngineClosed = errors.New("engine is closed")
)

// InvalidTransitionError occurs when an operation is not allowed in the
// document's current state. It is detected on the host; the guest is never called.
type InvalidTransitionError struct {
	Operation string
	State     State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("operation '%s' is not valid in state %s", e.Operation, e.State)
}

// RenderError occurs when the guest's render export returns the null pointer.
type RenderError struct {
	Handle uint32
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering PDF failed (handle: %d): %v", e.Handle, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
