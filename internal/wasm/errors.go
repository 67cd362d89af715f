package wasm

import (
	"fmt"
)

// Load stages reported by ModuleLoadError.
const (
	StageRead        = "read"
	StageCompile     = "compile"
	StageInstantiate = "instantiate"
	StageExports     = "exports"
)

// ModuleLoadError occurs when a module image cannot be turned into a usable instance.
type ModuleLoadError struct {
	ModuleName string
	Stage      string
	Err        error
}

func (e *ModuleLoadError) Error() string {
	return fmt.Sprintf("failed to load Wasm module '%s' (stage: %s): %v", e.ModuleName, e.Stage, e.Err)
}

func (e *ModuleLoadError) Unwrap() error {
	return e.Err
}

// CompilationError occurs when Wasm module compilation fails
type CompilationError struct {
	ModuleName string
	Err        error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile Wasm module '%s': %v", e.ModuleName, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InstantiationError occurs when module instantiation fails
type InstantiationError struct {
	ModuleName string
	InstanceID string
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate module '%s' (instance: %s): %v",
		e.ModuleName, e.InstanceID, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// FunctionNotFoundError occurs when an exported function is missing
type FunctionNotFoundError struct {
	ModuleName   string
	FunctionName string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function '%s' not found in module '%s'",
		e.FunctionName, e.ModuleName)
}

// MissingMemoryError occurs when the module defines no linear memory.
type MissingMemoryError struct {
	ModuleName string
}

func (e *MissingMemoryError) Error() string {
	return fmt.Sprintf("module '%s' has no linear memory", e.ModuleName)
}

// ArityError occurs when a call supplies a different number of arguments
// than the export declares.
type ArityError struct {
	FunctionName string
	Want         int
	Got          int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("function '%s' takes %d arguments, got %d", e.FunctionName, e.Want, e.Got)
}

// ArgumentTypeError occurs when a host value cannot be lowered to the declared parameter type.
type ArgumentTypeError struct {
	FunctionName string
	Index        int
	Value        any
}

func (e *ArgumentTypeError) Error() string {
	return fmt.Sprintf("function '%s': cannot lower argument %d of type %T", e.FunctionName, e.Index, e.Value)
}

// CallError occurs when a guest export reports failure, either through the
// status sentinel or by trapping.
type CallError struct {
	Export string
	Code   int32
	Err    error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call to '%s' failed: %v", e.Export, e.Err)
	}
	return fmt.Sprintf("call to '%s' failed with status %d", e.Export, e.Code)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// AllocationError occurs when the guest allocator cannot satisfy a request.
type AllocationError struct {
	Size uint32
	Err  error
}

func (e *AllocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("guest allocation of %d bytes failed: %v", e.Size, e.Err)
	}
	return fmt.Sprintf("guest allocation of %d bytes returned null", e.Size)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// MemoryAccessError occurs when memory operations fail
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
	Err       error
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access failed (op=%s, addr=%d, len=%d): %v",
		e.Operation, e.Address, e.Length, e.Err)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}
