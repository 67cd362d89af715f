package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// Guest is the surface of an instantiated module that the binding layer drives.
// Instance implements it on top of wazero; tests substitute an in-process fake.
type Guest interface {
	// Name identifies the guest in logs and errors.
	Name() string

	// Memory returns the guest's linear memory as it is right now. Callers must
	// not hold on to the result (or any slice read from it) across a guest call,
	// since the call may grow the memory.
	Memory() Memory

	// Function returns the named export, or nil when the guest does not export it.
	Function(name string) Function
}

// Memory is the subset of api.Memory the binding layer needs.
type Memory interface {
	Size() uint32
	ReadUint32Le(offset uint32) (uint32, bool)
	Read(offset, byteCount uint32) ([]byte, bool)
	WriteUint16Le(offset uint32, v uint16) bool
	WriteUint32Le(offset uint32, v uint32) bool
	Write(offset uint32, v []byte) bool
}

// Function is a callable guest export with its declared signature.
type Function interface {
	ParamTypes() []api.ValueType
	ResultTypes() []api.ValueType
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

var _ Memory = api.Memory(nil)

// exportedFunction adapts a wazero api.Function to Function.
type exportedFunction struct {
	fn api.Function
}

func (f exportedFunction) ParamTypes() []api.ValueType {
	return f.fn.Definition().ParamTypes()
}

func (f exportedFunction) ResultTypes() []api.ValueType {
	return f.fn.Definition().ResultTypes()
}

func (f exportedFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}
