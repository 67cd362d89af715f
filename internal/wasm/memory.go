package wasm

import (
	"bytes"
	"errors"
)

var (
	errOutOfRange   = errors.New("out of range")
	errUnterminated = errors.New("no zero terminator before end of memory")
	errNoMemory     = errors.New("guest has no linear memory")
)

// MemoryView provides memory operations for Wasm module interaction.
//
// The guest's linear memory can grow during any call into the guest, which
// invalidates slices previously returned by Read. MemoryView therefore holds
// only the guest and asks it for the current memory on every operation, and
// every read it returns is a copy owned by the host.
//
// Nothing write-protects guest memory: by convention only the Marshaller writes.
type MemoryView struct {
	guest Guest
}

// NewMemoryView creates a view over the guest's linear memory.
func NewMemoryView(guest Guest) *MemoryView {
	return &MemoryView{guest: guest}
}

// Current returns the guest's live linear memory.
func (m *MemoryView) Current() (Memory, error) {
	mem := m.guest.Memory()
	if mem == nil {
		return nil, errNoMemory
	}
	return mem, nil
}

// ReadCString reads the bytes starting at ptr up to, not including, the first
// zero byte. The scan is bounded only by the end of linear memory.
func (m *MemoryView) ReadCString(ptr uint32) ([]byte, error) {
	mem, err := m.Current()
	if err != nil {
		return nil, &MemoryAccessError{Operation: "read_cstring", Address: ptr, Err: err}
	}

	size := mem.Size()
	if ptr >= size {
		return nil, &MemoryAccessError{Operation: "read_cstring", Address: ptr, Err: errOutOfRange}
	}

	buf, ok := mem.Read(ptr, size-ptr)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read_cstring", Address: ptr, Length: size - ptr, Err: errOutOfRange}
	}

	end := bytes.IndexByte(buf, 0)
	if end < 0 {
		return nil, &MemoryAccessError{Operation: "read_cstring", Address: ptr, Length: size - ptr, Err: errUnterminated}
	}

	out := make([]byte, end)
	copy(out, buf[:end])
	return out, nil
}

// ReadBytes reads raw bytes from Wasm memory into a host-owned slice.
func (m *MemoryView) ReadBytes(ptr uint32, length uint32) ([]byte, error) {
	mem, err := m.Current()
	if err != nil {
		return nil, &MemoryAccessError{Operation: "read", Address: ptr, Length: length, Err: err}
	}
	buf, ok := mem.Read(ptr, length)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: ptr, Length: length, Err: errOutOfRange}
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// WriteBytes copies data into guest memory at ptr.
func (m *MemoryView) WriteBytes(ptr uint32, data []byte) error {
	mem, err := m.Current()
	if err != nil {
		return &MemoryAccessError{Operation: "write", Address: ptr, Length: uint32(len(data)), Err: err}
	}
	if !mem.Write(ptr, data) {
		return &MemoryAccessError{Operation: "write", Address: ptr, Length: uint32(len(data)), Err: errOutOfRange}
	}
	return nil
}

// WriteUint16Le writes v little-endian at ptr.
func (m *MemoryView) WriteUint16Le(ptr uint32, v uint16) error {
	mem, err := m.Current()
	if err != nil {
		return &MemoryAccessError{Operation: "write_u16", Address: ptr, Length: 2, Err: err}
	}
	if !mem.WriteUint16Le(ptr, v) {
		return &MemoryAccessError{Operation: "write_u16", Address: ptr, Length: 2, Err: errOutOfRange}
	}
	return nil
}

// WriteUint32Le writes v little-endian at ptr.
func (m *MemoryView) WriteUint32Le(ptr uint32, v uint32) error {
	mem, err := m.Current()
	if err != nil {
		return &MemoryAccessError{Operation: "write_u32", Address: ptr, Length: 4, Err: err}
	}
	if !mem.WriteUint32Le(ptr, v) {
		return &MemoryAccessError{Operation: "write_u32", Address: ptr, Length: 4, Err: errOutOfRange}
	}
	return nil
}

// ReadUint32Le reads a little-endian uint32 at ptr.
func (m *MemoryView) ReadUint32Le(ptr uint32) (uint32, error) {
	mem, err := m.Current()
	if err != nil {
		return 0, &MemoryAccessError{Operation: "read_u32", Address: ptr, Length: 4, Err: err}
	}
	v, ok := mem.ReadUint32Le(ptr)
	if !ok {
		return 0, &MemoryAccessError{Operation: "read_u32", Address: ptr, Length: 4, Err: errOutOfRange}
	}
	return v, nil
}
