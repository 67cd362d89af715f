// Package wasmtest provides an in-process guest for testing code that drives
// a module through wasm.Guest. The guest has a growable linear memory, a bump
// allocator exported as alloc/free that counts every allocation, and an export
// table populated by the test.
package wasmtest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
)

// PageSize is the size of one page of linear memory.
const PageSize = 65536

// staticLimit is the end of the region reserved for Static data.
const staticLimit = 4096

// Impl implements one export. It receives the guest so it can read arguments
// out of linear memory.
type Impl func(ctx context.Context, g *Guest, params []uint64) []uint64

// Call records one invocation of an export.
type Call struct {
	Name   string
	Params []uint64
}

// Guest is a fake module instance.
type Guest struct {
	name string

	mu        sync.Mutex
	mem       *Memory
	static    uint32
	next      uint32
	live      map[uint32]uint32
	allocs    int
	frees     int
	badFrees  int
	failAlloc bool
	exports   map[string]*Func
	calls     []Call
}

var _ wasm.Guest = (*Guest)(nil)

// NewGuest creates a guest with one page of memory and alloc/free exports.
func NewGuest(name string) *Guest {
	g := &Guest{
		name:    name,
		mem:     &Memory{buf: make([]byte, PageSize)},
		static:  8, // keep address 0 unused so it stays the null pointer
		next:    staticLimit,
		live:    make(map[uint32]uint32),
		exports: make(map[string]*Func),
	}

	i32 := api.ValueTypeI32
	g.Export(abi.ExportAlloc, []api.ValueType{i32}, []api.ValueType{i32}, func(_ context.Context, g *Guest, p []uint64) []uint64 {
		return []uint64{uint64(g.alloc(uint32(p[0])))}
	})
	g.Export(abi.ExportFree, []api.ValueType{i32}, nil, func(_ context.Context, g *Guest, p []uint64) []uint64 {
		g.free(uint32(p[0]))
		return nil
	})
	return g
}

// Name implements wasm.Guest.
func (g *Guest) Name() string {
	return g.name
}

// Memory implements wasm.Guest. The returned value is replaced whenever the
// memory grows, so holders of an old value observe stale contents.
func (g *Guest) Memory() wasm.Memory {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mem
}

// Function implements wasm.Guest.
func (g *Guest) Function(name string) wasm.Function {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fn, ok := g.exports[name]; ok {
		return fn
	}
	return nil
}

// Export registers or replaces an export.
func (g *Guest) Export(name string, params, results []api.ValueType, impl Impl) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exports[name] = &Func{name: name, params: params, results: results, impl: impl, guest: g}
}

// Unexport removes an export.
func (g *Guest) Unexport(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.exports, name)
}

// FailAlloc makes alloc return the null pointer while fail is true.
func (g *Guest) FailAlloc(fail bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAlloc = fail
}

// Static places data in a reserved region that is not counted as an
// allocation, and returns its address.
func (g *Guest) Static(data []byte) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.static+uint32(len(data)) > staticLimit {
		panic("wasmtest: static region exhausted")
	}
	ptr := g.static
	copy(g.mem.buf[ptr:], data)
	g.static += uint32(len(data))
	return ptr
}

// Allocs returns the number of successful allocations.
func (g *Guest) Allocs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allocs
}

// Frees returns the number of frees of live buffers.
func (g *Guest) Frees() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.frees
}

// BadFrees returns the number of frees of addresses that were not live.
func (g *Guest) BadFrees() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.badFrees
}

// Live returns the addresses of buffers that are allocated and not yet freed.
func (g *Guest) Live() []uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]uint32, 0, len(g.live))
	for p := range g.live {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Calls returns every recorded invocation, alloc and free included.
func (g *Guest) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallsTo returns the recorded invocations of one export.
func (g *Guest) CallsTo(name string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ReadCString reads a zero-terminated string for assertions inside exports.
func (g *Guest) ReadCString(ptr uint32) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	end := ptr
	for int(end) < len(g.mem.buf) && g.mem.buf[end] != 0 {
		end++
	}
	return string(g.mem.buf[ptr:end])
}

// ReadUint16s reads n little-endian uint16 values at ptr.
func (g *Guest) ReadUint16s(ptr uint32, n int) []uint16 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]uint16, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(g.mem.buf[ptr+uint32(2*i):])
	}
	return out
}

// ReadStrings reads n zero-terminated strings through a pointer array at ptr.
func (g *Guest) ReadStrings(ptr uint32, n int) []string {
	g.mu.Lock()
	ptrs := make([]uint32, n)
	for i := range ptrs {
		ptrs[i] = binary.LittleEndian.Uint32(g.mem.buf[ptr+uint32(4*i):])
	}
	g.mu.Unlock()

	out := make([]string, n)
	for i, p := range ptrs {
		out[i] = g.ReadCString(p)
	}
	return out
}

// BufferSize returns the size requested for a live buffer.
func (g *Guest) BufferSize(ptr uint32) (uint32, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	size, ok := g.live[ptr]
	return size, ok
}

func (g *Guest) alloc(size uint32) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAlloc {
		return 0
	}

	ptr := (g.next + 7) &^ 7
	end := ptr + size
	if end > uint32(len(g.mem.buf)) {
		pages := (end + PageSize - 1) / PageSize
		grown := make([]byte, pages*PageSize)
		copy(grown, g.mem.buf)
		g.mem = &Memory{buf: grown}
	}
	g.next = end
	if size == 0 {
		g.next++
	}
	g.live[ptr] = size
	g.allocs++
	return ptr
}

func (g *Guest) free(ptr uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.live[ptr]; !ok {
		g.badFrees++
		return
	}
	delete(g.live, ptr)
	g.frees++
}

func (g *Guest) record(name string, params []uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Name: name, Params: append([]uint64(nil), params...)})
}

// Func is a fake export.
type Func struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
	impl    Impl
	guest   *Guest
}

// ParamTypes implements wasm.Function.
func (f *Func) ParamTypes() []api.ValueType {
	return f.params
}

// ResultTypes implements wasm.Function.
func (f *Func) ResultTypes() []api.ValueType {
	return f.results
}

// Call implements wasm.Function.
func (f *Func) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if len(params) != len(f.params) {
		return nil, fmt.Errorf("wasmtest: %s expects %d params, got %d", f.name, len(f.params), len(params))
	}
	f.guest.record(f.name, params)
	return f.impl(ctx, f.guest, params), nil
}

// Memory is a fixed-size linear memory. Growing the guest replaces it.
type Memory struct {
	buf []byte
}

var _ wasm.Memory = (*Memory)(nil)

func (m *Memory) Size() uint32 {
	return uint32(len(m.buf))
}

func (m *Memory) inRange(offset, n uint32) bool {
	return uint64(offset)+uint64(n) <= uint64(len(m.buf))
}

func (m *Memory) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.inRange(offset, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), true
}

func (m *Memory) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.inRange(offset, byteCount) {
		return nil, false
	}
	return m.buf[offset : offset+byteCount : offset+byteCount], true
}

func (m *Memory) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.inRange(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.buf[offset:], v)
	return true
}

func (m *Memory) WriteUint32Le(offset uint32, v uint32) bool {
	if !m.inRange(offset, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], v)
	return true
}

func (m *Memory) Write(offset uint32, v []byte) bool {
	if !m.inRange(offset, uint32(len(v))) {
		return false
	}
	copy(m.buf[offset:], v)
	return true
}
