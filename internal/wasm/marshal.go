package wasm

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
)

// Marshaller encodes host values into buffers allocated by the guest's own
// alloc export and releases them through its free export.
type Marshaller struct {
	dispatch *Dispatcher
	view     *MemoryView
	logger   *zap.Logger
}

// NewMarshaller creates a marshaller that allocates through dispatch and
// writes through view.
func NewMarshaller(dispatch *Dispatcher, view *MemoryView, logger *zap.Logger) *Marshaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Marshaller{
		dispatch: dispatch,
		view:     view,
		logger:   logger.With(zap.String("component", "wasm-marshal")),
	}
}

// Alloc reserves size bytes in guest memory.
func (m *Marshaller) Alloc(ctx context.Context, size uint32) (uint32, error) {
	ptr, err := m.dispatch.Unguarded(ctx, abi.ExportAlloc, size)
	if err != nil {
		return 0, &AllocationError{Size: size, Err: err}
	}
	if ptr == abi.NullPointer {
		return 0, &AllocationError{Size: size}
	}
	return ptr, nil
}

// Free returns ptr to the guest allocator. The null pointer is ignored.
func (m *Marshaller) Free(ctx context.Context, ptr uint32) error {
	if ptr == abi.NullPointer {
		return nil
	}
	return m.dispatch.Void(ctx, abi.ExportFree, ptr)
}

// EncodeString writes text as UTF-8 followed by one zero byte into a new
// guest buffer. Invalid UTF-8 is replaced with U+FFFD before sizing, so the
// buffer is exactly the encoded length plus the terminator. The caller frees.
func (m *Marshaller) EncodeString(ctx context.Context, text string) (uint32, error) {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
	}

	buf := make([]byte, len(text)+1)
	copy(buf, text)

	ptr, err := m.Alloc(ctx, uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := m.view.WriteBytes(ptr, buf); err != nil {
		return 0, errors.Join(err, m.Free(ctx, ptr))
	}
	return ptr, nil
}

// EncodeUint16Array writes values as consecutive little-endian uint16s into a
// new guest buffer of 2*len(values) bytes. An empty slice allocates nothing
// and yields the null pointer. The caller frees.
func (m *Marshaller) EncodeUint16Array(ctx context.Context, values []uint16) (uint32, error) {
	if len(values) == 0 {
		return abi.NullPointer, nil
	}

	ptr, err := m.Alloc(ctx, uint32(abi.Uint16Size*len(values)))
	if err != nil {
		return 0, err
	}
	for i, v := range values {
		if err := m.view.WriteUint16Le(ptr+uint32(abi.Uint16Size*i), v); err != nil {
			return 0, errors.Join(err, m.Free(ctx, ptr))
		}
	}
	return ptr, nil
}

// EncodeStringPointerArray encodes each string with EncodeString and writes
// the resulting addresses little-endian into a 4*len(values) byte array
// buffer. It returns the array pointer and the element pointers; the caller
// frees the elements after the dependent call returns, then the array.
// On failure everything allocated so far is freed.
func (m *Marshaller) EncodeStringPointerArray(ctx context.Context, values []string) (uint32, []uint32, error) {
	if len(values) == 0 {
		return abi.NullPointer, nil, nil
	}

	arr, err := m.Alloc(ctx, uint32(abi.PointerSize*len(values)))
	if err != nil {
		return 0, nil, err
	}

	elems := make([]uint32, 0, len(values))
	cleanup := func(cause error) error {
		errs := []error{cause}
		for _, p := range elems {
			errs = append(errs, m.Free(ctx, p))
		}
		errs = append(errs, m.Free(ctx, arr))
		return errors.Join(errs...)
	}

	for i, v := range values {
		p, err := m.EncodeString(ctx, v)
		if err != nil {
			return 0, nil, cleanup(err)
		}
		elems = append(elems, p)
		if err := m.view.WriteUint32Le(arr+uint32(abi.PointerSize*i), p); err != nil {
			return 0, nil, cleanup(err)
		}
	}
	return arr, elems, nil
}

// Scoped runs fn with a Scope and frees every buffer acquired through that
// scope once fn returns, on every path. Release errors are joined to fn's error.
func (m *Marshaller) Scoped(ctx context.Context, fn func(s *Scope) error) (err error) {
	s := &Scope{m: m}
	defer func() {
		if relErr := s.release(ctx); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn(s)
}

// Scope tracks guest buffers acquired for one call.
type Scope struct {
	m    *Marshaller
	ptrs []uint32
}

// String encodes text into a buffer owned by the scope.
func (s *Scope) String(ctx context.Context, text string) (uint32, error) {
	ptr, err := s.m.EncodeString(ctx, text)
	if err != nil {
		return 0, err
	}
	s.ptrs = append(s.ptrs, ptr)
	return ptr, nil
}

// Uint16s encodes values into a buffer owned by the scope.
func (s *Scope) Uint16s(ctx context.Context, values []uint16) (uint32, error) {
	ptr, err := s.m.EncodeUint16Array(ctx, values)
	if err != nil {
		return 0, err
	}
	s.ptrs = append(s.ptrs, ptr)
	return ptr, nil
}

// Strings encodes values as a pointer array owned by the scope. The element
// buffers are released before the array buffer.
func (s *Scope) Strings(ctx context.Context, values []string) (uint32, error) {
	arr, elems, err := s.m.EncodeStringPointerArray(ctx, values)
	if err != nil {
		return 0, err
	}
	s.ptrs = append(s.ptrs, arr)
	s.ptrs = append(s.ptrs, elems...)
	return arr, nil
}

// release frees buffers in reverse acquisition order and empties the scope.
func (s *Scope) release(ctx context.Context) error {
	var errs []error
	for i := len(s.ptrs) - 1; i >= 0; i-- {
		if err := s.m.Free(ctx, s.ptrs[i]); err != nil {
			s.m.logger.Error("Failed to free guest buffer",
				zap.Uint32("ptr", s.ptrs[i]),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	if n := len(s.ptrs); n > 0 {
		s.m.logger.Debug("Released guest buffers", zap.Int("count", n))
	}
	s.ptrs = nil
	return errors.Join(errs...)
}
