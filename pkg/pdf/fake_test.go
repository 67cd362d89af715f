package pdf_test

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
	"github.com/woxQAQ/pdfnano-wasm/internal/wasm/wasmtest"
)

const fakeVersion = "0.3.1"

// fakeDoc is the guest-side state of one document.
type fakeDoc struct {
	format, orientation int32
	font, fontSize      int32
	alignment           int32
	lines               []string
	widths              []uint16
	headers             []string
	repeatHeaders       bool
	rows                [][]string
	tables              int
	pages               int
}

// fakeNano implements the document export table on a wasmtest guest. Every
// status export returns -1 while its name is in fail.
type fakeNano struct {
	*wasmtest.Guest

	mu         sync.Mutex
	docs       map[uint32]*fakeDoc
	next       uint32
	fail       map[string]bool
	renderNull bool
	renderBuf  uint32
}

const renderBufSize = 2048

func newFakeNano() *fakeNano {
	f := &fakeNano{
		Guest: wasmtest.NewGuest("pdf-nano"),
		docs:  make(map[uint32]*fakeDoc),
		next:  1,
		fail:  make(map[string]bool),
	}
	f.renderBuf = f.Static(make([]byte, renderBufSize))
	version := f.Static([]byte(fakeVersion + "\x00"))

	i32, f32 := api.ValueTypeI32, api.ValueTypeF32
	sig := func(params ...api.ValueType) []api.ValueType { return params }
	ret := sig(i32)

	f.Export(abi.ExportGetVersion, nil, ret, func(context.Context, *wasmtest.Guest, []uint64) []uint64 {
		return []uint64{uint64(version)}
	})
	f.Export(abi.ExportCreateEncoder, sig(i32, i32), ret, func(_ context.Context, _ *wasmtest.Guest, p []uint64) []uint64 {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.fail[abi.ExportCreateEncoder] {
			return status(-1)
		}
		h := f.next
		f.next++
		f.docs[h] = &fakeDoc{format: api.DecodeI32(p[0]), orientation: api.DecodeI32(p[1]), pages: 1}
		return []uint64{uint64(h)}
	})
	f.Export(abi.ExportFreeEncoder, sig(i32), ret, f.op(abi.ExportFreeEncoder, func(_ *fakeDoc, p []uint64) {
		delete(f.docs, uint32(p[0]))
	}))
	f.Export(abi.ExportShowPageNumbers, sig(i32, i32, i32), ret, f.op(abi.ExportShowPageNumbers, func(*fakeDoc, []uint64) {}))
	f.Export(abi.ExportAdvanceCursor, sig(i32, i32), ret, f.op(abi.ExportAdvanceCursor, func(*fakeDoc, []uint64) {}))
	f.Export(abi.ExportSetFont, sig(i32, i32), ret, f.op(abi.ExportSetFont, func(d *fakeDoc, p []uint64) {
		d.font = api.DecodeI32(p[1])
	}))
	f.Export(abi.ExportSetFontSize, sig(i32, i32), ret, f.op(abi.ExportSetFontSize, func(d *fakeDoc, p []uint64) {
		d.fontSize = api.DecodeI32(p[1])
	}))
	f.Export(abi.ExportAddHorizontalLine, sig(i32, f32), ret, f.op(abi.ExportAddHorizontalLine, func(d *fakeDoc, p []uint64) {
		d.lines = append(d.lines, strings.Repeat("-", int(api.DecodeF32(p[1]))))
	}))
	f.Export(abi.ExportAddText, sig(i32, i32), ret, f.op(abi.ExportAddText, func(d *fakeDoc, p []uint64) {
		d.lines = append(d.lines, f.ReadCString(uint32(p[1])))
	}))
	f.Export(abi.ExportStartTable, sig(i32, i32, i32), ret, f.op(abi.ExportStartTable, func(d *fakeDoc, p []uint64) {
		d.widths = f.ReadUint16s(uint32(p[1]), int(p[2]))
		d.tables++
	}))
	f.Export(abi.ExportSetTableHeaders, sig(i32, i32, i32, i32), ret, f.op(abi.ExportSetTableHeaders, func(d *fakeDoc, p []uint64) {
		d.headers = f.ReadStrings(uint32(p[1]), int(p[2]))
		d.repeatHeaders = p[3] != 0
	}))
	f.Export(abi.ExportWriteRow, sig(i32, i32, i32), ret, f.op(abi.ExportWriteRow, func(d *fakeDoc, p []uint64) {
		d.rows = append(d.rows, f.ReadStrings(uint32(p[1]), int(p[2])))
	}))
	f.Export(abi.ExportFinishTable, sig(i32), ret, f.op(abi.ExportFinishTable, func(*fakeDoc, []uint64) {}))
	f.Export(abi.ExportBreakPage, sig(i32), ret, f.op(abi.ExportBreakPage, func(d *fakeDoc, _ []uint64) {
		d.pages++
	}))
	f.Export(abi.ExportSetTextAlignment, sig(i32, i32), ret, f.op(abi.ExportSetTextAlignment, func(d *fakeDoc, p []uint64) {
		d.alignment = api.DecodeI32(p[1])
	}))
	for _, name := range []string{abi.ExportSetFontColor, abi.ExportSetFillColor, abi.ExportSetStrokeColor} {
		f.Export(name, sig(i32, f32, f32, f32), ret, f.op(name, func(*fakeDoc, []uint64) {}))
	}
	f.Export(abi.ExportRender, sig(i32), ret, f.render)
	return f
}

func status(code int32) []uint64 {
	return []uint64{api.EncodeI32(code)}
}

// op wraps a status export that acts on the document named by the first param.
func (f *fakeNano) op(name string, apply func(d *fakeDoc, p []uint64)) wasmtest.Impl {
	return func(_ context.Context, _ *wasmtest.Guest, p []uint64) []uint64 {
		f.mu.Lock()
		defer f.mu.Unlock()
		d, ok := f.docs[uint32(p[0])]
		if !ok || f.fail[name] {
			return status(-1)
		}
		apply(d, p)
		return status(0)
	}
}

func (f *fakeNano) render(_ context.Context, _ *wasmtest.Guest, p []uint64) []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[uint32(p[0])]
	if !ok || f.renderNull {
		return []uint64{0}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%%PDF-1.4\n%% format=%d orientation=%d pages=%d\n", d.format, d.orientation, d.pages)
	for _, line := range d.lines {
		fmt.Fprintf(&b, "(%s) Tj\n", line)
	}
	fmt.Fprintf(&b, "%% rows=%d\n%%%%EOF", len(d.rows))

	out := []byte(b.String())
	if len(out) >= renderBufSize {
		out = out[:renderBufSize-1]
	}
	f.Memory().Write(f.renderBuf, append(out, 0))
	return []uint64{uint64(f.renderBuf)}
}

func (f *fakeNano) setFail(name string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = fail
}

func (f *fakeNano) setRenderNull(null bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderNull = null
}

func (f *fakeNano) doc(handle uint32) *fakeDoc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[handle]
}

func (f *fakeNano) liveDocs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}
