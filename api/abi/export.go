package abi

// This file defines the export table a document-rendering guest module must provide.
// The host drives the guest exclusively through these names.
//
// NOTE: uint32 is used for pointers because WebAssembly uses a 32-bit linear memory
// model. Pointers are byte offsets into the guest's linear memory.
//
// Exported functions the guest implements (argument shapes, then return convention):
//
//	alloc(size) ptr
//	free(ptr)
//	createEncoder(pageFormat, pageOrientation) handle
//	freeEncoder(handle) status
//	showPageNumbers(handle, alignment, fontSize) status
//	advanceCursor(handle, dots) status
//	setFont(handle, fontId) status
//	setFontSize(handle, size) status
//	addHorizontalLine(handle, thickness) status
//	addText(handle, stringPtr) status
//	startTable(handle, widthsPtr, count) status
//	setTableHeaders(handle, stringPtrArrayPtr, count, repeatFlag) status
//	writeRow(handle, stringPtrArrayPtr, count) status
//	finishTable(handle) status
//	breakPage(handle) status
//	setTextAlignment(handle, alignment) status
//	setFontColor(handle, r, g, b) status
//	setFillColor(handle, r, g, b) status
//	setStrokeColor(handle, r, g, b) status
//	render(handle) ptr
//	getVersion() ptr

const (
	ExportMemory = "memory"

	ExportAlloc = "alloc"
	ExportFree  = "free"

	ExportCreateEncoder = "createEncoder"
	ExportFreeEncoder   = "freeEncoder"

	ExportShowPageNumbers   = "showPageNumbers"
	ExportAdvanceCursor     = "advanceCursor"
	ExportSetFont           = "setFont"
	ExportSetFontSize       = "setFontSize"
	ExportAddHorizontalLine = "addHorizontalLine"
	ExportAddText           = "addText"
	ExportStartTable        = "startTable"
	ExportSetTableHeaders   = "setTableHeaders"
	ExportWriteRow          = "writeRow"
	ExportFinishTable       = "finishTable"
	ExportBreakPage         = "breakPage"
	ExportSetTextAlignment  = "setTextAlignment"
	ExportSetFontColor      = "setFontColor"
	ExportSetFillColor      = "setFillColor"
	ExportSetStrokeColor    = "setStrokeColor"
	ExportRender            = "render"
	ExportGetVersion        = "getVersion"

	// ExportInitialize is called once after instantiation when a reactor module exports it.
	ExportInitialize = "_initialize"
)

// StatusFailure is the sentinel status returned by a failing guest operation.
const StatusFailure int32 = -1

// NullPointer is returned by pointer-returning exports on failure.
const NullPointer uint32 = 0

// PointerSize is the width of a guest address inside pointer arrays.
const PointerSize = 4

// Uint16Size is the width of one element of a uint16 array.
const Uint16Size = 2

// RequiredExports lists every function export the host resolves at load time.
// A module lacking any of these is rejected before a document can be created.
var RequiredExports = []string{
	ExportAlloc,
	ExportFree,
	ExportCreateEncoder,
	ExportFreeEncoder,
	ExportShowPageNumbers,
	ExportAdvanceCursor,
	ExportSetFont,
	ExportSetFontSize,
	ExportAddHorizontalLine,
	ExportAddText,
	ExportStartTable,
	ExportSetTableHeaders,
	ExportWriteRow,
	ExportFinishTable,
	ExportBreakPage,
	ExportSetTextAlignment,
	ExportSetFontColor,
	ExportSetFillColor,
	ExportSetStrokeColor,
	ExportRender,
	ExportGetVersion,
}
