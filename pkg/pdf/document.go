package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
)

// State is the table state of a document.
type State int

const (
	// StateCreated accepts every operation except table row and header calls.
	StateCreated State = iota
	// StateTableOpen is entered by StartTable and left by FinishTable.
	StateTableOpen
	// StateReleased is terminal.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateTableOpen:
		return "TableOpen"
	case StateReleased:
		return "Released"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	anyLive  = []State{StateCreated, StateTableOpen}
	noTable  = []State{StateCreated}
	inTable  = []State{StateTableOpen}
	errEmpty = errors.New("render produced no output")
)

// Document is the host-side handle of one document in the guest. All methods
// are safe for concurrent use; calls are serialized by the owning Engine.
type Document struct {
	engine *Engine
	handle uint32
	state  State
	logger *zap.Logger
}

// Handle returns the opaque guest handle.
func (d *Document) Handle() uint32 {
	return d.handle
}

// State returns the current table state.
func (d *Document) State() State {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()
	return d.state
}

// exec checks the document is live and in one of the allowed states, then
// runs fn under the engine lock.
func (d *Document) exec(op string, allowed []State, fn func() error) error {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()

	if d.state == StateReleased {
		return ErrDocumentReleased
	}
	if d.engine.closed {
		return ErrEngineClosed
	}
	if !slices.Contains(allowed, d.state) {
		return &InvalidTransitionError{Operation: op, State: d.state}
	}
	return fn()
}

// status invokes a status-returning export with the handle as its first argument.
func (d *Document) status(ctx context.Context, export string, args ...any) error {
	_, err := d.engine.dispatch.Status(ctx, export, append([]any{d.handle}, args...)...)
	return err
}

func (d *Document) simple(ctx context.Context, export string, args ...any) error {
	return d.exec(export, anyLive, func() error {
		return d.status(ctx, export, args...)
	})
}

// ShowPageNumbers enables page numbering with the given alignment and size.
func (d *Document) ShowPageNumbers(ctx context.Context, alignment TextAlignment, fontSize int) error {
	return d.simple(ctx, abi.ExportShowPageNumbers, int32(alignment), fontSize)
}

// AdvanceCursor moves the layout cursor down by the given amount.
func (d *Document) AdvanceCursor(ctx context.Context, amount int) error {
	return d.simple(ctx, abi.ExportAdvanceCursor, amount)
}

// SetFont selects the font for subsequent text.
func (d *Document) SetFont(ctx context.Context, font Font) error {
	return d.simple(ctx, abi.ExportSetFont, int32(font))
}

// SetFontSize sets the font size for subsequent text.
func (d *Document) SetFontSize(ctx context.Context, size int) error {
	return d.simple(ctx, abi.ExportSetFontSize, size)
}

// AddHorizontalLine draws a horizontal rule of the given thickness.
func (d *Document) AddHorizontalLine(ctx context.Context, thickness float32) error {
	return d.simple(ctx, abi.ExportAddHorizontalLine, thickness)
}

// BreakPage starts a new page.
func (d *Document) BreakPage(ctx context.Context) error {
	return d.simple(ctx, abi.ExportBreakPage)
}

// SetTextAlignment sets the alignment of subsequent text.
func (d *Document) SetTextAlignment(ctx context.Context, alignment TextAlignment) error {
	return d.simple(ctx, abi.ExportSetTextAlignment, int32(alignment))
}

// SetFontColor sets the text colour. Channels are in [0, 1].
func (d *Document) SetFontColor(ctx context.Context, r, g, b float32) error {
	return d.simple(ctx, abi.ExportSetFontColor, r, g, b)
}

// SetFillColor sets the fill colour. Channels are in [0, 1].
func (d *Document) SetFillColor(ctx context.Context, r, g, b float32) error {
	return d.simple(ctx, abi.ExportSetFillColor, r, g, b)
}

// SetStrokeColor sets the stroke colour. Channels are in [0, 1].
func (d *Document) SetStrokeColor(ctx context.Context, r, g, b float32) error {
	return d.simple(ctx, abi.ExportSetStrokeColor, r, g, b)
}

// AddText lays out a paragraph of text.
func (d *Document) AddText(ctx context.Context, text string) error {
	return d.exec(abi.ExportAddText, anyLive, func() error {
		return d.engine.marshal.Scoped(ctx, func(s *wasm.Scope) error {
			ptr, err := s.String(ctx, text)
			if err != nil {
				return err
			}
			return d.status(ctx, abi.ExportAddText, ptr)
		})
	})
}

// StartTable opens a table with the given column widths. The document stays
// in StateCreated if the guest rejects the call.
func (d *Document) StartTable(ctx context.Context, widths []uint16) error {
	return d.exec(abi.ExportStartTable, noTable, func() error {
		err := d.engine.marshal.Scoped(ctx, func(s *wasm.Scope) error {
			ptr, err := s.Uint16s(ctx, widths)
			if err != nil {
				return err
			}
			return d.status(ctx, abi.ExportStartTable, ptr, len(widths))
		})
		if err != nil {
			return err
		}
		d.state = StateTableOpen
		return nil
	})
}

// SetTableHeader sets the header row of the open table. When repeat is true
// the header is drawn again on every page the table spans.
func (d *Document) SetTableHeader(ctx context.Context, headers []string, repeat bool) error {
	return d.exec(abi.ExportSetTableHeaders, inTable, func() error {
		return d.engine.marshal.Scoped(ctx, func(s *wasm.Scope) error {
			ptr, err := s.Strings(ctx, headers)
			if err != nil {
				return err
			}
			return d.status(ctx, abi.ExportSetTableHeaders, ptr, len(headers), repeat)
		})
	})
}

// AddTableRow appends a row to the open table.
func (d *Document) AddTableRow(ctx context.Context, columns []string) error {
	return d.exec(abi.ExportWriteRow, inTable, func() error {
		return d.engine.marshal.Scoped(ctx, func(s *wasm.Scope) error {
			ptr, err := s.Strings(ctx, columns)
			if err != nil {
				return err
			}
			return d.status(ctx, abi.ExportWriteRow, ptr, len(columns))
		})
	})
}

// FinishTable closes the open table. The document stays in StateTableOpen if
// the guest rejects the call.
func (d *Document) FinishTable(ctx context.Context) error {
	return d.exec(abi.ExportFinishTable, inTable, func() error {
		if err := d.status(ctx, abi.ExportFinishTable); err != nil {
			return err
		}
		d.state = StateCreated
		return nil
	})
}

// Render produces the PDF bytes for the document. The returned slice is owned
// by the caller and stays valid after further calls into the guest.
func (d *Document) Render(ctx context.Context) ([]byte, error) {
	var out []byte
	err := d.exec(abi.ExportRender, noTable, func() error {
		ptr, err := d.engine.dispatch.Pointer(ctx, abi.ExportRender, d.handle)
		if err != nil {
			return &RenderError{Handle: d.handle, Err: err}
		}
		// The guest terminates its output with a zero byte and owns the buffer.
		out, err = d.engine.view.ReadCString(ptr)
		if err != nil {
			return &RenderError{Handle: d.handle, Err: err}
		}
		if len(out) == 0 {
			return &RenderError{Handle: d.handle, Err: errEmpty}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Document rendered", zap.Int("bytes", len(out)))
	return out, nil
}

// RenderTo renders the document and writes the bytes to w.
func (d *Document) RenderTo(ctx context.Context, w io.Writer) (int64, error) {
	out, err := d.Render(ctx)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(out)
	return int64(n), err
}

// SaveAs renders the document into the file at path.
func (d *Document) SaveAs(ctx context.Context, path string) error {
	out, err := d.Render(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	d.logger.Info("Document saved", zap.String("path", path), zap.Int("bytes", len(out)))
	return nil
}

// Version returns the guest's version string.
func (d *Document) Version(ctx context.Context) (string, error) {
	var version string
	err := d.exec(abi.ExportGetVersion, anyLive, func() error {
		var err error
		version, err = d.engine.version(ctx)
		return err
	})
	return version, err
}

// Release frees the guest document. The document is Released afterwards even
// if the guest reports a failure; a second call returns ErrDocumentReleased.
func (d *Document) Release(ctx context.Context) error {
	d.engine.mu.Lock()
	defer d.engine.mu.Unlock()

	if d.state == StateReleased {
		return ErrDocumentReleased
	}
	if d.engine.closed {
		return ErrEngineClosed
	}
	return d.releaseLocked(ctx)
}

func (d *Document) releaseLocked(ctx context.Context) error {
	err := d.status(ctx, abi.ExportFreeEncoder)
	if err != nil {
		d.logger.Error("Failed to free document", zap.Error(err))
	}
	if d.state == StateTableOpen {
		d.logger.Warn("Document released with an open table")
	}
	d.state = StateReleased
	delete(d.engine.docs, d.handle)
	d.logger.Debug("Document released")
	return err
}
