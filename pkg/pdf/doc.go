// Package pdf drives a pdf-nano rendering module compiled to WebAssembly.
//
// An Engine owns one instantiated module. Documents created from it are
// host-side handles to guest documents: every call marshals its arguments
// into guest memory, invokes one export, interprets the result, and frees
// what it allocated before returning.
//
//	engine, err := pdf.LoadFile(ctx, logger, "pdf-nano.wasm", nil)
//	if err != nil {
//		return err
//	}
//	defer engine.Close(ctx)
//
//	doc, err := engine.NewDocument(ctx, pdf.PageFormatA4, pdf.PageOrientationPortrait)
//	if err != nil {
//		return err
//	}
//	defer doc.Release(ctx)
//
//	if err := doc.AddText(ctx, "Hello"); err != nil {
//		return err
//	}
//	out, err := doc.Render(ctx)
//
// Render output is read up to the first zero byte, which is how the module
// marks the end of its buffer. A document containing a zero byte is truncated.
package pdf
