package pdf_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
	"github.com/woxQAQ/pdfnano-wasm/internal/wasm"
	"github.com/woxQAQ/pdfnano-wasm/pkg/pdf"
)

// A valid module with no exports at all.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestLoadRejectsMalformedModule(t *testing.T) {
	ctx := context.Background()

	_, err := pdf.Load(ctx, zaptest.NewLogger(t), &pdf.MemorySource{
		ModuleName: "broken",
		Data:       []byte("not a module"),
	}, nil)

	var loadErr *pdf.ModuleLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "broken", loadErr.ModuleName)
	assert.Equal(t, wasm.StageCompile, loadErr.Stage)
}

func TestLoadRejectsModuleWithoutExports(t *testing.T) {
	ctx := context.Background()

	_, err := pdf.Load(ctx, zaptest.NewLogger(t), &pdf.MemorySource{
		ModuleName: "empty",
		Data:       emptyModule,
	}, &pdf.RuntimeConfig{MemoryPages: 16})

	var loadErr *pdf.ModuleLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, wasm.StageExports, loadErr.Stage)
}

func TestLoadFileMissing(t *testing.T) {
	ctx := context.Background()

	_, err := pdf.LoadFile(ctx, zaptest.NewLogger(t), filepath.Join(t.TempDir(), "pdf-nano.wasm"), nil)

	var loadErr *pdf.ModuleLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, wasm.StageRead, loadErr.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewEngineRequiresEveryExport(t *testing.T) {
	for _, name := range abi.RequiredExports {
		t.Run(name, func(t *testing.T) {
			fake := newFakeNano()
			fake.Unexport(name)

			_, err := pdf.NewEngineWithGuest(fake, zaptest.NewLogger(t))

			var notFound *pdf.FunctionNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, name, notFound.FunctionName)
		})
	}
}

func TestEngineVersion(t *testing.T) {
	engine, _ := newEngine(t)

	version, err := engine.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fakeVersion, version)
}

func TestNewDefaultDocument(t *testing.T) {
	ctx := context.Background()
	engine, fake := newEngine(t)

	_, err := engine.NewDefaultDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 0}, lastParams(t, fake, abi.ExportCreateEncoder))

	engine.SetDefaults(pdf.PageFormatLetter, pdf.PageOrientationLandscape)
	_, err = engine.NewDefaultDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, lastParams(t, fake, abi.ExportCreateEncoder))
	assert.Equal(t, 2, engine.Documents())
}

func TestNewDocumentFailure(t *testing.T) {
	ctx := context.Background()
	engine, fake := newEngine(t)

	fake.setFail(abi.ExportCreateEncoder, true)
	doc, err := engine.NewDocument(ctx, pdf.PageFormatA4, pdf.PageOrientationPortrait)

	var callErr *pdf.CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, abi.ExportCreateEncoder, callErr.Export)
	assert.Nil(t, doc)
	assert.Zero(t, engine.Documents())
}

func TestEngineCloseReleasesDocuments(t *testing.T) {
	ctx := context.Background()
	engine, fake := newEngine(t)

	first, err := engine.NewDocument(ctx, pdf.PageFormatA4, pdf.PageOrientationPortrait)
	require.NoError(t, err)
	second, err := engine.NewDocument(ctx, pdf.PageFormatLetter, pdf.PageOrientationPortrait)
	require.NoError(t, err)
	require.NoError(t, second.StartTable(ctx, []uint16{40, 40}))

	require.NoError(t, engine.Close(ctx))
	assert.Zero(t, fake.liveDocs())
	assert.Len(t, fake.CallsTo(abi.ExportFreeEncoder), 2)
	assert.Equal(t, pdf.StateReleased, first.State())
	assert.Equal(t, pdf.StateReleased, second.State())

	require.ErrorIs(t, first.AddText(ctx, "late"), pdf.ErrDocumentReleased)
	_, err = engine.NewDocument(ctx, pdf.PageFormatA4, pdf.PageOrientationPortrait)
	require.ErrorIs(t, err, pdf.ErrEngineClosed)
	_, err = engine.Version(ctx)
	require.ErrorIs(t, err, pdf.ErrEngineClosed)

	require.NoError(t, engine.Close(ctx))
}
