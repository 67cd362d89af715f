package pdf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/woxQAQ/pdfnano-wasm/pkg/pdf"
)

func TestEnumIntegers(t *testing.T) {
	assert.EqualValues(t, 0, pdf.PageFormatLetter)
	assert.EqualValues(t, 1, pdf.PageFormatA4)
	assert.EqualValues(t, 0, pdf.PageOrientationPortrait)
	assert.EqualValues(t, 1, pdf.PageOrientationLandscape)
	assert.EqualValues(t, 1, pdf.FontArialRegular)
	assert.EqualValues(t, 2, pdf.FontArialBold)
	assert.EqualValues(t, 3, pdf.FontCourier)
	assert.EqualValues(t, 0, pdf.TextAlignmentLeft)
	assert.EqualValues(t, 1, pdf.TextAlignmentCentered)
	assert.EqualValues(t, 2, pdf.TextAlignmentRight)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "a4", pdf.PageFormatA4.String())
	assert.Equal(t, "landscape", pdf.PageOrientationLandscape.String())
	assert.Equal(t, "arial-bold", pdf.FontArialBold.String())
	assert.Equal(t, "right", pdf.TextAlignmentRight.String())
	assert.Equal(t, "Font(9)", pdf.Font(9).String())
	assert.Equal(t, "TableOpen", pdf.StateTableOpen.String())
}

func TestParsePageSettings(t *testing.T) {
	format, err := pdf.ParsePageFormat(" Letter ")
	require.NoError(t, err)
	assert.Equal(t, pdf.PageFormatLetter, format)

	orientation, err := pdf.ParsePageOrientation("LANDSCAPE")
	require.NoError(t, err)
	assert.Equal(t, pdf.PageOrientationLandscape, orientation)

	_, err = pdf.ParsePageFormat("a5")
	assert.Error(t, err)
	_, err = pdf.ParsePageOrientation("diagonal")
	assert.Error(t, err)
}
