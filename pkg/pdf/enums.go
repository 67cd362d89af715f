package pdf

import (
	"fmt"
	"strings"
)

// Enum values cross the boundary as the integers declared here. The guest
// matches on these exact values, so they must never be renumbered.

// PageFormat selects the paper size of a new document.
type PageFormat int32

const (
	PageFormatLetter PageFormat = 0
	PageFormatA4     PageFormat = 1
)

// PageOrientation selects portrait or landscape pages.
type PageOrientation int32

const (
	PageOrientationPortrait  PageOrientation = 0
	PageOrientationLandscape PageOrientation = 1
)

// Font identifies one of the guest's built-in fonts.
type Font int32

const (
	FontArialRegular Font = 1
	FontArialBold    Font = 2
	FontCourier      Font = 3
)

// TextAlignment controls horizontal placement of text and page numbers.
type TextAlignment int32

const (
	TextAlignmentLeft     TextAlignment = 0
	TextAlignmentCentered TextAlignment = 1
	TextAlignmentRight    TextAlignment = 2
)

func (f PageFormat) String() string {
	switch f {
	case PageFormatLetter:
		return "letter"
	case PageFormatA4:
		return "a4"
	}
	return fmt.Sprintf("PageFormat(%d)", int32(f))
}

func (o PageOrientation) String() string {
	switch o {
	case PageOrientationPortrait:
		return "portrait"
	case PageOrientationLandscape:
		return "landscape"
	}
	return fmt.Sprintf("PageOrientation(%d)", int32(o))
}

func (f Font) String() string {
	switch f {
	case FontArialRegular:
		return "arial-regular"
	case FontArialBold:
		return "arial-bold"
	case FontCourier:
		return "courier"
	}
	return fmt.Sprintf("Font(%d)", int32(f))
}

func (a TextAlignment) String() string {
	switch a {
	case TextAlignmentLeft:
		return "left"
	case TextAlignmentCentered:
		return "centered"
	case TextAlignmentRight:
		return "right"
	}
	return fmt.Sprintf("TextAlignment(%d)", int32(a))
}

// ParsePageFormat accepts the names produced by PageFormat.String, case-insensitively.
func ParsePageFormat(s string) (PageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "letter":
		return PageFormatLetter, nil
	case "a4":
		return PageFormatA4, nil
	}
	return 0, fmt.Errorf("unknown page format %q (must be one of: letter, a4)", s)
}

// ParsePageOrientation accepts the names produced by PageOrientation.String, case-insensitively.
func ParsePageOrientation(s string) (PageOrientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "portrait":
		return PageOrientationPortrait, nil
	case "landscape":
		return PageOrientationLandscape, nil
	}
	return 0, fmt.Errorf("unknown page orientation %q (must be one of: portrait, landscape)", s)
}
