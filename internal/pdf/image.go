package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Import layouts for one image per A4 page, centred, leaving room for a caption.
const (
	portraitImport  = "f:A4, pos:c, sc:0.85 rel"
	landscapeImport = "f:A4L, pos:c, sc:0.85 rel"
)

// captionStyle places a caption at the bottom centre of every page.
const captionStyle = "font:Helvetica, points:10, pos:bc, off:0 18, scale:1 abs, rot:0, fillcolor:#333333, opacity:1"

// ImportImage writes a one-page PDF containing the image at imgPath.
// Supported inputs are those pdfcpu imports natively (jpeg, png, tiff, webp).
func ImportImage(imgPath, outPath string, landscape bool) error {
	desc := portraitImport
	if landscape {
		desc = landscapeImport
	}

	imp, err := api.Import(desc, types.POINTS)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImageImport, err)
	}

	if err := api.ImportImagesFile([]string{imgPath}, outPath, imp, configuration()); err != nil {
		return fmt.Errorf("%w: %v", ErrImageImport, err)
	}
	return nil
}

// StampCaption writes inPath to outPath with caption drawn as a page footer.
func StampCaption(inPath, outPath, caption string) error {
	if err := api.AddTextWatermarksFile(inPath, outPath, nil, true, caption, captionStyle, configuration()); err != nil {
		return fmt.Errorf("%w: %v", ErrCaption, err)
	}
	return nil
}
