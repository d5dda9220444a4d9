package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif" // register gif decoder
	_ "image/jpeg" // register jpeg decoder
	"image/png"
	"os"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // register bmp decoder
	_ "golang.org/x/image/tiff" // register tiff decoder
	_ "golang.org/x/image/webp" // register webp decoder
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/alnah/go-reportpdf/internal/fileutil"
)

// Image kinds pdfcpu imports as they are.
var nativeImages = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Image kinds decoded and re-encoded as PNG before import.
var transcodedImages = map[string]bool{
	"image/tiff":     true,
	"image/webp":     true,
	"image/gif":      true,
	"image/bmp":      true,
	"image/x-ms-bmp": true,
}

// PlaceholderText is drawn on the image used when no converter exists.
const PlaceholderText = "Image preview unavailable"

// prepareImage returns a path pdfcpu can import for src. When a new file is
// written, cleanup removes it.
func prepareImage(src, mimeType string) (path string, cleanup func(), err error) {
	mt := strings.ToLower(mimeType)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case nativeImages[mt]:
		return src, func() {}, nil
	case transcodedImages[mt]:
		return transcodeToPNG(src)
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrNoConverter, mimeType)
	}
}

func transcodeToPNG(src string) (string, func(), error) {
	f, err := os.Open(src) // #nosec G304 -- temp file produced by this process
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", nil, fmt.Errorf("%w: decoding image: %v", ErrConversion, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", nil, fmt.Errorf("%w: encoding png: %v", ErrConversion, err)
	}

	return writeImage(buf.Bytes())
}

func writeImage(data []byte) (string, func(), error) {
	path, err := fileutil.TempPath("image", "png")
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}

// isLandscape reports whether the image at path is wider than tall.
func isLandscape(path string) bool {
	f, err := os.Open(path) // #nosec G304 -- temp file produced by this process
	if err != nil {
		return false
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return false
	}
	return cfg.Width > cfg.Height
}

var (
	placeholderOnce sync.Once
	placeholderPNG  []byte
	placeholderErr  error
)

// placeholder returns the PNG bytes of the fixed placeholder image.
func placeholder() ([]byte, error) {
	placeholderOnce.Do(func() {
		placeholderPNG, placeholderErr = drawPlaceholder(800, 600)
	})
	if placeholderErr != nil {
		return nil, placeholderErr
	}
	return placeholderPNG, nil
}

func drawPlaceholder(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 236, G: 236, B: 236, A: 255}}, image.Point{}, draw.Src)

	border := color.RGBA{R: 160, G: 160, B: 160, A: 255}
	for x := 0; x < w; x++ {
		img.Set(x, 0, border)
		img.Set(x, h-1, border)
	}
	for y := 0; y < h; y++ {
		img.Set(0, y, border)
		img.Set(w-1, y, border)
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 80, G: 80, B: 80, A: 255}),
		Face: basicfont.Face7x13,
	}
	width := d.MeasureString(PlaceholderText).Round()
	d.Dot = fixed.P((w-width)/2, h/2)
	d.DrawString(PlaceholderText)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isNoConverter reports whether err means the image kind cannot be converted.
func isNoConverter(err error) bool {
	return errors.Is(err, ErrNoConverter)
}
