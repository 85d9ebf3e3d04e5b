package media

import (
	"bytes"
	"fmt"
	"image"

	"photo-vault/internal/photo"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels caps the header-declared pixel count accepted for decode.
// A 100MP RGBA raster needs roughly 400MB.
const DefaultMaxPixels = 100_000_000

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// Pixels returns the total pixel count.
func (d ImageDimensions) Pixels() int {
	return d.Width * d.Height
}

// ProbeDimensions reads the dimensions and format from the image header
// without decoding the raster.
func ProbeDimensions(data []byte) (ImageDimensions, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageDimensions{}, "", err
	}
	return ImageDimensions{Width: cfg.Width, Height: cfg.Height}, format, nil
}

// DecodeImage decodes the full raster, applying the EXIF orientation.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &photo.ProcessingError{Op: "decode image", Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &photo.ProcessingError{Op: "decode image", Err: fmt.Errorf("empty raster %dx%d", b.Dx(), b.Dy())}
	}
	return img, nil
}

// FitDimensions clamps the long edge of w×h to maxEdge, scaling the short
// edge proportionally. Sources already within bounds are returned unchanged.
func FitDimensions(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		nh := (h*maxEdge + w/2) / w
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := (w*maxEdge + h/2) / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}
