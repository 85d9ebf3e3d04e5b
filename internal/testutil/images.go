// Package testutil builds image fixtures for tests: plain JPEG and PNG
// rasters of a chosen size, and JPEGs carrying a hand-assembled EXIF block.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// Raster returns a w×h RGBA gradient. The seed shifts the colours so two
// fixtures of the same size have different bytes.
func Raster(w, h int, seed uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x*255/max(w, 1)) + seed,
				G: uint8(y*255/max(h, 1)) ^ seed,
				B: seed,
				A: 255,
			})
		}
	}
	return img
}

// JPEG encodes a w×h gradient as a baseline JPEG.
func JPEG(t testing.TB, w, h int, seed uint8) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Raster(w, h, seed), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode fixture JPEG: %v", err)
	}
	return buf.Bytes()
}

// PNG encodes a w×h gradient as a PNG.
func PNG(t testing.TB, w, h int, seed uint8) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, Raster(w, h, seed)); err != nil {
		t.Fatalf("failed to encode fixture PNG: %v", err)
	}
	return buf.Bytes()
}

// Corrupt returns a payload that sniffs as JPEG but cannot be decoded.
func Corrupt() []byte {
	return []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0xDE, 0xAD, 0xBE, 0xEF}
}

// Truncated returns a w×h JPEG cut off halfway through the scan data. Its
// header parses, so it passes a header-only check, but a full decode fails.
func Truncated(t testing.TB, w, h int, seed uint8) []byte {
	t.Helper()

	full := JPEG(t, w, h, seed)
	return full[:len(full)/2]
}
