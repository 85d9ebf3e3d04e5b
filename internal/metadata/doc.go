// Package metadata extracts capture metadata and pixel dimensions from image
// bytes.
//
// Extraction is lenient: a missing or malformed tag only leaves the matching
// field nil, and the extractor never returns an error or panics on hostile
// input.
//
// Dimensions are resolved in order, first answer wins:
//  1. the container header (JPEG SOF, PNG IHDR, GIF/WebP/BMP headers)
//  2. the EXIF PixelXDimension/PixelYDimension tags
//  3. a full raster decode
package metadata
