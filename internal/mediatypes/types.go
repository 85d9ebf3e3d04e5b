package mediatypes

import (
	"bytes"
	"strings"
)

// MIME types recognised by content sniffing.
const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WebP = "image/webp"
	BMP  = "image/bmp"
	TIFF = "image/tiff"

	// Unknown is returned when no signature matches.
	Unknown = "application/octet-stream"
)

// DefaultAllowed is the set of upload types accepted out of the box.
var DefaultAllowed = []string{JPEG, PNG, GIF, WebP, BMP}

// extensions maps each recognised MIME type to its storage extension.
var extensions = map[string]string{
	JPEG: "jpg",
	PNG:  "png",
	GIF:  "gif",
	WebP: "webp",
	BMP:  "bmp",
	TIFF: "tiff",
}

// Detect sniffs the MIME type from the leading bytes of an image.
func Detect(data []byte) string {
	header := data
	if len(header) > 32 {
		header = header[:32]
	}

	switch {
	case len(header) >= 3 && header[0] == 0xFF && header[1] == 0xD8 && header[2] == 0xFF:
		return JPEG

	case len(header) >= 8 && bytes.Equal(header[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return PNG

	case len(header) >= 6 && (bytes.Equal(header[:6], []byte("GIF87a")) || bytes.Equal(header[:6], []byte("GIF89a"))):
		return GIF

	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WEBP")):
		return WebP

	case len(header) >= 2 && header[0] == 'B' && header[1] == 'M':
		return BMP

	case len(header) >= 4 && (bytes.Equal(header[:4], []byte{'I', 'I', 0x2A, 0x00}) ||
		bytes.Equal(header[:4], []byte{'M', 'M', 0x00, 0x2A})):
		return TIFF
	}

	return Unknown
}

// Extension returns the storage extension for a MIME type, without a dot.
// Unrecognised types map to "bin".
func Extension(mimeType string) string {
	if ext, ok := extensions[normalize(mimeType)]; ok {
		return ext
	}
	return "bin"
}

// FromExtension returns the MIME type for a file extension with or without
// the leading dot. Unrecognised extensions map to Unknown.
func FromExtension(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "jpeg" {
		return JPEG
	}
	if ext == "tif" {
		return TIFF
	}
	for mime, e := range extensions {
		if e == ext {
			return mime
		}
	}
	return Unknown
}

// AllowList is a set of accepted MIME types.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList, ignoring case and parameters.
func NewAllowList(types []string) AllowList {
	a := make(AllowList, len(types))
	for _, t := range types {
		if n := normalize(t); n != "" {
			a[n] = struct{}{}
		}
	}
	return a
}

// Allows reports whether mimeType is in the list.
func (a AllowList) Allows(mimeType string) bool {
	_, ok := a[normalize(mimeType)]
	return ok
}

// normalize lowercases and strips parameters such as "; charset=".
func normalize(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
