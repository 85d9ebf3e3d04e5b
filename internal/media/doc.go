// Package media produces the resized renditions served in place of the
// original: a thumbnail for grids and a preview for the lightbox.
//
// Both renditions are JPEG regardless of the input format, keep the source
// aspect ratio, clamp the long edge to the configured maximum and never
// upscale. Resizing uses disintegration/imaging by default; when the vips
// backend is selected and libvips initialises, libvips does the shrink-on-load
// resize instead.
package media
