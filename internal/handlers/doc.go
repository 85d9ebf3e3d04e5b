// Package handlers provides the HTTP adapter for the photo library.
//
// It includes handlers for:
//   - Multipart upload with duplicate reporting
//   - Record lookup, listing and search
//   - Serving the original, preview and thumbnail renditions
//   - Tagging and deletion
//   - Duplicate checks by content fingerprint
//   - Health checks and build information
//
// Library errors are mapped to HTTP statuses in one place, [writeError], and
// rendered as a JSON body carrying error, message, status, timestamp and path.
package handlers
