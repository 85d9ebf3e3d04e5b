// Package mediatypes identifies uploaded images by their magic bytes and
// maps MIME types to the extensions used in storage keys.
//
// Detection never trusts the client supplied filename or Content-Type.
package mediatypes
