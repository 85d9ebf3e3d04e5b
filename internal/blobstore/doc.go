// Package blobstore keeps photo bytes on a local filesystem under three
// namespaces, one directory each below the configured root:
//
//	{root}/original/{yyyy}/{mm}/{id}.{ext}
//	{root}/thumbnail/{id}.jpg
//	{root}/preview/{id}.jpg
//
// Originals are sharded by capture year and month so no directory holds more
// than about a month of uploads. Keys are built from the record id and capture
// time only; Store rejects any key that would resolve outside its namespace.
//
// Writes are atomic (temporary file, fsync, rename). An original is refused
// with a *photo.StorageError before any byte is written when the volume has
// less than FreeSpaceFactor times the payload size available. Deletes are
// idempotent.
package blobstore
