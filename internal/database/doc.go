// Package database is the photo catalog, backed by SQLite.
//
// It stores one row per photo with its intrinsic properties and EXIF-derived
// fields, a tag set per photo, and a small key/value metadata table. Rows are
// created in the pending state while an ingest is in flight and become
// visible to GetPhoto and Search only once CommitPhoto flips them to
// committed. The fingerprint column is unique across every state, so two
// concurrent ingests of the same bytes cannot both insert a row.
//
// The database uses WAL mode for concurrent reads alongside the single writer.
package database
