// Package ingest runs one upload through the pipeline that turns raw bytes
// into a committed catalog record:
//
//	validating → hashing → duplicate check → extracting metadata →
//	storing original → persisting record → generating derivatives → committed
//
// Run returns a tagged Result instead of panicking or unwinding: a committed
// record, the id of the photo the bytes duplicate, or an error from the
// photo package taxonomy. Every side effect a run performs is registered with
// a cleanup list that a deferred rollback replays on any non-committed exit,
// so a failed run leaves neither a catalog row nor a blob behind. Rollback
// failures are logged and counted, never returned in place of the original
// error.
package ingest
