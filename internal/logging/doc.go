// Package logging provides leveled logging for the photo vault.
//
// Levels, lowest first:
//   - DEBUG: pipeline stage transitions and per-file details
//   - INFO: startup, ingest results, shutdown
//   - WARN: recoverable problems such as failed best-effort blob deletes
//   - ERROR: failed operations and rollback failures
//   - FATAL: startup errors that terminate the process
//
// The level comes from LOG_LEVEL, or DEBUG=true to force debug output.
// Components obtain a prefixed logger with For:
//
//	log := logging.For("ingest")
//	log.Info("committed %s", id)
package logging
