// Command photoctl is the operator tool for a photo-vault installation.
//
// It opens the same catalog and blob store as the server, configured by the
// same environment variables, and supports:
//
//	import [-tags a,b] [-workers n] <dir>
//	        Ingest every regular file under dir, skipping hidden files
//	        and directories, through the normal
//	        pipeline, several at a time. Each file is reported as
//	        imported, duplicate, skipped or failed, followed by totals.
//	        The exit status is non-zero when any file failed.
//
//	status  Print the committed and pending photo counts, free space
//	        under STORAGE_DIR and when pending uploads were last reaped.
//
//	reap    Delete pending uploads older than PENDING_TTL together with
//	        any files they left behind.
//
// Running photoctl against a catalog the server is using at the same time
// is safe; SQLite serializes the writers.
package main
