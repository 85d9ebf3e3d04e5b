/*
Package filesystem wraps the os calls the blob store depends on with the
behaviour a network-mounted photo volume needs.

Stat, Open and ReadFile retry with exponential backoff when the kernel reports
a stale file handle (ESTALE); every other error fails immediately. WriteFileAtomic
writes through a temporary file in the destination directory, syncs it and
renames it into place, so readers never observe a partial blob. FreeSpace
reports the bytes available to unprivileged writers on the volume holding a
path.

Operation timings and retry counters are reported through an Observer, which
the metrics package implements:

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "original":  "/photos/original",
	    "thumbnail": "/photos/thumbnail",
	    "preview":   "/photos/preview",
	    "database":  "/database",
	}))

Without an observer the package records nothing, which keeps tests free of
global state.
*/
package filesystem
