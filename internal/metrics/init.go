package metrics

// Label values pre-populated by InitializeMetrics.
var (
	Volumes        = []string{"original", "thumbnail", "preview", "database", "photos", "unknown"}
	IngestResults  = []string{"committed", "duplicate", "invalid", "failed"}
	IngestStages   = []string{"validating", "hashing", "duplicate_check", "extracting_metadata", "storing_original", "persisting_record", "generating_derivatives"}
	BlobNamespaces = []string{"original", "thumbnail", "preview"}
	FilesystemErrorKinds = []string{"no_space", "permission", "not_found", "stale", "other"}
)

// InitializeMetrics pre-populates the expected label combinations so every
// series is exported from the first scrape. Call once at startup.
func InitializeMetrics() {
	for _, vol := range Volumes {
		for _, op := range []string{"read", "write", "stat", "remove"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			for _, kind := range FilesystemErrorKinds {
				FilesystemOperationErrors.WithLabelValues(vol, op, kind)
			}
		}
		for _, op := range []string{"stat", "open", "read"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, r := range IngestResults {
		IngestTotal.WithLabelValues(r)
	}
	for _, s := range IngestStages {
		IngestStageDuration.WithLabelValues(s)
		IngestRollbacksTotal.WithLabelValues(s)
	}
	for _, target := range []string{"record", "original", "thumbnail", "preview"} {
		IngestRollbackFailures.WithLabelValues(target)
	}

	for _, ns := range BlobNamespaces {
		for _, status := range []string{"success", "error"} {
			BlobWritesTotal.WithLabelValues(ns, status)
			BlobDeletesTotal.WithLabelValues(ns, status)
		}
		BlobBytesWritten.WithLabelValues(ns)
	}

	for _, v := range []string{"thumbnail", "preview"} {
		DerivativeBytes.WithLabelValues(v)
		for _, backend := range []string{"imaging", "vips"} {
			DerivativeDuration.WithLabelValues(v, backend)
			DerivativeErrors.WithLabelValues(v, backend)
		}
	}

	for _, status := range []string{"pending", "committed"} {
		CatalogPhotos.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "create_photo", "commit_photo", "get_photo",
		"find_by_fingerprint", "add_tags", "delete_photo", "search", "list_pending", "count"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}
}
