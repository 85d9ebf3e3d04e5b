package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_vault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_vault_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_vault_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_vault_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_vault_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Ingest metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_ingest_total",
			Help: "Total number of ingest attempts by result",
		},
		[]string{"result"}, // "committed", "duplicate", "invalid", "failed"
	)

	IngestStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_vault_ingest_stage_duration_seconds",
			Help:    "Time spent in each ingest stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	IngestBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_vault_ingest_bytes_total",
			Help: "Total bytes of committed originals",
		},
	)

	IngestInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_vault_ingest_in_flight",
			Help: "Number of ingests currently running",
		},
	)

	IngestRollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_ingest_rollbacks_total",
			Help: "Total number of ingests rolled back, by the stage that failed",
		},
		[]string{"stage"},
	)

	IngestRollbackFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_ingest_rollback_failures_total",
			Help: "Total number of cleanup steps that failed during rollback",
		},
		[]string{"target"}, // "record", "original", "thumbnail", "preview"
	)
)

// Derivative metrics
var (
	DerivativeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_vault_derivative_duration_seconds",
			Help:    "Time to render one derivative",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"variant", "backend"},
	)

	DerivativeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_vault_derivative_bytes",
			Help:    "Encoded size of rendered derivatives",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 10),
		},
		[]string{"variant"},
	)

	DerivativeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_derivative_errors_total",
			Help: "Total number of failed derivative renders",
		},
		[]string{"variant", "backend"},
	)
)

// Blob storage metrics
var (
	BlobWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_blob_writes_total",
			Help: "Total number of blob writes",
		},
		[]string{"namespace", "status"},
	)

	BlobBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_blob_bytes_written_total",
			Help: "Total bytes written to blob storage",
		},
		[]string{"namespace"},
	)

	BlobDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_blob_deletes_total",
			Help: "Total number of blob deletes",
		},
		[]string{"namespace", "status"},
	)

	StorageFreeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_vault_storage_free_bytes",
			Help: "Bytes available on the storage volume",
		},
	)

	StorageInsufficientSpaceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_vault_storage_insufficient_space_total",
			Help: "Total number of original writes refused for lack of space",
		},
	)
)

// Library metrics
var (
	CatalogPhotos = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_vault_catalog_photos",
			Help: "Number of catalog records by status",
		},
		[]string{"status"},
	)

	RecordCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_vault_record_cache_hits_total",
			Help: "Total number of record lookups served from cache",
		},
	)

	RecordCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_vault_record_cache_misses_total",
			Help: "Total number of record lookups that went to the catalog",
		},
	)

	PendingReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_vault_pending_reaped_total",
			Help: "Total number of abandoned pending records removed",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_vault_memory_usage_ratio",
			Help: "Live heap as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_vault_memory_paused",
			Help: "Whether ingest is paused for memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_vault_memory_pauses_total",
			Help: "Total number of times ingest was paused for memory pressure",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_vault_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_filesystem_operation_errors_total",
			Help: "Total number of failed filesystem operations by volume and error kind",
		},
		[]string{"volume", "operation", "kind"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_filesystem_retry_success_total",
			Help: "Total number of operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_filesystem_retry_failures_total",
			Help: "Total number of operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_vault_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a retried filesystem operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_vault_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors",
		},
		[]string{"operation", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_vault_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
