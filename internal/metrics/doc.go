// Package metrics provides Prometheus instrumentation for photo-vault.
//
// Every metric is registered with promauto at package init and prefixed with
// "photo_vault_". Packages record into the exported collectors directly; the
// filesystem package is the exception and reports through the Observer
// returned by NewFilesystemObserver, which keeps filesystem free of a
// dependency on this package.
//
// # Metric Categories
//
//   - HTTP: request totals and durations keyed by the mux route template.
//   - Database: query totals and durations by operation, open connections and
//     SQLite file sizes.
//   - Ingest: outcomes by result, per-stage latency, committed bytes, in-flight
//     count, rollbacks by failing stage and failed cleanup steps.
//   - Derivatives: render latency by variant and backend, encoded sizes, errors.
//   - Blob storage: writes and deletes by namespace, bytes written, free space
//     and refused writes.
//   - Library: catalog size by status, record cache hits and misses, reaped
//     pending records.
//   - Filesystem: per-volume operation latency and stale-handle retries.
//
// # Collection
//
// Gauges that describe state rather than events (catalog size, free space,
// database file sizes) are sampled by a Collector on a fixed interval from a
// StatsProvider, which the library facade implements.
//
// InitializeMetrics pre-populates label combinations so dashboards see zero
// values instead of missing series after a restart.
package metrics
