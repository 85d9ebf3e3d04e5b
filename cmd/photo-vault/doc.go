// Command photo-vault runs the photo ingestion and search server.
//
// # Startup
//
//  1. GOMEMLIMIT is sized from the environment or the cgroup limit.
//  2. Configuration is read from the environment and the storage and
//     database directories are checked for write access.
//  3. The catalog is opened (and migrated), the blob store and image
//     backend are set up, and the memory monitor starts.
//  4. Uploads a previous run left pending are reaped; the reaper then
//     repeats every REAP_INTERVAL.
//  5. The API server and, unless disabled, the metrics server start.
//
// # HTTP
//
// The API server (PORT, default 8080) serves /api/photos and the
// /healthz, /livez, /readyz and /version probes. Every request gets an
// X-Request-ID and a W3C access log line; JSON replies are gzipped for
// clients that accept it. The metrics server (METRICS_PORT, default 9090)
// serves /metrics.
//
// # Environment Variables
//
//   - STORAGE_DIR: root of the blob store (default /photos)
//   - DATABASE_DIR: directory of the SQLite catalog (default /database)
//   - PORT, METRICS_PORT, METRICS_ENABLED
//   - MAX_UPLOAD_SIZE: largest accepted upload, e.g. 50MB
//   - THUMBNAIL_SIZE, PREVIEW_SIZE, JPEG_QUALITY, RESIZE_BACKEND (imaging or vips)
//   - FREE_SPACE_FACTOR: free space required as a multiple of the upload size
//   - RECORD_CACHE_SIZE, RECORD_CACHE_TTL
//   - PENDING_TTL, REAP_INTERVAL
//   - INGEST_WORKERS: concurrent ingests (default GOMAXPROCS)
//   - LOG_LEVEL, LOG_HEALTH_CHECKS
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the HTTP servers stop accepting requests and drain
// in-flight uploads, then the reaper, metrics collector and memory monitor
// stop and the catalog is closed.
package main
