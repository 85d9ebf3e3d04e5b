// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]
// (server, with banner) or [ReadConfig] (CLI, quiet):
//
//   - STORAGE_DIR: Blob store root (default: /photos)
//   - DATABASE_DIR: Catalog directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MAX_UPLOAD_SIZE: Upload ceiling, bytes or with a unit such as 50MB (default: 50MB)
//   - THUMBNAIL_SIZE: Thumbnail long edge in pixels (default: 300)
//   - PREVIEW_SIZE: Preview long edge in pixels (default: 1280)
//   - JPEG_QUALITY: Derivative JPEG quality, 1-100 (default: 85)
//   - FREE_SPACE_FACTOR: Free space required as a multiple of the upload (default: 3)
//   - RESIZE_BACKEND: imaging or vips (default: imaging)
//   - RECORD_CACHE_SIZE: Records kept in the read cache (default: 1024)
//   - RECORD_CACHE_TTL: Read cache entry lifetime (default: 10m)
//   - PENDING_TTL: Age after which a pending record is reaped (default: 1h)
//   - REAP_INTERVAL: How often the reaper runs (default: 15m)
//   - INGEST_WORKERS: Concurrent ingest runs (default: GOMAXPROCS)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Both directories are resolved to absolute paths, created if missing and
// checked for write access.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Assembly
//
// [OpenStack] opens the catalog and blob store named by a [Config] and
// builds the ingest pipeline and library over them, logging each step. The
// server and photoctl both go through it, so they always agree on layout
// and limits:
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	stack, err := startup.OpenStack(ctx, config)
//	if err != nil {
//	    startup.LogFatal("Failed to initialize photo library: %v", err)
//	}
//	defer stack.Close()
package startup
