package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"photo-vault/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	StorageDir      string
	DatabaseDir     string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	MaxUploadSize   int64
	ThumbnailSize   int
	PreviewSize     int
	JPEGQuality     int
	FreeSpaceFactor uint64
	ResizeBackend   string

	RecordCacheSize int
	RecordCacheTTL  time.Duration
	PendingTTL      time.Duration
	ReapInterval    time.Duration
	IngestWorkers   int

	// Derived paths
	DatabasePath string
}

// Defaults
const (
	DefaultMaxUploadSize = 50 << 20
	DatabaseFile         = "photo-vault.db"
)

// LoadConfig prints the startup banner, then loads and validates
// configuration from environment variables.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	return loadConfig(logging.Info)
}

// ReadConfig loads configuration without the banner. Settings are logged at
// debug level. Used by the CLI.
func ReadConfig() (*Config, error) {
	return loadConfig(logging.Debug)
}

func loadConfig(logf func(format string, args ...interface{})) (*Config, error) {
	cfg := &Config{
		StorageDir:      getEnv("STORAGE_DIR", "/photos"),
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		MaxUploadSize:   getEnvBytes("MAX_UPLOAD_SIZE", DefaultMaxUploadSize),
		ThumbnailSize:   getEnvInt("THUMBNAIL_SIZE", 300),
		PreviewSize:     getEnvInt("PREVIEW_SIZE", 1280),
		JPEGQuality:     getEnvInt("JPEG_QUALITY", 85),
		FreeSpaceFactor: uint64(getEnvInt("FREE_SPACE_FACTOR", 3)), //nolint:gosec // getEnvInt rejects negatives
		ResizeBackend:   strings.ToLower(getEnv("RESIZE_BACKEND", "imaging")),
		RecordCacheSize: getEnvInt("RECORD_CACHE_SIZE", 1024),
		RecordCacheTTL:  getEnvDuration("RECORD_CACHE_TTL", 10*time.Minute),
		PendingTTL:      getEnvDuration("PENDING_TTL", time.Hour),
		ReapInterval:    getEnvDuration("REAP_INTERVAL", 15*time.Minute),
		IngestWorkers:   getEnvInt("INGEST_WORKERS", 0),
	}

	if cfg.JPEGQuality > 100 {
		logging.Warn("  JPEG_QUALITY %d is above 100, using 85", cfg.JPEGQuality)
		cfg.JPEGQuality = 85
	}
	if cfg.ResizeBackend != "imaging" && cfg.ResizeBackend != "vips" {
		logging.Warn("  Unknown RESIZE_BACKEND %q, using imaging", cfg.ResizeBackend)
		cfg.ResizeBackend = "imaging"
	}

	logf("  STORAGE_DIR:         %s", cfg.StorageDir)
	logf("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logf("  PORT:                %s", cfg.Port)
	logf("  METRICS_PORT:        %s", cfg.MetricsPort)
	logf("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logf("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logf("  LOG_LEVEL:           %s", logging.GetLevel())
	logf("  MAX_UPLOAD_SIZE:     %s", formatBytes(cfg.MaxUploadSize))
	logf("  THUMBNAIL_SIZE:      %d", cfg.ThumbnailSize)
	logf("  PREVIEW_SIZE:        %d", cfg.PreviewSize)
	logf("  JPEG_QUALITY:        %d", cfg.JPEGQuality)
	logf("  FREE_SPACE_FACTOR:   %d", cfg.FreeSpaceFactor)
	logf("  RESIZE_BACKEND:      %s", cfg.ResizeBackend)
	logf("  RECORD_CACHE_SIZE:   %d", cfg.RecordCacheSize)
	logf("  RECORD_CACHE_TTL:    %s", cfg.RecordCacheTTL)
	logf("  PENDING_TTL:         %s", cfg.PendingTTL)
	logf("  REAP_INTERVAL:       %s", cfg.ReapInterval)
	if cfg.IngestWorkers > 0 {
		logf("  INGEST_WORKERS:      %d", cfg.IngestWorkers)
	} else {
		logf("  INGEST_WORKERS:      auto (GOMAXPROCS)")
	}

	logf("")
	logf("------------------------------------------------------------")
	logf("DIRECTORY SETUP")
	logf("------------------------------------------------------------")

	var err error
	if cfg.StorageDir, err = filepath.Abs(cfg.StorageDir); err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory path: %w", err)
	}
	logf("  Storage directory (absolute): %s", cfg.StorageDir)

	if cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logf("  Database directory (absolute): %s", cfg.DatabaseDir)
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, DatabaseFile)

	for _, dir := range []struct{ path, name string }{
		{cfg.StorageDir, "storage"},
		{cfg.DatabaseDir, "database"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logf("  [OK] %s directory is writable", dir.name)
	}

	return cfg, nil
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogStorageInit logs the blob store root and its free space.
func LogStorageInit(root string, freeBytes uint64, factor uint64) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STORAGE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Root:        %s", root)
	logging.Info("  Free space:  %s", formatBytes(int64(freeBytes))) //nolint:gosec // display only
	logging.Info("  Uploads need %dx their size free", factor)
}

// LogMediaInit logs the resize backend that will be used.
func LogMediaInit(backend string, vipsAvailable bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	switch {
	case backend == "vips" && vipsAvailable:
		logging.Info("  [OK] libvips backend enabled")
	case backend == "vips":
		logging.Warn("  libvips failed to start, falling back to imaging")
	default:
		logging.Info("  [OK] imaging backend enabled")
	}
}

// LogReaperInit logs the pending-record reaper schedule.
func LogReaperInit(ttl, interval time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PENDING RECORD REAPER")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Records pending longer than %v are removed every %v", ttl, interval)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api/photos", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
        __          __                            ____
   ___ / /  ___  / /____    _  __ ___ _ __ __ / / /_
  / _ \/ _ \/ _ \/ __/ _ \  | |/ // _ '// // // / __/
 / .__/_//_/\___/\__/\___/  |___/ \_,_/ \_,_//_/\__/
/_/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvInt returns a non-negative integer setting.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvBytes(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := ParseByteSize(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid size for %s: %q, using default: %s", key, value, formatBytes(defaultValue))
		return defaultValue
	}
	return parsed
}

// byteUnits maps size suffixes to multipliers. Decimal-looking suffixes are
// binary, matching what upload limits are usually meant as.
var byteUnits = map[string]int64{
	"":    1,
	"B":   1,
	"K":   1 << 10,
	"KB":  1 << 10,
	"KIB": 1 << 10,
	"M":   1 << 20,
	"MB":  1 << 20,
	"MIB": 1 << 20,
	"G":   1 << 30,
	"GB":  1 << 30,
	"GIB": 1 << 30,
}

// ParseByteSize parses sizes such as "52428800", "50MB" or "1.5GiB".
func ParseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	number, unit := s[:i], strings.TrimSpace(s[i:])

	mult, ok := byteUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", unit)
	}
	n, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n * float64(mult)), nil
}

// formatBytes formats bytes into human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
