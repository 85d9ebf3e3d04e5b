package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{"Returns default when env var not set", "TEST_UNSET_VAR", "default", "", "default", false},
		{"Returns env value when set", "TEST_SET_VAR", "default", "custom", "custom", true},
		{"Returns default when env var is empty", "TEST_EMPTY_VAR", "default", "", "default", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}

			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"", true, true},
		{"true", false, true},
		{"0", true, false},
		{"T", false, true},
		{"yes", true, true},
		{"yes", false, false},
	}

	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}

func TestGetEnvIntAndDuration(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := getEnvInt("TEST_INT", 7); got != 42 {
		t.Errorf("getEnvInt = %d, want 42", got)
	}
	t.Setenv("TEST_INT", "-3")
	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt(negative) = %d, want default 7", got)
	}
	t.Setenv("TEST_INT", "many")
	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt(garbage) = %d, want default 7", got)
	}

	t.Setenv("TEST_DURATION", "90s")
	if got := getEnvDuration("TEST_DURATION", time.Hour); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want 90s", got)
	}
	t.Setenv("TEST_DURATION", "0s")
	if got := getEnvDuration("TEST_DURATION", time.Hour); got != time.Hour {
		t.Errorf("getEnvDuration(0s) = %v, want default", got)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"52428800", 52428800, false},
		{"50MB", 50 << 20, false},
		{"50mb", 50 << 20, false},
		{" 2 GiB ", 2 << 30, false},
		{"1.5K", 1536, false},
		{"512B", 512, false},
		{"10TB", 0, true},
		{"MB", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseByteSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1024, "1.0 KiB"},
		{1572864, "1.5 MiB"},
		{52428800, "50.0 MiB"},
		{123456789012, "115.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORAGE_DIR", filepath.Join(dir, "photos"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "db"))
	t.Setenv("MAX_UPLOAD_SIZE", "10MB")
	t.Setenv("RESIZE_BACKEND", "GPU")
	t.Setenv("JPEG_QUALITY", "150")
	t.Setenv("PENDING_TTL", "30m")
	t.Setenv("THUMBNAIL_SIZE", "")

	cfg, err := ReadConfig()
	if err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	if cfg.MaxUploadSize != 10<<20 {
		t.Errorf("MaxUploadSize = %d, want 10 MiB", cfg.MaxUploadSize)
	}
	if cfg.ResizeBackend != "imaging" {
		t.Errorf("ResizeBackend = %q, want imaging fallback", cfg.ResizeBackend)
	}
	if cfg.JPEGQuality != 85 {
		t.Errorf("JPEGQuality = %d, want 85", cfg.JPEGQuality)
	}
	if cfg.PendingTTL != 30*time.Minute || cfg.ThumbnailSize != 300 || cfg.PreviewSize != 1280 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DatabasePath != filepath.Join(dir, "db", DatabaseFile) {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	for _, d := range []string{cfg.StorageDir, cfg.DatabaseDir} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", d, err)
		}
	}
}

func TestReadConfigRejectsFileAsDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STORAGE_DIR", file)
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "db"))

	if _, err := ReadConfig(); err == nil {
		t.Error("ReadConfig() succeeded with a file as STORAGE_DIR")
	}
}

func TestGetRoutesAndGroups(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/photos/{id}", nil).Methods("GET", "DELETE")
	r.HandleFunc("/healthz", nil)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("GetRoutes() returned %d routes, want 3: %+v", len(routes), routes)
	}
	if routes[2].Method != "*" {
		t.Errorf("route without methods = %q, want *", routes[2].Method)
	}

	tests := map[string]string{
		"/api/photos/{id}":   "api/photos",
		"/api/photos/upload": "api/photos",
		"/healthz":           "healthz",
		"/":                  "",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}
