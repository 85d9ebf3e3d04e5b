package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photo-vault/internal/photo"
)

// setupTestDB creates a catalog in a temporary directory.
func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, dbPath
}

func TestNewDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	ctx := context.Background()
	version, err := db.GetMetadata(ctx, "schema_version")
	if err != nil || version != "1" {
		t.Errorf("schema_version = %q, %v", version, err)
	}
	layout, err := db.GetMetadata(ctx, "storage_layout")
	if err != nil || layout != StorageLayout {
		t.Errorf("storage_layout = %q, %v", layout, err)
	}
}

func TestPing(t *testing.T) {
	db, _ := setupTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close succeeded")
	}
}

func TestNewDatabaseReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.CreatePhoto(ctx, testRecord("a", "fp-a")); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db, err = New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if _, _, err := db.FindByFingerprint(ctx, "fp-a"); err != nil {
		t.Errorf("row lost across reopen: %v", err)
	}
}

func TestNewDatabaseLayoutMismatch(t *testing.T) {
	db, dbPath := setupTestDB(t)
	ctx := context.Background()

	if err := db.SetMetadata(ctx, "storage_layout", "flat-v0"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := New(ctx, dbPath); err == nil || !strings.Contains(err.Error(), "storage layout") {
		t.Errorf("New() error = %v, want storage layout mismatch", err)
	}
}

func TestMigrationAddsStatusColumn(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	ctx := context.Background()

	raw, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_, err = raw.ExecContext(ctx, `
		CREATE TABLE photos (
			id TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			storage_key TEXT NOT NULL UNIQUE,
			byte_size INTEGER NOT NULL,
			mime_type TEXT NOT NULL,
			capture_time INTEGER,
			pixel_width INTEGER,
			pixel_height INTEGER,
			camera_model TEXT,
			iso TEXT,
			aperture TEXT,
			shutter_speed TEXT,
			focal_length INTEGER,
			fingerprint TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		INSERT INTO photos (id, original_name, storage_key, byte_size, mime_type, fingerprint, created_at, updated_at)
		VALUES ('old', 'old.jpg', '2020/01/old.jpg', 10, 'image/jpeg', 'fp-old', 1577836800, 1577836800);
	`)
	if err != nil {
		t.Fatal(err)
	}
	_ = raw.Close()

	db, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New() on legacy catalog failed: %v", err)
	}
	defer db.Close()

	rec, err := db.GetPhoto(ctx, "old")
	if err != nil {
		t.Fatalf("legacy row not visible after migration: %v", err)
	}
	if rec.Status != photo.StatusCommitted {
		t.Errorf("Status = %q, want committed", rec.Status)
	}
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{"successful query", "test_operation", nil},
		{"failed query", "test_operation", errors.New("test error")},
		{"empty operation name", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			recordQuery(tt.operation, time.Now(), tt.err)
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.GetMetadata(ctx, "missing"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("GetMetadata(missing) error = %v, want ErrNotFound", err)
	}

	if err := db.SetMetadata(ctx, "k", "v1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetMetadata(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMetadata(ctx, "k"); err != nil || v != "v2" {
		t.Errorf("GetMetadata() = %q, %v; want v2", v, err)
	}

	last, err := db.GetLastReap(ctx)
	if err != nil || !last.IsZero() {
		t.Errorf("GetLastReap() before any reap = %v, %v", last, err)
	}
	when := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)
	if err := db.SetLastReap(ctx, when); err != nil {
		t.Fatal(err)
	}
	if last, err := db.GetLastReap(ctx); err != nil || !last.Equal(when) {
		t.Errorf("GetLastReap() = %v, %v; want %v", last, err, when)
	}
}

func TestFileSizesAndVacuum(t *testing.T) {
	db, _ := setupTestDB(t)

	if err := db.Vacuum(context.Background()); err != nil {
		t.Fatalf("Vacuum() error = %v", err)
	}
	sizes := db.FileSizes()
	if sizes["main"] <= 0 {
		t.Errorf("main file size = %d, want > 0", sizes["main"])
	}
	if db.OpenConnections() < 0 {
		t.Error("OpenConnections() negative")
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct{ in, want string }{
		{"canon", "canon"},
		{"100%", `100\%`},
		{"img_01", `img\_01`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
