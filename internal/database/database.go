package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-vault/internal/logging"
	"photo-vault/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// StorageLayout identifies the on-disk blob layout this catalog's storage
// keys refer to.
const StorageLayout = "year-month-v1"

// Database is the SQLite-backed photo catalog.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the catalog at dbPath, which must be the
// full path to the database file inside an existing, writable directory.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=1", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS photos (
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
		status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_photos_capture_time ON photos(capture_time);
	CREATE INDEX IF NOT EXISTS idx_photos_created_at ON photos(created_at);
	CREATE INDEX IF NOT EXISTS idx_photos_camera_model ON photos(camera_model COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_photos_original_name ON photos(original_name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS photo_tags (
		photo_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		PRIMARY KEY (photo_id, tag),
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_photo_tags_tag ON photo_tags(tag);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if err = d.runMigrations(ctx); err != nil {
		return err
	}
	return d.checkStorageLayout(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: catalogs created before ingest tracked row visibility have
	// no status column; every existing row is a finished ingest.
	var statusExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('photos')
		WHERE name='status'
	`).Scan(&statusExists)
	if err != nil {
		return fmt.Errorf("failed to check for status column: %w", err)
	}

	if !statusExists {
		logging.Info("Migrating database: adding status column to photos table")

		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE photos ADD COLUMN status TEXT NOT NULL DEFAULT 'committed'
		`)
		if err != nil {
			return fmt.Errorf("failed to add status column: %w", err)
		}

		logging.Info("Migration complete: status column added")
	}

	if _, err := d.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_photos_status ON photos(status, capture_time)`); err != nil {
		return fmt.Errorf("failed to create status index: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES ('schema_version', '1')
		ON CONFLICT(key) DO NOTHING
	`); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return nil
}

// checkStorageLayout records the blob layout on first start and refuses to
// open a catalog whose keys were written for a different one.
func (d *Database) checkStorageLayout(ctx context.Context) error {
	var layout string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'storage_layout'").Scan(&layout)
	if err == sql.ErrNoRows {
		_, err = d.db.ExecContext(ctx,
			"INSERT INTO metadata (key, value) VALUES ('storage_layout', ?)", StorageLayout)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to read storage layout: %w", err)
	}
	if layout != StorageLayout {
		return fmt.Errorf("catalog uses storage layout %q, this build expects %q", layout, StorageLayout)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the catalog answers queries.
func (d *Database) Ping(ctx context.Context) error {
	var one int
	if err := d.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("catalog unavailable: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// OpenConnections returns the number of open connections in the pool.
func (d *Database) OpenConnections() int {
	return d.db.Stats().OpenConnections
}

// FileSizes returns the sizes of the main, WAL and SHM files. Missing files
// are omitted.
func (d *Database) FileSizes() map[string]int64 {
	sizes := make(map[string]int64, 3)
	for label, path := range map[string]string{
		"main": d.dbPath,
		"wal":  d.dbPath + "-wal",
		"shm":  d.dbPath + "-shm",
	} {
		if info, err := os.Stat(path); err == nil {
			sizes[label] = info.Size()
		}
	}
	return sizes
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("Database file %s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", path)
		}
	}

	return nil
}
