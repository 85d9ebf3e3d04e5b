package startup

import (
	"context"
	"fmt"
	"time"

	"photo-vault/internal/blobstore"
	"photo-vault/internal/database"
	"photo-vault/internal/ingest"
	"photo-vault/internal/library"
	"photo-vault/internal/logging"
	"photo-vault/internal/media"
	"photo-vault/internal/memory"
	"photo-vault/internal/metadata"
)

// Stack is the photo library together with the catalog, blob store and
// memory monitor it runs on.
type Stack struct {
	DB      *database.Database
	Blobs   *blobstore.Store
	Library *library.Library
	Monitor *memory.Monitor
}

// OpenStack opens the catalog and blob store described by cfg and
// assembles the library over them. The memory monitor is started; Close
// stops it.
func OpenStack(ctx context.Context, cfg *Config) (*Stack, error) {
	dbStart := time.Now()
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	LogDatabaseInit(time.Since(dbStart))

	blobs, err := blobstore.New(blobstore.Config{
		Root:            cfg.StorageDir,
		FreeSpaceFactor: cfg.FreeSpaceFactor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	free, err := blobs.FreeSpace()
	if err != nil {
		logging.Warn("Could not read free space under %s: %v", blobs.Root(), err)
	}
	LogStorageInit(blobs.Root(), free, cfg.FreeSpaceFactor)

	backend := media.ParseBackend(cfg.ResizeBackend)
	if backend == media.BackendVips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to imaging: %v", err)
		}
	}
	LogMediaInit(string(backend), media.IsVipsAvailable())

	generator := media.NewGenerator(media.Config{
		ThumbnailSize: cfg.ThumbnailSize,
		PreviewSize:   cfg.PreviewSize,
		Quality:       cfg.JPEGQuality,
		Backend:       backend,
	})
	coord := ingest.New(ingest.Config{MaxBytes: cfg.MaxUploadSize},
		db, blobs, generator, metadata.NewExtractor())

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	lib := library.New(library.Config{
		RecordCacheSize: cfg.RecordCacheSize,
		RecordCacheTTL:  cfg.RecordCacheTTL,
		PendingTTL:      cfg.PendingTTL,
		Workers:         cfg.IngestWorkers,
		Memory:          monitor,
	}, db, blobs, coord)

	return &Stack{
		DB:      db,
		Blobs:   blobs,
		Library: lib,
		Monitor: monitor,
	}, nil
}

// Close stops the monitor, shuts libvips down and closes the catalog.
func (s *Stack) Close() error {
	s.Monitor.Stop()
	media.ShutdownVips()
	return s.DB.Close()
}
