package handlers

import (
	"context"
	"time"

	"photo-vault/internal/ingest"
	"photo-vault/internal/library"
	"photo-vault/internal/photo"
	"photo-vault/internal/streaming"
)

// Library is what the handlers need from the photo library.
type Library interface {
	Run(ctx context.Context, req ingest.Request) ingest.Result
	GetRecord(ctx context.Context, id string) (*photo.Record, error)
	GetBlob(ctx context.Context, id string, variant photo.Variant) (*library.Blob, error)
	AddTags(ctx context.Context, id string, tags []string) (*photo.Record, error)
	Delete(ctx context.Context, id string) error
	CheckDuplicate(ctx context.Context, fingerprint string) (string, error)
	Search(ctx context.Context, opts photo.SearchOptions) (*photo.Page, error)
	MaxUploadBytes() int64
}

// Pinger reports whether the catalog is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serves the photo API.
type Handlers struct {
	lib       Library
	db        Pinger
	stream    streaming.Config
	startTime time.Time
}

// New creates the handlers.
func New(lib Library, db Pinger) *Handlers {
	return &Handlers{
		lib:       lib,
		db:        db,
		stream:    streaming.DefaultConfig(),
		startTime: time.Now(),
	}
}
