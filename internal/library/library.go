package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photo-vault/internal/blobstore"
	"photo-vault/internal/database"
	"photo-vault/internal/fingerprint"
	"photo-vault/internal/ingest"
	"photo-vault/internal/logging"
	"photo-vault/internal/metrics"
	"photo-vault/internal/photo"
	"photo-vault/internal/workers"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults for Config fields left at zero.
const (
	DefaultRecordCacheSize = 1024
	DefaultRecordCacheTTL  = 10 * time.Minute
	DefaultPendingTTL      = time.Hour
)

// Config holds the library settings.
type Config struct {
	RecordCacheSize int
	RecordCacheTTL  time.Duration
	// PendingTTL is the age after which a pending record is considered
	// abandoned by a crashed run.
	PendingTTL time.Duration
	// Workers bounds concurrent ingest runs.
	Workers int
	// Memory holds new runs back while the heap is under pressure.
	Memory Gate
	Now    func() time.Time
}

// Gate blocks until memory-heavy work may start.
type Gate interface {
	Wait(ctx context.Context) error
}

func (c Config) withDefaults() Config {
	if c.RecordCacheSize <= 0 {
		c.RecordCacheSize = DefaultRecordCacheSize
	}
	if c.RecordCacheTTL <= 0 {
		c.RecordCacheTTL = DefaultRecordCacheTTL
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = DefaultPendingTTL
	}
	if c.Workers <= 0 {
		c.Workers = workers.ForCPU(0)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Blob is a stored rendition ready to be served.
type Blob struct {
	Data     []byte
	MimeType string
}

// Library is the photo library.
type Library struct {
	cfg   Config
	db    *database.Database
	blobs *blobstore.Store
	coord *ingest.Coordinator
	sem   *workers.Semaphore
	cache *expirable.LRU[string, *photo.Record]
	log   *logging.Logger
}

// New creates a library over an opened catalog, a blob store and the
// coordinator that writes to both.
func New(cfg Config, db *database.Database, blobs *blobstore.Store, coord *ingest.Coordinator) *Library {
	cfg = cfg.withDefaults()
	return &Library{
		cfg:   cfg,
		db:    db,
		blobs: blobs,
		coord: coord,
		sem:   workers.NewSemaphore(cfg.Workers),
		cache: expirable.NewLRU[string, *photo.Record](cfg.RecordCacheSize, nil, cfg.RecordCacheTTL),
		log:   logging.For("library"),
	}
}

// MaxUploadBytes is the largest payload Ingest accepts.
func (l *Library) MaxUploadBytes() int64 {
	return l.coord.MaxBytes()
}

// Run ingests one upload and returns the tagged pipeline result. ctx only
// bounds the wait for memory and a worker slot: once started, the run
// completes or rolls back regardless of caller cancellation.
func (l *Library) Run(ctx context.Context, req ingest.Request) ingest.Result {
	if l.cfg.Memory != nil {
		if err := l.cfg.Memory.Wait(ctx); err != nil {
			return ingest.Result{
				Outcome: ingest.OutcomeFailed,
				Err:     &photo.StorageError{Op: "wait for memory", Err: err},
			}
		}
	}
	if err := l.sem.Acquire(ctx); err != nil {
		return ingest.Result{
			Outcome: ingest.OutcomeFailed,
			Err:     &photo.StorageError{Op: "wait for ingest slot", Err: err},
		}
	}
	defer l.sem.Release()

	res := l.coord.Run(context.WithoutCancel(ctx), req)
	if res.Outcome == ingest.OutcomeCommitted {
		l.cache.Add(res.Record.ID, res.Record.Clone())
	}
	return res
}

// Ingest stores an upload. A duplicate yields a *photo.DuplicateError.
func (l *Library) Ingest(ctx context.Context, data []byte, filename string, tags []string) (*photo.Record, error) {
	res := l.Run(ctx, ingest.Request{Data: data, Filename: filename, Tags: tags})
	return res.Record, res.AsError()
}

// GetRecord returns a committed record.
func (l *Library) GetRecord(ctx context.Context, id string) (*photo.Record, error) {
	if rec, ok := l.cache.Get(id); ok {
		metrics.RecordCacheHits.Inc()
		return rec.Clone(), nil
	}
	metrics.RecordCacheMisses.Inc()

	rec, err := l.db.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	l.cache.Add(id, rec.Clone())
	return rec, nil
}

// GetBlob returns the bytes and content type of one rendition.
func (l *Library) GetBlob(ctx context.Context, id string, variant photo.Variant) (*Blob, error) {
	rec, err := l.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	key, mimeType := blobKey(rec, variant)
	if key == "" {
		return nil, photo.Invalid(photo.ReasonInvalidArgument, "unknown variant %q", variant)
	}
	data, err := l.blobs.Get(ctx, variant, key)
	if err != nil {
		return nil, err
	}
	return &Blob{Data: data, MimeType: mimeType}, nil
}

// blobKey returns the storage key and content type of a rendition.
func blobKey(rec *photo.Record, variant photo.Variant) (key, mimeType string) {
	switch variant {
	case photo.VariantOriginal:
		return rec.StorageKey, rec.MimeType
	case photo.VariantThumbnail, photo.VariantPreview:
		return blobstore.DerivativeKey(rec.ID, "jpg"), "image/jpeg"
	}
	return "", ""
}

// AddTags merges tags into a committed record and returns the new snapshot.
func (l *Library) AddTags(ctx context.Context, id string, tags []string) (*photo.Record, error) {
	rec, err := l.db.AddTags(ctx, id, tags)
	if err != nil {
		l.cache.Remove(id)
		return nil, err
	}
	l.cache.Add(id, rec.Clone())
	return rec, nil
}

// Delete removes a committed record and its blobs. The record goes first so
// readers stop seeing it; blob deletion failures are logged.
func (l *Library) Delete(ctx context.Context, id string) error {
	rec, err := l.db.DeletePhoto(ctx, id, photo.StatusCommitted)
	l.cache.Remove(id)
	if err != nil {
		return err
	}

	l.removeBlobs(ctx, rec)
	l.log.Info("deleted %s (%s)", id, rec.OriginalFilename)
	return nil
}

// removeBlobs deletes every rendition of rec, logging failures.
func (l *Library) removeBlobs(ctx context.Context, rec *photo.Record) {
	for _, v := range photo.Variants {
		key, _ := blobKey(rec, v)
		if err := l.blobs.Delete(ctx, v, key); err != nil {
			l.log.Error("failed to delete %s blob of %s: %v", v, rec.ID, err)
		}
	}
}

// CheckDuplicate reports the id of the committed record with the given
// fingerprint, or "" when there is none.
func (l *Library) CheckDuplicate(ctx context.Context, fp string) (string, error) {
	fp = fingerprint.Canonical(fp)
	if !fingerprint.Valid(fp) {
		return "", photo.Invalid(photo.ReasonInvalidArgument, "fingerprint must be 64 hex characters")
	}

	id, status, err := l.db.FindByFingerprint(ctx, fp)
	switch {
	case errors.Is(err, photo.ErrNotFound):
		return "", nil
	case err != nil:
		return "", &photo.StorageError{Op: "check duplicate", Err: err}
	case status != photo.StatusCommitted:
		return "", nil
	}
	return id, nil
}

// Search runs a catalog search over committed records.
func (l *Library) Search(ctx context.Context, opts photo.SearchOptions) (*photo.Page, error) {
	if opts.From != nil && opts.To != nil && opts.From.After(*opts.To) {
		return nil, photo.Invalid(photo.ReasonInvalidArgument, "start date is after end date")
	}
	page, err := l.db.Search(ctx, opts)
	if err != nil {
		return nil, &photo.StorageError{Op: "search", Err: err}
	}
	return page, nil
}

// ReapPending deletes pending records older than the configured TTL along
// with any blobs their run left behind. It returns the number reaped.
func (l *Library) ReapPending(ctx context.Context) (int, error) {
	now := l.cfg.Now()
	stale, err := l.db.ListPending(ctx, now.Add(-l.cfg.PendingTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to list pending records: %w", err)
	}

	reaped := 0
	for i := range stale {
		rec := &stale[i]
		if _, err := l.db.DeletePhoto(ctx, rec.ID, photo.StatusPending); err != nil {
			if errors.Is(err, photo.ErrNotFound) {
				continue
			}
			l.log.Error("failed to reap pending record %s: %v", rec.ID, err)
			continue
		}
		l.removeBlobs(ctx, rec)
		reaped++
	}

	if reaped > 0 {
		metrics.PendingReapedTotal.Add(float64(reaped))
		l.log.Warn("reaped %d abandoned pending record(s)", reaped)
	}
	if err := l.db.SetLastReap(ctx, now); err != nil {
		l.log.Warn("failed to record reap time: %v", err)
	}
	return reaped, nil
}

// Stats implements metrics.StatsProvider.
func (l *Library) Stats(ctx context.Context) (metrics.Stats, error) {
	committed, pending, err := l.db.Count(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	free, err := l.blobs.FreeSpace()
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		CommittedPhotos: committed,
		PendingPhotos:   pending,
		FreeBytes:       free,
		DBFileSizes:     l.db.FileSizes(),
		DBOpenConns:     l.db.OpenConnections(),
	}, nil
}
