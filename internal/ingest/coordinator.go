package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"photo-vault/internal/blobstore"
	"photo-vault/internal/database"
	"photo-vault/internal/fingerprint"
	"photo-vault/internal/logging"
	"photo-vault/internal/media"
	"photo-vault/internal/mediatypes"
	"photo-vault/internal/metrics"
	"photo-vault/internal/photo"

	"github.com/google/uuid"
)

// DefaultMaxBytes is the default upload ceiling.
const DefaultMaxBytes = 50 << 20

// rollbackTimeout bounds the cleanup of a failed run.
const rollbackTimeout = 30 * time.Second

// Catalog is the subset of the catalog the pipeline writes to.
type Catalog interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (string, photo.Status, error)
	CreatePhoto(ctx context.Context, rec *photo.Record) error
	CommitPhoto(ctx context.Context, id string) error
	DeletePhoto(ctx context.Context, id string, status photo.Status) (*photo.Record, error)
}

// BlobStore is the subset of the blob store the pipeline writes to.
type BlobStore interface {
	PutOriginal(ctx context.Context, key string, data []byte) error
	Put(ctx context.Context, ns photo.Variant, key string, data []byte) error
	Delete(ctx context.Context, ns photo.Variant, key string) error
}

// Derivatives renders the thumbnail and preview of an original.
type Derivatives interface {
	Generate(ctx context.Context, data []byte) (thumb, preview *media.Derivative, err error)
}

// Extractor reads embedded metadata. It never fails.
type Extractor interface {
	Extract(data []byte) photo.Metadata
}

// Config holds the validation limits and the injectable clock.
type Config struct {
	MaxBytes  int64
	MaxPixels int
	Allowed   mediatypes.AllowList
	Now       func() time.Time
	NewID     func() string
}

func (c Config) withDefaults() Config {
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = media.DefaultMaxPixels
	}
	if c.Allowed == nil {
		c.Allowed = mediatypes.NewAllowList(mediatypes.DefaultAllowed)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return c
}

// Request is one upload.
type Request struct {
	Data     []byte
	Filename string
	Tags     []string
}

// Result is the tagged outcome of Run.
type Result struct {
	Outcome Outcome
	// Record is set when Outcome is OutcomeCommitted.
	Record *photo.Record
	// DuplicateOf is the winning record id when Outcome is OutcomeDuplicate.
	DuplicateOf string
	// Err is set when Outcome is OutcomeFailed.
	Err error
	// Stage is the last stage reached: StageCommitted on success,
	// StageRolledBack when cleanup ran.
	Stage Stage
	// FailedStage is the stage that ended a non-committed run.
	FailedStage Stage
}

// AsError folds the result into the error taxonomy: nil when committed, a
// *photo.DuplicateError for duplicates, Err otherwise.
func (r Result) AsError() error {
	switch r.Outcome {
	case OutcomeCommitted:
		return nil
	case OutcomeDuplicate:
		return &photo.DuplicateError{ExistingID: r.DuplicateOf}
	default:
		return r.Err
	}
}

// Coordinator runs uploads through the pipeline.
type Coordinator struct {
	cfg       Config
	catalog   Catalog
	blobs     BlobStore
	derive    Derivatives
	extractor Extractor
	log       *logging.Logger
}

// New creates a coordinator.
func New(cfg Config, catalog Catalog, blobs BlobStore, derive Derivatives, extractor Extractor) *Coordinator {
	return &Coordinator{
		cfg:       cfg.withDefaults(),
		catalog:   catalog,
		blobs:     blobs,
		derive:    derive,
		extractor: extractor,
		log:       logging.For("ingest"),
	}
}

// MaxBytes returns the effective upload ceiling.
func (c *Coordinator) MaxBytes() int64 {
	return c.cfg.MaxBytes
}

// blobRef is a blob written by the current run.
type blobRef struct {
	ns  photo.Variant
	key string
}

// cleanup records the side effects of a run so rollback can undo them.
type cleanup struct {
	recordID string
	blobs    []blobRef
}

func (cl *cleanup) addBlob(ns photo.Variant, key string) {
	cl.blobs = append(cl.blobs, blobRef{ns: ns, key: key})
}

func (cl *cleanup) empty() bool {
	return cl.recordID == "" && len(cl.blobs) == 0
}

// validated is what validation learned about the payload.
type validated struct {
	mimeType string
	ext      string
	width    int
	height   int
}

// Run executes the pipeline for req. ctx is expected to be detached from
// caller cancellation; rollback runs on a context of its own either way.
func (c *Coordinator) Run(ctx context.Context, req Request) (res Result) {
	metrics.IngestInFlight.Inc()
	defer metrics.IngestInFlight.Dec()

	var cl cleanup
	stage := StageValidating
	stageStart := time.Now()
	enter := func(next Stage) {
		metrics.IngestStageDuration.WithLabelValues(stage.String()).Observe(time.Since(stageStart).Seconds())
		stage = next
		stageStart = time.Now()
	}

	defer func() {
		if res.Outcome != OutcomeCommitted {
			res.FailedStage = stage
			res.Stage = stage
			if !cl.empty() {
				c.rollback(ctx, &cl)
				res.Stage = StageRolledBack
				metrics.IngestRollbacksTotal.WithLabelValues(stage.String()).Inc()
			}
		}
		metrics.IngestTotal.WithLabelValues(resultLabel(res)).Inc()
	}()

	fail := func(err error) Result {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	// Validating
	v, err := c.validate(req.Data)
	if err != nil {
		return fail(err)
	}
	tags := photo.NormalizeTags(req.Tags)
	filename := displayName(req.Filename, v.ext)

	enter(StageHashing)
	fp := fingerprint.Sum(req.Data)

	enter(StageDuplicateCheck)
	existing, _, err := c.catalog.FindByFingerprint(ctx, fp)
	switch {
	case err == nil:
		c.log.Info("rejected %s: duplicate of %s", filename, existing)
		return Result{Outcome: OutcomeDuplicate, DuplicateOf: existing}
	case !errors.Is(err, photo.ErrNotFound):
		return fail(&photo.StorageError{Op: "check duplicate", Err: err})
	}

	enter(StageExtractingMetadata)
	md := c.extractor.Extract(req.Data)
	now := c.cfg.Now().UTC()
	captured := now.Truncate(time.Second)
	if md.CaptureDate != nil {
		captured = *md.CaptureDate
	}
	if !md.HasDimensions() {
		w, h := v.width, v.height
		md.Width, md.Height = &w, &h
	}

	enter(StageStoringOriginal)
	id := c.cfg.NewID()
	key := blobstore.OriginalKey(id, captured, v.ext)
	if err := c.blobs.PutOriginal(ctx, key, req.Data); err != nil {
		return fail(err)
	}
	cl.addBlob(photo.VariantOriginal, key)

	enter(StagePersistingRecord)
	rec := &photo.Record{
		ID:               id,
		OriginalFilename: filename,
		StorageKey:       key,
		FileSize:         int64(len(req.Data)),
		MimeType:         v.mimeType,
		CaptureDate:      &captured,
		Width:            md.Width,
		Height:           md.Height,
		CameraModel:      md.CameraModel,
		ISO:              md.ISO,
		Aperture:         md.Aperture,
		ShutterSpeed:     md.ShutterSpeed,
		FocalLength:      md.FocalLength,
		Fingerprint:      fp,
		Tags:             tags,
		CreatedAt:        now,
	}
	if err := c.catalog.CreatePhoto(ctx, rec); err != nil {
		if errors.Is(err, database.ErrFingerprintExists) {
			return c.lostRace(ctx, fp, filename)
		}
		return fail(&photo.StorageError{Op: "persist record", Err: err})
	}
	cl.recordID = id

	enter(StageGeneratingDerivatives)
	thumb, preview, err := c.derive.Generate(ctx, req.Data)
	if err != nil {
		if !photo.IsProcessing(err) {
			err = &photo.ProcessingError{Op: "generate derivatives", Err: err}
		}
		return fail(err)
	}
	for _, d := range []*media.Derivative{thumb, preview} {
		dkey := blobstore.DerivativeKey(id, d.Extension())
		if err := c.blobs.Put(ctx, d.Variant, dkey, d.Data); err != nil {
			return fail(err)
		}
		cl.addBlob(d.Variant, dkey)
	}

	if err := c.catalog.CommitPhoto(ctx, id); err != nil {
		return fail(&photo.StorageError{Op: "commit record", Err: err})
	}
	enter(StageCommitted)
	rec.Status = photo.StatusCommitted

	metrics.IngestBytesTotal.Add(float64(rec.FileSize))
	c.log.Info("ingested %s as %s (%s, %d bytes)", filename, id, v.mimeType, rec.FileSize)
	return Result{Outcome: OutcomeCommitted, Record: rec, Stage: StageCommitted}
}

// Ingest runs the pipeline and folds the result into (record, error).
func (c *Coordinator) Ingest(ctx context.Context, req Request) (*photo.Record, error) {
	res := c.Run(ctx, req)
	return res.Record, res.AsError()
}

// validate rejects payloads before any side effect.
func (c *Coordinator) validate(data []byte) (validated, error) {
	if len(data) == 0 {
		return validated{}, photo.Invalid(photo.ReasonEmpty, "file is empty")
	}
	if int64(len(data)) > c.cfg.MaxBytes {
		return validated{}, photo.Invalid(photo.ReasonTooLarge,
			"file is %d bytes, the limit is %d", len(data), c.cfg.MaxBytes)
	}

	mimeType := mediatypes.Detect(data)
	if !c.cfg.Allowed.Allows(mimeType) {
		return validated{}, photo.Invalid(photo.ReasonUnsupportedType,
			"file type %s is not supported", mimeType)
	}

	dims, _, err := media.ProbeDimensions(data)
	if err != nil {
		return validated{}, photo.Invalid(photo.ReasonCorrupt, "image cannot be read: %v", err)
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return validated{}, photo.Invalid(photo.ReasonCorrupt, "image has no pixels")
	}
	if dims.Pixels() > c.cfg.MaxPixels {
		return validated{}, photo.Invalid(photo.ReasonTooLarge,
			"image is %dx%d, the limit is %d pixels", dims.Width, dims.Height, c.cfg.MaxPixels)
	}

	return validated{
		mimeType: mimeType,
		ext:      mediatypes.Extension(mimeType),
		width:    dims.Width,
		height:   dims.Height,
	}, nil
}

// lostRace handles a uniqueness violation at persist time: another run
// inserted the same fingerprint after our pre-check.
func (c *Coordinator) lostRace(ctx context.Context, fp, filename string) Result {
	winner, _, err := c.catalog.FindByFingerprint(ctx, fp)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: &photo.StorageError{
			Op:  "resolve duplicate",
			Err: fmt.Errorf("fingerprint %s conflicts but cannot be read back: %w", fp, err),
		}}
	}
	c.log.Info("rejected %s: concurrent duplicate of %s", filename, winner)
	return Result{Outcome: OutcomeDuplicate, DuplicateOf: winner}
}

// rollback undoes the side effects in cl. Failures are logged and counted.
func (c *Coordinator) rollback(ctx context.Context, cl *cleanup) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	if cl.recordID != "" {
		if _, err := c.catalog.DeletePhoto(ctx, cl.recordID, photo.StatusPending); err != nil && !errors.Is(err, photo.ErrNotFound) {
			c.log.Error("rollback: failed to delete record %s: %v", cl.recordID, err)
			metrics.IngestRollbackFailures.WithLabelValues("record").Inc()
		}
	}

	for i := len(cl.blobs) - 1; i >= 0; i-- {
		b := cl.blobs[i]
		if err := c.blobs.Delete(ctx, b.ns, b.key); err != nil {
			c.log.Error("rollback: failed to delete %s blob %s: %v", b.ns, b.key, err)
			metrics.IngestRollbackFailures.WithLabelValues(string(b.ns)).Inc()
		}
	}

	c.log.Warn("rolled back ingest (record %q, %d blobs)", cl.recordID, len(cl.blobs))
}

// displayName keeps the base name of the declared filename for display.
func displayName(declared, ext string) string {
	name := strings.TrimSpace(declared)
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		return "upload." + ext
	}
	return name
}

func resultLabel(res Result) string {
	switch {
	case res.Outcome == OutcomeCommitted:
		return "committed"
	case res.Outcome == OutcomeDuplicate:
		return "duplicate"
	case photo.IsValidation(res.Err):
		return "invalid"
	default:
		return "failed"
	}
}
