package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"photo-vault/internal/filesystem"
	"photo-vault/internal/logging"
	"photo-vault/internal/metrics"
	"photo-vault/internal/photo"
)

// DefaultFreeSpaceFactor is the headroom required for an original: the
// original plus a thumbnail and a preview.
const DefaultFreeSpaceFactor = 3

// ErrInsufficientSpace is wrapped by the StorageError returned when the
// volume cannot take an original.
var ErrInsufficientSpace = errors.New("insufficient free space")

// Config configures a Store.
type Config struct {
	Root            string
	FreeSpaceFactor uint64
	// FreeSpace reports the available bytes for path. Defaults to
	// filesystem.FreeSpace.
	FreeSpace func(path string) (uint64, error)
	Retry     filesystem.RetryConfig
}

// Store is a filesystem-backed blob store.
type Store struct {
	root      string
	factor    uint64
	freeSpace func(string) (uint64, error)
	retry     filesystem.RetryConfig
	log       *logging.Logger
}

// New creates the namespace directories below cfg.Root and returns a Store.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob store root: %w", err)
	}

	if cfg.FreeSpaceFactor == 0 {
		cfg.FreeSpaceFactor = DefaultFreeSpaceFactor
	}
	if cfg.FreeSpace == nil {
		cfg.FreeSpace = filesystem.FreeSpace
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialBackoff == 0 {
		cfg.Retry = filesystem.DefaultRetryConfig()
	}

	for _, ns := range photo.Variants {
		dir := filepath.Join(root, string(ns))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", ns, err)
		}
	}

	return &Store{
		root:      root,
		factor:    cfg.FreeSpaceFactor,
		freeSpace: cfg.FreeSpace,
		retry:     cfg.Retry,
		log:       logging.For("blobstore"),
	}, nil
}

// Root returns the absolute storage root.
func (s *Store) Root() string {
	return s.root
}

// NamespaceDir returns the directory holding ns.
func (s *Store) NamespaceDir(ns photo.Variant) string {
	return filepath.Join(s.root, string(ns))
}

// OriginalKey returns the sharded key of an original: "yyyy/mm/id.ext".
// The capture time is taken in UTC.
func OriginalKey(id string, captured time.Time, ext string) string {
	captured = captured.UTC()
	return fmt.Sprintf("%04d/%02d/%s.%s", captured.Year(), int(captured.Month()), id, ext)
}

// DerivativeKey returns the flat key of a thumbnail or preview.
func DerivativeKey(id, ext string) string {
	return id + "." + ext
}

// Path resolves key within ns to an absolute path. Keys that are empty,
// absolute, or that escape the namespace are rejected.
func (s *Store) Path(ns photo.Variant, key string) (string, error) {
	if _, ok := photo.ParseVariant(string(ns)); !ok {
		return "", photo.Invalid(photo.ReasonInvalidArgument, "unknown namespace %q", ns)
	}
	if key == "" || filepath.IsAbs(key) || strings.Contains(key, "\\") {
		return "", photo.Invalid(photo.ReasonInvalidArgument, "invalid blob key %q", key)
	}
	clean := filepath.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || clean != key {
		return "", photo.Invalid(photo.ReasonInvalidArgument, "invalid blob key %q", key)
	}
	return filepath.Join(s.root, string(ns), clean), nil
}

// FreeSpace returns the bytes available on the storage volume.
func (s *Store) FreeSpace() (uint64, error) {
	return s.freeSpace(s.root)
}

// CheckSpace fails with a *photo.StorageError wrapping ErrInsufficientSpace
// when fewer than factor×size bytes are available.
func (s *Store) CheckSpace(size int64) error {
	free, err := s.FreeSpace()
	if err != nil {
		return &photo.StorageError{Op: "check free space", Path: s.root, Err: err}
	}
	need := uint64(size) * s.factor //nolint:gosec // size is a byte count
	if free < need {
		metrics.StorageInsufficientSpaceTotal.Inc()
		return &photo.StorageError{
			Op:   "check free space",
			Path: s.root,
			Err:  fmt.Errorf("%w: need %d bytes, %d available", ErrInsufficientSpace, need, free),
		}
	}
	return nil
}

// PutOriginal verifies free space and then writes an original.
func (s *Store) PutOriginal(ctx context.Context, key string, data []byte) error {
	if err := s.CheckSpace(int64(len(data))); err != nil {
		return err
	}
	return s.Put(ctx, photo.VariantOriginal, key, data)
}

// Put writes data under key in ns, replacing any existing blob.
func (s *Store) Put(ctx context.Context, ns photo.Variant, key string, data []byte) error {
	path, err := s.Path(ns, key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &photo.StorageError{Op: "write", Path: path, Err: err}
	}

	if err := filesystem.WriteFileAtomic(path, data, 0o644); err != nil {
		metrics.BlobWritesTotal.WithLabelValues(string(ns), "error").Inc()
		return &photo.StorageError{Op: "write", Path: path, Err: err}
	}

	metrics.BlobWritesTotal.WithLabelValues(string(ns), "success").Inc()
	metrics.BlobBytesWritten.WithLabelValues(string(ns)).Add(float64(len(data)))
	s.log.Debug("stored %s/%s (%d bytes)", ns, key, len(data))
	return nil
}

// Get reads the blob under key in ns. A missing blob yields an error
// wrapping photo.ErrNotFound.
func (s *Store) Get(_ context.Context, ns photo.Variant, key string) ([]byte, error) {
	path, err := s.Path(ns, key)
	if err != nil {
		return nil, err
	}

	data, err := filesystem.ReadFileWithRetry(path, s.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, photo.NotFound(string(ns)+" blob", key)
		}
		return nil, &photo.StorageError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Exists reports whether a blob is present.
func (s *Store) Exists(ns photo.Variant, key string) (bool, error) {
	path, err := s.Path(ns, key)
	if err != nil {
		return false, err
	}

	_, err = filesystem.StatWithRetry(path, s.retry)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &photo.StorageError{Op: "stat", Path: path, Err: err}
}

// Delete removes the blob under key in ns. Deleting a missing blob succeeds.
func (s *Store) Delete(_ context.Context, ns photo.Variant, key string) error {
	path, err := s.Path(ns, key)
	if err != nil {
		return err
	}

	if err := filesystem.Remove(path); err != nil {
		metrics.BlobDeletesTotal.WithLabelValues(string(ns), "error").Inc()
		return &photo.StorageError{Op: "delete", Path: path, Err: err}
	}
	metrics.BlobDeletesTotal.WithLabelValues(string(ns), "success").Inc()
	return nil
}
