package metrics

import (
	"errors"
	"io/fs"
	"syscall"

	"photo-vault/internal/filesystem"
)

// storageObserver feeds filesystem events into the storage metrics.
type storageObserver struct{}

// NewFilesystemObserver returns the observer main installs with
// filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return storageObserver{}
}

// errorKind buckets an I/O error for the kind label. A full disk is the
// failure operators act on, so it gets its own series.
func errorKind(err error) string {
	switch {
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return "no_space"
	case errors.Is(err, fs.ErrPermission):
		return "permission"
	case errors.Is(err, fs.ErrNotExist):
		return "not_found"
	case filesystem.IsStaleError(err):
		return "stale"
	default:
		return "other"
	}
}

func (storageObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation, errorKind(err)).Inc()
	}
}

func (storageObserver) ObserveRetryAttempt(retryOp, volume string) {
	FilesystemRetryAttempts.WithLabelValues(retryOp, volume).Inc()
}

func (storageObserver) ObserveRetrySuccess(retryOp, volume string) {
	FilesystemRetrySuccess.WithLabelValues(retryOp, volume).Inc()
}

func (storageObserver) ObserveRetryFailure(retryOp, volume string) {
	FilesystemRetryFailures.WithLabelValues(retryOp, volume).Inc()
}

func (storageObserver) ObserveRetryDuration(retryOp, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(retryOp, volume).Observe(durationSeconds)
}

func (storageObserver) ObserveStaleError(retryOp, volume string) {
	FilesystemStaleErrors.WithLabelValues(retryOp, volume).Inc()
}
