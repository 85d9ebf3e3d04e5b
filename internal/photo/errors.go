package photo

import (
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by every lookup that misses.
var ErrNotFound = errors.New("not found")

// NotFound wraps ErrNotFound with the kind and key that were looked up.
func NotFound(kind, key string) error {
	return fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}

// ValidationReason classifies a rejected upload.
type ValidationReason string

const (
	ReasonEmpty           ValidationReason = "empty"
	ReasonTooLarge        ValidationReason = "too_large"
	ReasonUnsupportedType ValidationReason = "unsupported_type"
	ReasonCorrupt         ValidationReason = "corrupt"
	ReasonInvalidArgument ValidationReason = "invalid_argument"
)

// ValidationError reports caller input that was rejected before any side
// effect took place.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Message
}

// Invalid builds a ValidationError.
func Invalid(reason ValidationReason, format string, args ...interface{}) error {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// DuplicateError signals that identical content is already cataloged.
type DuplicateError struct {
	ExistingID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate of photo %s", e.ExistingID)
}

// ProcessingError reports a codec failure on otherwise valid input.
type ProcessingError struct {
	Op  string
	Err error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// StorageError reports an I/O failure in the blob store or catalog. These
// may be transient.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsDuplicate returns the existing id when err is a DuplicateError.
func IsDuplicate(err error) (string, bool) {
	var d *DuplicateError
	if errors.As(err, &d) {
		return d.ExistingID, true
	}
	return "", false
}

// IsProcessing reports whether err is a ProcessingError.
func IsProcessing(err error) bool {
	var p *ProcessingError
	return errors.As(err, &p)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
