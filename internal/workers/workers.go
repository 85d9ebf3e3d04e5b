package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the variable that pins the worker count.
const OverrideEnv = "INGEST_WORKERS"

// Count returns a worker count of GOMAXPROCS scaled by multiplier, at least
// one and at most limit (0 means no limit). INGEST_WORKERS overrides the
// calculation but still honours limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	// GOMAXPROCS follows the container CPU quota
	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns worker count for CPU-bound tasks such as decode and resize.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for read-decode-write tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}

// Semaphore bounds the number of concurrent holders.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore returns a semaphore with n slots; n below one is treated as one.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	// A free slot wins over a done context.
	select {
	case s.slots <- struct{}{}:
		return nil
	default:
	}

	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s *Semaphore) Release() {
	<-s.slots
}

// Size returns the number of slots.
func (s *Semaphore) Size() int {
	return cap(s.slots)
}

// InUse returns the number of slots currently held.
func (s *Semaphore) InUse() int {
	return len(s.slots)
}
