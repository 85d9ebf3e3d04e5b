package streaming

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates a chunk did not drain within WriteTimeout,
	// usually because the client reads too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates the request context ended before the body
	// was sent.
	ErrClientGone = errors.New("client disconnected")
)

// Config controls how a body is sent.
type Config struct {
	// WriteTimeout bounds the time a single chunk may take to drain
	WriteTimeout time.Duration
	// ChunkSize is the number of bytes written between deadline resets
	ChunkSize int
}

// DefaultConfig returns the settings used for image responses.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	return c
}

// Write sends data to w in chunks, giving each chunk WriteTimeout to drain
// and flushing after it. Writers without deadline support are written
// without one. It returns the number of bytes sent.
func Write(ctx context.Context, w http.ResponseWriter, data []byte, config Config) (int64, error) {
	config = config.withDefaults()
	rc := http.NewResponseController(w)
	deadlines := true

	var written int64
	for len(data) > 0 {
		if ctx.Err() != nil {
			return written, ErrClientGone
		}

		if deadlines {
			err := rc.SetWriteDeadline(time.Now().Add(config.WriteTimeout))
			if errors.Is(err, http.ErrNotSupported) {
				deadlines = false
			}
		}

		n := min(config.ChunkSize, len(data))
		m, err := w.Write(data[:n])
		written += int64(m)
		if err != nil {
			return written, classify(ctx, err)
		}
		data = data[n:]

		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return written, classify(ctx, err)
		}
	}

	if deadlines {
		_ = rc.SetWriteDeadline(time.Time{})
	}
	return written, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrWriteTimeout
	case ctx.Err() != nil:
		return ErrClientGone
	default:
		return err
	}
}
