package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"photo-vault/internal/startup"
)

// reaper is the part of the library the reap command needs.
type reaper interface {
	ReapPending(ctx context.Context) (int, error)
}

func showStatus(ctx context.Context, stack *startup.Stack, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	committed, pending, err := stack.DB.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count photos: %w", err)
	}

	fmt.Fprintf(out, "Catalog:      %s\n", stack.DB.Path())
	fmt.Fprintf(out, "Storage:      %s\n", stack.Blobs.Root())
	fmt.Fprintf(out, "Photos:       %d\n", committed)
	fmt.Fprintf(out, "Pending:      %d\n", pending)

	if free, err := stack.Blobs.FreeSpace(); err != nil {
		fmt.Fprintf(out, "Free space:   unknown (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Free space:   %s\n", humanBytes(free))
	}

	last, err := stack.DB.GetLastReap(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("failed to read last reap time: %w", err)
	case last.IsZero():
		fmt.Fprintln(out, "Last reap:    never")
	default:
		fmt.Fprintf(out, "Last reap:    %s\n", last.UTC().Format(time.RFC3339))
	}
	return nil
}

func reap(ctx context.Context, lib reaper, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := lib.ReapPending(ctx)
	if err != nil {
		return fmt.Errorf("reap failed after %d record(s): %w", n, err)
	}
	fmt.Fprintf(out, "Reaped %d abandoned upload(s)\n", n)
	return nil
}

func humanBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
