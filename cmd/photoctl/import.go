package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"photo-vault/internal/ingest"
	"photo-vault/internal/photo"

	"golang.org/x/sync/errgroup"
)

// ingester is the part of the library an import needs.
type ingester interface {
	Run(ctx context.Context, req ingest.Request) ingest.Result
	MaxUploadBytes() int64
}

type importSummary struct {
	Imported   int64
	Duplicates int64
	Failed     int64
}

// importer reports each file as it finishes. Lines from concurrent
// workers are serialized.
type importer struct {
	lib  ingester
	opts importOptions

	mu  sync.Mutex
	out io.Writer

	imported, duplicates, failed atomic.Int64
}

// importDir ingests every regular, non-hidden file under opts.Dir with opts.Workers
// concurrent runs. Per-file failures are counted, not returned; the error
// is reserved for a walk that could not complete.
func importDir(ctx context.Context, lib ingester, opts importOptions, out io.Writer) (importSummary, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return importSummary{}, fmt.Errorf("import: %w", err)
	}
	if !info.IsDir() {
		return importSummary{}, fmt.Errorf("import: %s is not a directory", opts.Dir)
	}

	imp := &importer{lib: lib, opts: opts, out: out}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))

	walkErr := filepath.WalkDir(opts.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			imp.fail(path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if path != opts.Dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		g.Go(func() error {
			imp.importFile(gctx, path)
			return nil
		})
		return nil
	})

	waitErr := g.Wait()
	summary := imp.summary()
	if walkErr != nil {
		return summary, fmt.Errorf("import: walk %s: %w", opts.Dir, walkErr)
	}
	if waitErr != nil {
		return summary, waitErr
	}
	return summary, ctx.Err()
}

func (imp *importer) importFile(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		imp.fail(path, err)
		return
	}
	if limit := imp.lib.MaxUploadBytes(); info.Size() > limit {
		imp.fail(path, photo.Invalid(photo.ReasonTooLarge, "file is %d bytes, the limit is %d", info.Size(), limit))
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		imp.fail(path, err)
		return
	}

	res := imp.lib.Run(ctx, ingest.Request{
		Data:     data,
		Filename: filepath.Base(path),
		Tags:     imp.opts.Tags,
	})
	switch res.Outcome {
	case ingest.OutcomeCommitted:
		imp.imported.Add(1)
		imp.printf("imported   %s -> %s\n", path, res.Record.ID)
	case ingest.OutcomeDuplicate:
		imp.duplicates.Add(1)
		imp.printf("duplicate  %s (of %s)\n", path, res.DuplicateOf)
	default:
		imp.fail(path, res.Err)
	}
}

func (imp *importer) fail(path string, err error) {
	imp.failed.Add(1)
	var verr *photo.ValidationError
	if errors.As(err, &verr) {
		imp.printf("skipped    %s: %s\n", path, verr.Message)
		return
	}
	imp.printf("failed     %s: %v\n", path, err)
}

func (imp *importer) printf(format string, args ...interface{}) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	fmt.Fprintf(imp.out, format, args...)
}

func (imp *importer) summary() importSummary {
	return importSummary{
		Imported:   imp.imported.Load(),
		Duplicates: imp.duplicates.Load(),
		Failed:     imp.failed.Load(),
	}
}

func printSummary(out io.Writer, s importSummary) {
	fmt.Fprintf(out, "\nImported: %d  Duplicates: %d  Failed: %d\n", s.Imported, s.Duplicates, s.Failed)
}
