package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"photo-vault/internal/logging"
	"photo-vault/internal/photo"
	"photo-vault/internal/startup"
	"photo-vault/internal/workers"
)

// Default timeout for catalog queries
const defaultTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	command := os.Args[1]

	switch command {
	case "import", "status", "reap":
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command)) //nolint:gosec // G705 - sanitized via allowlist
		printUsage(os.Stderr)
		os.Exit(1)
	}

	// Quiet unless asked otherwise
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	if err := run(ctx, command, os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command against the library configured by the
// environment.
func run(ctx context.Context, command string, args []string, out io.Writer) error {
	var opts importOptions
	if command == "import" {
		var err error
		if opts, err = parseImportArgs(args); err != nil {
			return err
		}
	}

	cfg, err := startup.ReadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	stack, err := startup.OpenStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", err)
		}
	}()

	switch command {
	case "import":
		summary, err := importDir(ctx, stack.Library, opts, out)
		printSummary(out, summary)
		if err != nil {
			return err
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to import", summary.Failed)
		}
		return nil
	case "status":
		return showStatus(ctx, stack, out)
	case "reap":
		return reap(ctx, stack.Library, out)
	}
	return fmt.Errorf("unknown command %q", sanitizeCommand(command))
}

type importOptions struct {
	Dir     string
	Tags    []string
	Workers int
}

func parseImportArgs(args []string) (importOptions, error) {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	tags := fs.String("tags", "", "comma-separated tags applied to every imported photo")
	n := fs.Int("workers", 0, "concurrent imports (default: one per I/O-bound worker)")
	if err := fs.Parse(args); err != nil {
		return importOptions{}, fmt.Errorf("import: %w", err)
	}
	if fs.NArg() != 1 {
		return importOptions{}, errors.New("import: expected exactly one directory")
	}
	if *n < 0 {
		return importOptions{}, errors.New("import: -workers must not be negative")
	}

	opts := importOptions{
		Dir:     fs.Arg(0),
		Tags:    photo.SplitTags(*tags),
		Workers: *n,
	}
	if opts.Workers == 0 {
		opts.Workers = workers.ForIO(8)
	}
	return opts, nil
}

// sanitizeCommand keeps only [a-zA-Z0-9_-] so the echo cannot inject
// terminal sequences.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Photo Vault operator tool")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: photoctl <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  import [-tags a,b] [-workers n] <dir>  - Ingest every file under dir")
	fmt.Fprintln(w, "  status                                 - Show catalog counts and free space")
	fmt.Fprintln(w, "  reap                                   - Remove abandoned pending uploads")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  STORAGE_DIR, DATABASE_DIR and the other server settings apply.")
}
