package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"photo-vault/internal/ingest"
	"photo-vault/internal/photo"
	"photo-vault/internal/testutil"
)

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"import", "import"},
		{"re-ap_2", "re-ap_2"},
		{"bad\x1b[31m", "bad__31m"},
		{"\x1b]0;x\x07", "__0_x_"},
		{"a b", "a_b"},
	}

	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	for _, cmd := range []string{"import", "status", "reap"} {
		if !strings.Contains(buf.String(), cmd) {
			t.Errorf("usage does not mention %q", cmd)
		}
	}
}

func TestParseImportArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    importOptions
		wantErr bool
	}{
		{"dir only", []string{"/in"}, importOptions{Dir: "/in", Tags: []string{}}, false},
		{"tags and workers", []string{"-tags", "Trip, beach", "-workers", "3", "/in"},
			importOptions{Dir: "/in", Tags: []string{"beach", "trip"}, Workers: 3}, false},
		{"missing dir", nil, importOptions{}, true},
		{"two dirs", []string{"/a", "/b"}, importOptions{}, true},
		{"negative workers", []string{"-workers", "-1", "/in"}, importOptions{}, true},
		{"unknown flag", []string{"-force", "/in"}, importOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseImportArgs(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseImportArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Dir != tt.want.Dir || strings.Join(got.Tags, ",") != strings.Join(tt.want.Tags, ",") {
				t.Errorf("parseImportArgs() = %+v, want %+v", got, tt.want)
			}
			if tt.want.Workers > 0 && got.Workers != tt.want.Workers {
				t.Errorf("Workers = %d, want %d", got.Workers, tt.want.Workers)
			}
			if got.Workers < 1 {
				t.Errorf("Workers = %d, want at least 1", got.Workers)
			}
		})
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{5 << 30, "5.0 GiB"},
	}

	for _, tt := range tests {
		if got := humanBytes(tt.in); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// scriptedIngester decides each outcome from the file name.
type scriptedIngester struct {
	mu    sync.Mutex
	names []string
	tags  []string
}

func (s *scriptedIngester) Run(_ context.Context, req ingest.Request) ingest.Result {
	s.mu.Lock()
	s.names = append(s.names, req.Filename)
	s.tags = req.Tags
	s.mu.Unlock()

	switch {
	case strings.HasPrefix(req.Filename, "dup"):
		return ingest.Result{Outcome: ingest.OutcomeDuplicate, DuplicateOf: "first"}
	case strings.HasPrefix(req.Filename, "bad"):
		return ingest.Result{Outcome: ingest.OutcomeFailed, Err: photo.Invalid(photo.ReasonCorrupt, "not an image")}
	default:
		return ingest.Result{Outcome: ingest.OutcomeCommitted, Record: &photo.Record{ID: "id-" + req.Filename}}
	}
}

func (s *scriptedIngester) MaxUploadBytes() int64 { return 64 }

func writeFile(t *testing.T, path string, size int) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'x'}, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestImportDirCounts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), 10)
	writeFile(t, filepath.Join(dir, "nested", "b.jpg"), 10)
	writeFile(t, filepath.Join(dir, "dup.jpg"), 10)
	writeFile(t, filepath.Join(dir, "bad.jpg"), 10)
	writeFile(t, filepath.Join(dir, "huge.jpg"), 100)
	writeFile(t, filepath.Join(dir, ".DS_Store"), 10)
	writeFile(t, filepath.Join(dir, ".thumbs", "c.jpg"), 10)
	if err := os.Symlink(filepath.Join(dir, "a.jpg"), filepath.Join(dir, "link.jpg")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	lib := &scriptedIngester{}
	var out bytes.Buffer
	summary, err := importDir(context.Background(), lib,
		importOptions{Dir: dir, Tags: []string{"trip"}, Workers: 3}, &out)
	if err != nil {
		t.Fatalf("importDir() error = %v", err)
	}

	want := importSummary{Imported: 2, Duplicates: 1, Failed: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v\n%s", summary, want, out.String())
	}
	if len(lib.names) != 4 {
		t.Errorf("ingested %v; oversized, hidden and symlinked files must not reach the library", lib.names)
	}
	if strings.Join(lib.tags, ",") != "trip" {
		t.Errorf("tags = %v, want [trip]", lib.tags)
	}
	if !strings.Contains(out.String(), "skipped    "+filepath.Join(dir, "huge.jpg")) {
		t.Errorf("oversized file not reported as skipped:\n%s", out.String())
	}
}

func TestImportDirRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.jpg")
	writeFile(t, file, 1)

	if _, err := importDir(context.Background(), &scriptedIngester{}, importOptions{Dir: file, Workers: 1}, &bytes.Buffer{}); err == nil {
		t.Error("importDir() on a file should fail")
	}
}

func TestImportDirCanceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lib := &scriptedIngester{}
	_, err := importDir(ctx, lib, importOptions{Dir: dir, Workers: 1}, &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("importDir() error = %v, want context.Canceled", err)
	}
	if len(lib.names) != 0 {
		t.Errorf("ingested %v after cancellation", lib.names)
	}
}

func setupEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("STORAGE_DIR", filepath.Join(dir, "photos"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "db"))
	return dir
}

func TestRunImportStatusReap(t *testing.T) {
	dir := setupEnv(t)
	in := filepath.Join(dir, "incoming")
	jpeg := testutil.JPEG(t, 120, 90, 2)
	for _, name := range []string{"one.jpg", "copy.jpg"} {
		if err := os.MkdirAll(in, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(in, name), jpeg, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(in, "two.png"), testutil.PNG(t, 80, 60, 5), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var out bytes.Buffer
	if err := run(ctx, "import", []string{"-tags", "batch", in}, &out); err != nil {
		t.Fatalf("import error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Imported: 2  Duplicates: 1  Failed: 0") {
		t.Errorf("import output:\n%s", out.String())
	}

	out.Reset()
	if err := run(ctx, "status", nil, &out); err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"Photos:       2", "Pending:      0", "Last reap:    never"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("status output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := run(ctx, "reap", nil, &out); err != nil {
		t.Fatalf("reap error = %v", err)
	}
	if !strings.Contains(out.String(), "Reaped 0 abandoned upload(s)") {
		t.Errorf("reap output: %s", out.String())
	}
}

func TestRunImportReportsFailures(t *testing.T) {
	dir := setupEnv(t)
	in := filepath.Join(dir, "incoming")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "notes.txt"), []byte("not a photo"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	err := run(context.Background(), "import", []string{in}, &out)
	if err == nil || !strings.Contains(err.Error(), "1 file(s) failed") {
		t.Errorf("run() error = %v, want a failure count", err)
	}
}

func TestRunRejectsBadImportArgs(t *testing.T) {
	setupEnv(t)

	if err := run(context.Background(), "import", nil, &bytes.Buffer{}); err == nil {
		t.Error("import without a directory should fail")
	}
}
