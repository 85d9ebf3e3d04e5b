package blobstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photo-vault/internal/photo"
)

func newTestStore(t *testing.T, free uint64) *Store {
	t.Helper()
	s, err := New(Config{
		Root:      t.TempDir(),
		FreeSpace: func(string) (uint64, error) { return free, nil },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestNewCreatesNamespaces(t *testing.T) {
	s := newTestStore(t, 1<<40)

	for _, ns := range photo.Variants {
		info, err := os.Stat(s.NamespaceDir(ns))
		if err != nil || !info.IsDir() {
			t.Errorf("namespace %s not created: %v", ns, err)
		}
	}

	if _, err := New(Config{}); err == nil {
		t.Error("New() without root should fail")
	}
}

func TestOriginalKey(t *testing.T) {
	tests := []struct {
		name     string
		captured time.Time
		want     string
	}{
		{"january", time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), "2024/01/abc.jpg"},
		{"february", time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), "2024/02/abc.jpg"},
		{"december", time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), "1999/12/abc.jpg"},
		{"converted to utc", time.Date(2024, 3, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600*2)), "2024/02/abc.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OriginalKey("abc", tt.captured, "jpg"); got != tt.want {
				t.Errorf("OriginalKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPath(t *testing.T) {
	s := newTestStore(t, 1<<40)

	good, err := s.Path(photo.VariantOriginal, "2024/06/id.jpg")
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if want := filepath.Join(s.Root(), "original", "2024", "06", "id.jpg"); good != want {
		t.Errorf("Path() = %q, want %q", good, want)
	}

	bad := []string{"", "/etc/passwd", "../x.jpg", "2024/../../x", "a//b", "./a", "..", `a\b`}
	for _, key := range bad {
		if _, err := s.Path(photo.VariantOriginal, key); !photo.IsValidation(err) {
			t.Errorf("Path(%q) error = %v, want validation error", key, err)
		}
	}

	if _, err := s.Path(photo.Variant("secrets"), "x.jpg"); !photo.IsValidation(err) {
		t.Errorf("unknown namespace error = %v, want validation error", err)
	}
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t, 1<<40)
	ctx := context.Background()
	data := []byte("thumbnail bytes")

	if err := s.Put(ctx, photo.VariantThumbnail, "id.jpg", data); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, photo.VariantThumbnail, "id.jpg")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get() = %q, want %q", got, data)
	}

	ok, err := s.Exists(photo.VariantThumbnail, "id.jpg")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v", ok, err)
	}

	// Namespaces are disjoint.
	if _, err := s.Get(ctx, photo.VariantPreview, "id.jpg"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("Get(preview) error = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, photo.VariantThumbnail, "id.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, photo.VariantThumbnail, "id.jpg"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
	if _, err := s.Get(ctx, photo.VariantThumbnail, "id.jpg"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestPutOriginalSharding(t *testing.T) {
	s := newTestStore(t, 1<<40)
	ctx := context.Background()

	jan := OriginalKey("a", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "jpg")
	feb := OriginalKey("b", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), "jpg")

	for _, key := range []string{jan, feb} {
		if err := s.PutOriginal(ctx, key, []byte("x")); err != nil {
			t.Fatalf("PutOriginal(%s) error = %v", key, err)
		}
	}

	for _, want := range []string{"original/2024/01/a.jpg", "original/2024/02/b.jpg"} {
		if _, err := os.Stat(filepath.Join(s.Root(), want)); err != nil {
			t.Errorf("expected %s on disk: %v", want, err)
		}
	}
}

func TestPutOriginalInsufficientSpace(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 1000)

	tests := []struct {
		name    string
		free    uint64
		wantErr bool
	}{
		{"plenty", 1 << 30, false},
		{"exactly three times", 3000, false},
		{"one byte short", 2999, true},
		{"only the payload fits", 1000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, tt.free)
			err := s.PutOriginal(context.Background(), "2024/06/id.jpg", payload)

			if !tt.wantErr {
				if err != nil {
					t.Fatalf("PutOriginal() error = %v", err)
				}
				return
			}

			if !photo.IsStorage(err) || !errors.Is(err, ErrInsufficientSpace) {
				t.Fatalf("PutOriginal() error = %v, want StorageError wrapping ErrInsufficientSpace", err)
			}
			entries, _ := os.ReadDir(s.NamespaceDir(photo.VariantOriginal))
			if len(entries) != 0 {
				t.Errorf("bytes were written despite insufficient space: %v", entries)
			}
		})
	}
}

func TestFreeSpaceError(t *testing.T) {
	s, err := New(Config{
		Root:      t.TempDir(),
		FreeSpace: func(string) (uint64, error) { return 0, errors.New("statfs failed") },
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.PutOriginal(context.Background(), "2024/06/id.jpg", []byte("x"))
	if !photo.IsStorage(err) || !strings.Contains(err.Error(), "statfs failed") {
		t.Errorf("PutOriginal() error = %v, want StorageError", err)
	}
}

func TestPutCanceledContext(t *testing.T) {
	s := newTestStore(t, 1<<40)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, photo.VariantPreview, "id.jpg", []byte("x")); !photo.IsStorage(err) {
		t.Errorf("Put() error = %v, want StorageError", err)
	}
}
