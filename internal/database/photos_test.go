package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"photo-vault/internal/photo"
)

func ptr[T any](v T) *T { return &v }

func testRecord(id, fingerprint string) *photo.Record {
	captured := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)
	return &photo.Record{
		ID:               id,
		OriginalFilename: id + ".jpg",
		StorageKey:       "2024/06/" + id + ".jpg",
		FileSize:         1234,
		MimeType:         "image/jpeg",
		CaptureDate:      &captured,
		Width:            ptr(4000),
		Height:           ptr(3000),
		CameraModel:      ptr("Canon EOS R5"),
		ISO:              ptr("200"),
		Aperture:         ptr("2.8"),
		ShutterSpeed:     ptr("1/250"),
		FocalLength:      ptr(50),
		Fingerprint:      fingerprint,
		Tags:             []string{" Sunset ", "SUNSET", "beach"},
		CreatedAt:        time.Date(2024, 7, 1, 12, 0, 0, 500, time.UTC),
	}
}

func createCommitted(t *testing.T, db *Database, rec *photo.Record) {
	t.Helper()
	ctx := context.Background()
	if err := db.CreatePhoto(ctx, rec); err != nil {
		t.Fatalf("CreatePhoto(%s) error = %v", rec.ID, err)
	}
	if err := db.CommitPhoto(ctx, rec.ID); err != nil {
		t.Fatalf("CommitPhoto(%s) error = %v", rec.ID, err)
	}
}

func TestCreateCommitGet(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	rec := testRecord("p1", "fp1")

	if err := db.CreatePhoto(ctx, rec); err != nil {
		t.Fatalf("CreatePhoto() error = %v", err)
	}
	if rec.Status != photo.StatusPending {
		t.Errorf("Status = %q, want pending", rec.Status)
	}
	if rec.CreatedAt.Nanosecond() != 0 {
		t.Error("CreatedAt not truncated to the second")
	}

	// Pending rows are invisible to readers but hold their fingerprint.
	if _, err := db.GetPhoto(ctx, "p1"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("GetPhoto(pending) error = %v, want ErrNotFound", err)
	}
	id, status, err := db.FindByFingerprint(ctx, "fp1")
	if err != nil || id != "p1" || status != photo.StatusPending {
		t.Errorf("FindByFingerprint() = %q, %q, %v", id, status, err)
	}

	if err := db.CommitPhoto(ctx, "p1"); err != nil {
		t.Fatalf("CommitPhoto() error = %v", err)
	}
	if err := db.CommitPhoto(ctx, "p1"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("second CommitPhoto() error = %v, want ErrNotFound", err)
	}

	got, err := db.GetPhoto(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPhoto() error = %v", err)
	}
	if got.Status != photo.StatusCommitted {
		t.Errorf("Status = %q, want committed", got.Status)
	}
	if got.CaptureDate == nil || !got.CaptureDate.Equal(*rec.CaptureDate) {
		t.Errorf("CaptureDate = %v, want %v", got.CaptureDate, rec.CaptureDate)
	}
	if *got.CameraModel != "Canon EOS R5" || *got.ISO != "200" || *got.FocalLength != 50 {
		t.Errorf("EXIF fields = %q %q %d", *got.CameraModel, *got.ISO, *got.FocalLength)
	}
	if *got.Width != 4000 || *got.Height != 3000 {
		t.Errorf("dimensions = %dx%d", *got.Width, *got.Height)
	}
	if fmt.Sprint(got.Tags) != "[beach sunset]" {
		t.Errorf("Tags = %v, want [beach sunset]", got.Tags)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestCreatePhotoNullableFields(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	rec := &photo.Record{
		ID:               "bare",
		OriginalFilename: "bare.png",
		StorageKey:       "2024/01/bare.png",
		FileSize:         10,
		MimeType:         "image/png",
		Fingerprint:      "fp-bare",
	}
	createCommitted(t, db, rec)

	got, err := db.GetPhoto(ctx, "bare")
	if err != nil {
		t.Fatal(err)
	}
	if got.CaptureDate != nil || got.Width != nil || got.CameraModel != nil || got.FocalLength != nil {
		t.Errorf("nullable fields should be nil: %+v", got)
	}
	if got.Tags == nil || len(got.Tags) != 0 {
		t.Errorf("Tags = %#v, want empty non-nil", got.Tags)
	}
}

func TestCreatePhotoDuplicateFingerprint(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	createCommitted(t, db, testRecord("first", "same"))

	err := db.CreatePhoto(ctx, testRecord("second", "same"))
	if !errors.Is(err, ErrFingerprintExists) {
		t.Fatalf("CreatePhoto() error = %v, want ErrFingerprintExists", err)
	}

	// The failed insert left no tags behind.
	if _, err := db.GetPhoto(ctx, "second"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("second row exists: %v", err)
	}
}

func TestCreatePhotoConcurrentSameFingerprint(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.CreatePhoto(ctx, testRecord(fmt.Sprintf("c%d", i), "contended"))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case !errors.Is(err, ErrFingerprintExists):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("%d inserts succeeded, want exactly 1", winners)
	}
}

func TestFindByFingerprintMiss(t *testing.T) {
	db, _ := setupTestDB(t)

	if _, _, err := db.FindByFingerprint(context.Background(), "nope"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("FindByFingerprint() error = %v, want ErrNotFound", err)
	}
}

func TestAddTags(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	rec := testRecord("t1", "fp-t1")
	rec.Tags = nil
	createCommitted(t, db, rec)

	got, err := db.AddTags(ctx, "t1", []string{"  Sunset ", "SUNSET"})
	if err != nil {
		t.Fatalf("AddTags() error = %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "sunset" {
		t.Errorf("Tags = %v, want [sunset]", got.Tags)
	}

	got, err = db.AddTags(ctx, "t1", []string{"Beach", "sunset"})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(got.Tags) != "[beach sunset]" {
		t.Errorf("Tags = %v, want [beach sunset]", got.Tags)
	}

	if _, err := db.AddTags(ctx, "missing", []string{"x"}); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("AddTags(missing) error = %v, want ErrNotFound", err)
	}

	pending := testRecord("pend", "fp-pend")
	if err := db.CreatePhoto(ctx, pending); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddTags(ctx, "pend", []string{"x"}); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("AddTags(pending) error = %v, want ErrNotFound", err)
	}
}

func TestDeletePhoto(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	createCommitted(t, db, testRecord("d1", "fp-d1"))
	if err := db.CreatePhoto(ctx, testRecord("d2", "fp-d2")); err != nil {
		t.Fatal(err)
	}

	// State must match.
	if _, err := db.DeletePhoto(ctx, "d2", photo.StatusCommitted); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("DeletePhoto(pending as committed) error = %v", err)
	}

	removed, err := db.DeletePhoto(ctx, "d1", photo.StatusCommitted)
	if err != nil {
		t.Fatalf("DeletePhoto() error = %v", err)
	}
	if removed.StorageKey != "2024/06/d1.jpg" {
		t.Errorf("StorageKey = %q", removed.StorageKey)
	}
	if _, err := db.GetPhoto(ctx, "d1"); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("GetPhoto after delete error = %v", err)
	}
	if _, err := db.DeletePhoto(ctx, "d1", photo.StatusCommitted); !errors.Is(err, photo.ErrNotFound) {
		t.Errorf("second DeletePhoto() error = %v, want ErrNotFound", err)
	}

	// The fingerprint is free again.
	if err := db.CreatePhoto(ctx, testRecord("d1-again", "fp-d1")); err != nil {
		t.Errorf("fingerprint not released by delete: %v", err)
	}

	if _, err := db.DeletePhoto(ctx, "d2", photo.StatusPending); err != nil {
		t.Errorf("DeletePhoto(pending) error = %v", err)
	}
}

func TestListPendingAndCount(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	old := testRecord("old", "fp-old")
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	if err := db.CreatePhoto(ctx, old); err != nil {
		t.Fatal(err)
	}
	fresh := testRecord("fresh", "fp-fresh")
	fresh.CreatedAt = time.Now()
	if err := db.CreatePhoto(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	createCommitted(t, db, testRecord("done", "fp-done"))

	pending, err := db.ListPending(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "old" {
		t.Errorf("ListPending() = %v, want [old]", pending)
	}

	committed, pend, err := db.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if committed != 1 || pend != 2 {
		t.Errorf("Count() = %d committed, %d pending; want 1, 2", committed, pend)
	}
}
