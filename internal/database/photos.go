package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"photo-vault/internal/logging"
	"photo-vault/internal/photo"
)

// ErrFingerprintExists is returned by CreatePhoto when another row, in any
// state, already holds the fingerprint.
var ErrFingerprintExists = errors.New("fingerprint already cataloged")

const photoColumns = `p.id, p.original_name, p.storage_key, p.byte_size, p.mime_type,
	p.capture_time, p.pixel_width, p.pixel_height, p.camera_model, p.iso, p.aperture,
	p.shutter_speed, p.focal_length, p.fingerprint, p.status, p.created_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row rowScanner) (*photo.Record, error) {
	var (
		rec                   photo.Record
		status                string
		captureTime           sql.NullInt64
		width, height, focal  sql.NullInt64
		camera, iso, aperture sql.NullString
		shutter               sql.NullString
		createdAt, updatedAt  int64
	)

	err := row.Scan(
		&rec.ID, &rec.OriginalFilename, &rec.StorageKey, &rec.FileSize, &rec.MimeType,
		&captureTime, &width, &height, &camera, &iso, &aperture,
		&shutter, &focal, &rec.Fingerprint, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if captureTime.Valid {
		t := time.Unix(captureTime.Int64, 0).UTC()
		rec.CaptureDate = &t
	}
	rec.Width = nullInt(width)
	rec.Height = nullInt(height)
	rec.FocalLength = nullInt(focal)
	rec.CameraModel = nullString(camera)
	rec.ISO = nullString(iso)
	rec.Aperture = nullString(aperture)
	rec.ShutterSpeed = nullString(shutter)
	rec.Status = photo.Status(status)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	rec.Tags = []string{}
	return &rec, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func intArg(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func stringArg(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func timeArg(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return p.Unix()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on
// column (e.g. "photos.fingerprint").
func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique &&
		sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	return column == "" || strings.Contains(sqliteErr.Error(), column)
}

// CreatePhoto inserts rec and its tags as a pending row. Timestamps are
// truncated to the second and written back into rec. A fingerprint that is
// already present yields ErrFingerprintExists.
func (d *Database) CreatePhoto(ctx context.Context, rec *photo.Record) (err error) {
	start := time.Now()
	defer func() { recordQuery("create_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC().Truncate(time.Second)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Status = photo.StatusPending
	rec.Tags = photo.NormalizeTags(rec.Tags)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error("failed to rollback create_photo: %v", rbErr)
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO photos (id, original_name, storage_key, byte_size, mime_type,
			capture_time, pixel_width, pixel_height, camera_model, iso, aperture,
			shutter_speed, focal_length, fingerprint, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.OriginalFilename, rec.StorageKey, rec.FileSize, rec.MimeType,
		timeArg(rec.CaptureDate), intArg(rec.Width), intArg(rec.Height),
		stringArg(rec.CameraModel), stringArg(rec.ISO), stringArg(rec.Aperture),
		stringArg(rec.ShutterSpeed), intArg(rec.FocalLength), rec.Fingerprint,
		string(photo.StatusPending), now.Unix(), now.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err, "photos.fingerprint") {
			return fmt.Errorf("%w: %s", ErrFingerprintExists, rec.Fingerprint)
		}
		return fmt.Errorf("failed to insert photo: %w", err)
	}

	if err = insertTags(ctx, tx, rec.ID, rec.Tags); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err, "photos.fingerprint") {
			return fmt.Errorf("%w: %s", ErrFingerprintExists, rec.Fingerprint)
		}
		return fmt.Errorf("failed to commit photo: %w", err)
	}
	committed = true
	return nil
}

func insertTags(ctx context.Context, tx *sql.Tx, id string, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO photo_tags (photo_id, tag) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare tag insert: %w", err)
	}
	defer stmt.Close()

	for _, tag := range tags {
		if _, err := stmt.ExecContext(ctx, id, tag); err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", tag, err)
		}
	}
	return nil
}

// CommitPhoto makes a pending row visible.
func (d *Database) CommitPhoto(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { recordQuery("commit_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		"UPDATE photos SET status = ? WHERE id = ? AND status = ?",
		string(photo.StatusCommitted), id, string(photo.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to commit photo: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return photo.NotFound("pending photo", id)
	}
	return nil
}

// GetPhoto returns the committed record with the given id.
func (d *Database) GetPhoto(ctx context.Context, id string) (rec *photo.Record, err error) {
	start := time.Now()
	defer func() { recordQuery("get_photo", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return d.getPhotoUnlocked(ctx, d.db, id, photo.StatusCommitted)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// getPhotoUnlocked loads one row in the given state together with its tags.
// Caller must hold at least a read lock.
func (d *Database) getPhotoUnlocked(ctx context.Context, q queryer, id string, status photo.Status) (*photo.Record, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+photoColumns+" FROM photos p WHERE p.id = ? AND p.status = ?",
		id, string(status),
	)
	rec, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, photo.NotFound("photo", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load photo %s: %w", id, err)
	}

	tags, err := loadTags(ctx, q, []string{id})
	if err != nil {
		return nil, err
	}
	if t, ok := tags[id]; ok {
		rec.Tags = t
	}
	return rec, nil
}

// loadTags returns the sorted tags of each id that has any.
func loadTags(ctx context.Context, q queryer, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		"SELECT photo_id, tag FROM photo_tags WHERE photo_id IN ("+placeholders+") ORDER BY photo_id, tag",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out[id] = append(out[id], tag)
	}
	return out, rows.Err()
}

// FindByFingerprint returns the id and state of the row holding fingerprint,
// whatever its state. A miss yields an error wrapping photo.ErrNotFound.
func (d *Database) FindByFingerprint(ctx context.Context, fingerprint string) (id string, status photo.Status, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, photo.ErrNotFound) {
			recordQuery("find_by_fingerprint", start, nil)
			return
		}
		recordQuery("find_by_fingerprint", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s string
	err = d.db.QueryRowContext(ctx,
		"SELECT id, status FROM photos WHERE fingerprint = ?", fingerprint,
	).Scan(&id, &s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", photo.NotFound("fingerprint", fingerprint)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to look up fingerprint: %w", err)
	}
	return id, photo.Status(s), nil
}

// AddTags merges tags into the committed record's tag set and returns the
// updated record. updated_at changes only when a new tag was stored.
func (d *Database) AddTags(ctx context.Context, id string, tags []string) (rec *photo.Record, err error) {
	start := time.Now()
	defer func() { recordQuery("add_tags", start, err) }()

	tags = photo.NormalizeTags(tags)

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error("failed to rollback add_tags: %v", rbErr)
			}
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) > 0 FROM photos WHERE id = ? AND status = ?",
		id, string(photo.StatusCommitted),
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check photo: %w", err)
	}
	if !exists {
		return nil, photo.NotFound("photo", id)
	}

	var added int64
	for _, tag := range tags {
		result, execErr := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO photo_tags (photo_id, tag) VALUES (?, ?)", id, tag)
		if execErr != nil {
			err = fmt.Errorf("failed to insert tag %q: %w", tag, execErr)
			return nil, err
		}
		n, _ := result.RowsAffected()
		added += n
	}

	if added > 0 {
		if _, err = tx.ExecContext(ctx,
			"UPDATE photos SET updated_at = ? WHERE id = ?", time.Now().Unix(), id); err != nil {
			return nil, fmt.Errorf("failed to touch photo: %w", err)
		}
	}

	rec, err = d.getPhotoUnlocked(ctx, tx, id, photo.StatusCommitted)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit tags: %w", err)
	}
	committed = true
	return rec, nil
}

// DeletePhoto removes the row with the given id if it is in the given state,
// returning the removed record. Tags go with it.
func (d *Database) DeletePhoto(ctx context.Context, id string, status photo.Status) (rec *photo.Record, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_photo", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logging.Error("failed to rollback delete_photo: %v", rbErr)
			}
		}
	}()

	rec, err = d.getPhotoUnlocked(ctx, tx, id, status)
	if err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM photo_tags WHERE photo_id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to delete tags: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("failed to delete photo: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	committed = true
	return rec, nil
}

// ListPending returns pending rows created before olderThan, oldest first.
func (d *Database) ListPending(ctx context.Context, olderThan time.Time) (recs []photo.Record, err error) {
	start := time.Now()
	defer func() { recordQuery("list_pending", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx,
		"SELECT "+photoColumns+" FROM photos p WHERE p.status = ? AND p.created_at < ? ORDER BY p.created_at, p.id",
		string(photo.StatusPending), olderThan.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending photos: %w", err)
	}
	defer rows.Close()

	recs = []photo.Record{}
	for rows.Next() {
		rec, scanErr := scanPhoto(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan pending photo: %w", scanErr)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// Count returns the number of committed and pending rows.
func (d *Database) Count(ctx context.Context) (committedRows, pendingRows int64, err error) {
	start := time.Now()
	defer func() { recordQuery("count", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'committed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0)
		FROM photos
	`).Scan(&committedRows, &pendingRows)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return committedRows, pendingRows, nil
}
