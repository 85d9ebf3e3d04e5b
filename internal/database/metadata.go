package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"photo-vault/internal/photo"
)

// GetMetadata retrieves a metadata value by key. A missing key yields an
// error wrapping photo.ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", photo.NotFound("metadata key", key)
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastReap returns when abandoned pending rows were last cleaned up, or
// the zero time if never.
func (d *Database) GetLastReap(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, "last_reap")
	if errors.Is(err, photo.ErrNotFound) || (err == nil && value == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastReap stores the time of the last pending-row cleanup.
func (d *Database) SetLastReap(ctx context.Context, t time.Time) error {
	return d.SetMetadata(ctx, "last_reap", t.UTC().Format(time.RFC3339))
}
