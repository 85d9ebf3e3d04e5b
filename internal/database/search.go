package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"photo-vault/internal/photo"
)

// sortColumns maps sort fields to ORDER BY expressions. Photos without a
// capture time sort by their ingest time.
var sortColumns = map[photo.SortField]string{
	photo.SortByCaptureDate:      "COALESCE(p.capture_time, p.created_at)",
	photo.SortByCreatedAt:        "p.created_at",
	photo.SortByUpdatedAt:        "p.updated_at",
	photo.SortByOriginalFilename: "p.original_name COLLATE NOCASE",
	photo.SortByFileSize:         "p.byte_size",
}

// escapeLike escapes the LIKE wildcards in s for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// buildSearchFilter returns the WHERE clause and arguments for opts.
// Predicates across dimensions are ANDed; tags match if any one is present.
// The tag test is a membership subquery so a photo carrying several of the
// requested tags still yields one row.
func buildSearchFilter(opts photo.SearchOptions) (string, []interface{}) {
	conditions := []string{"p.status = ?"}
	args := []interface{}{string(photo.StatusCommitted)}

	if len(opts.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Tags)), ",")
		conditions = append(conditions,
			"p.id IN (SELECT photo_id FROM photo_tags WHERE tag IN ("+placeholders+"))")
		for _, tag := range opts.Tags {
			args = append(args, tag)
		}
	}

	if opts.From != nil {
		conditions = append(conditions, "p.capture_time >= ?")
		args = append(args, opts.From.Unix())
	}
	if opts.To != nil {
		conditions = append(conditions, "p.capture_time <= ?")
		args = append(args, opts.To.Unix())
	}

	if s := strings.TrimSpace(opts.CameraModel); s != "" {
		conditions = append(conditions, `LOWER(p.camera_model) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if s := strings.TrimSpace(opts.Filename); s != "" {
		conditions = append(conditions, `LOWER(p.original_name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
	}

	return strings.Join(conditions, " AND "), args
}

// buildOrderBy returns the ORDER BY clause for opts. The id breaks ties so
// pages are stable.
func buildOrderBy(opts photo.SearchOptions) string {
	column, ok := sortColumns[opts.SortBy]
	if !ok {
		column = sortColumns[photo.SortByCaptureDate]
	}
	dir := "DESC"
	if opts.SortOrder == photo.SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s, p.id %s", column, dir, dir)
}

// Search returns one page of committed photos matching opts. Page is
// zero-based.
func (d *Database) Search(ctx context.Context, opts photo.SearchOptions) (page *photo.Page, err error) {
	start := time.Now()
	defer func() { recordQuery("search", start, err) }()

	opts = opts.Normalize()
	where, args := buildSearchFilter(opts)

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int
	if err = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM photos p WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}

	page = &photo.Page{
		Items:      []photo.Record{},
		TotalItems: total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: (total + opts.PageSize - 1) / opts.PageSize,
	}

	offset := opts.Page * opts.PageSize
	if total == 0 || offset >= total {
		return page, nil
	}

	query := "SELECT " + photoColumns + " FROM photos p WHERE " + where +
		" ORDER BY " + buildOrderBy(opts) + " LIMIT ? OFFSET ?"
	rows, err := d.db.QueryContext(ctx, query, append(args, opts.PageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search photos: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, opts.PageSize)
	for rows.Next() {
		rec, scanErr := scanPhoto(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", scanErr)
		}
		page.Items = append(page.Items, *rec)
		ids = append(ids, rec.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}
	rows.Close()

	tags, err := loadTags(ctx, d.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range page.Items {
		if t, ok := tags[page.Items[i].ID]; ok {
			page.Items[i].Tags = t
		}
	}

	return page, nil
}
