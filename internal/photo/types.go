package photo

import (
	"time"
)

// Variant identifies one of the stored renditions of a photo.
type Variant string

const (
	// VariantOriginal is the uploaded file, byte-for-byte.
	VariantOriginal Variant = "original"
	// VariantThumbnail is the small grid rendition.
	VariantThumbnail Variant = "thumbnail"
	// VariantPreview is the large lightbox rendition.
	VariantPreview Variant = "preview"
)

// Variants lists every variant in storage order.
var Variants = []Variant{VariantOriginal, VariantThumbnail, VariantPreview}

// ParseVariant converts a user supplied variant name.
func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantOriginal, VariantThumbnail, VariantPreview:
		return Variant(s), true
	}
	return "", false
}

// Status is the visibility state of a catalog row.
type Status string

const (
	// StatusPending rows are being ingested and are invisible to readers.
	StatusPending Status = "pending"
	// StatusCommitted rows have an original and both derivatives stored.
	StatusCommitted Status = "committed"
)

// Record is a catalog entry for one photo.
type Record struct {
	ID               string     `json:"id"`
	OriginalFilename string     `json:"originalFilename"`
	StorageKey       string     `json:"-"`
	FileSize         int64      `json:"fileSize"`
	MimeType         string     `json:"mimeType"`
	CaptureDate      *time.Time `json:"captureDate,omitempty"`
	Width            *int       `json:"width,omitempty"`
	Height           *int       `json:"height,omitempty"`
	CameraModel      *string    `json:"cameraModel,omitempty"`
	ISO              *string    `json:"iso,omitempty"`
	Aperture         *string    `json:"aperture,omitempty"`
	ShutterSpeed     *string    `json:"shutterSpeed,omitempty"`
	FocalLength      *int       `json:"focalLength,omitempty"`
	Fingerprint      string     `json:"fileHash"`
	Tags             []string   `json:"tags"`
	Status           Status     `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.CaptureDate != nil {
		t := *r.CaptureDate
		c.CaptureDate = &t
	}
	c.Width = cloneInt(r.Width)
	c.Height = cloneInt(r.Height)
	c.FocalLength = cloneInt(r.FocalLength)
	c.CameraModel = cloneString(r.CameraModel)
	c.ISO = cloneString(r.ISO)
	c.Aperture = cloneString(r.Aperture)
	c.ShutterSpeed = cloneString(r.ShutterSpeed)
	c.Tags = append([]string{}, r.Tags...)
	return &c
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Metadata is the best-effort result of inspecting an image. Absent fields
// are nil.
type Metadata struct {
	CaptureDate  *time.Time
	Width        *int
	Height       *int
	CameraModel  *string
	ISO          *string
	Aperture     *string
	ShutterSpeed *string
	FocalLength  *int
}

// HasDimensions reports whether both width and height were resolved.
func (m Metadata) HasDimensions() bool {
	return m.Width != nil && m.Height != nil
}

// SortField selects the column a search is ordered by.
type SortField string

// SortOrder selects the direction of the ordering.
type SortOrder string

const (
	SortByCaptureDate      SortField = "captureDate"
	SortByCreatedAt        SortField = "createdAt"
	SortByUpdatedAt        SortField = "updatedAt"
	SortByOriginalFilename SortField = "originalFilename"
	SortByFileSize         SortField = "fileSize"

	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Pagination defaults.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// SearchOptions holds the optional predicates of a catalog search. Zero
// values impose no constraint. Page is zero-based.
type SearchOptions struct {
	Tags        []string
	From        *time.Time
	To          *time.Time
	CameraModel string
	Filename    string
	Page        int
	PageSize    int
	SortBy      SortField
	SortOrder   SortOrder
}

// Normalize applies pagination and sort defaults and normalizes the tag set.
func (o SearchOptions) Normalize() SearchOptions {
	if o.Page < 0 {
		o.Page = 0
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	switch o.SortBy {
	case SortByCaptureDate, SortByCreatedAt, SortByUpdatedAt, SortByOriginalFilename, SortByFileSize:
	default:
		o.SortBy = SortByCaptureDate
	}
	if o.SortOrder != SortAsc {
		o.SortOrder = SortDesc
	}
	o.Tags = NormalizeTags(o.Tags)
	return o
}

// Page is one page of search results.
type Page struct {
	Items      []Record `json:"items"`
	TotalItems int      `json:"totalItems"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}
