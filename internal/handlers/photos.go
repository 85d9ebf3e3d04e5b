package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"photo-vault/internal/ingest"
	"photo-vault/internal/logging"
	"photo-vault/internal/photo"
	"photo-vault/internal/streaming"

	"github.com/gorilla/mux"
)

// multipartOverhead is allowed on top of the file size for form fields and
// part headers.
const multipartOverhead = 1 << 20

// UploadResponse is returned for a stored upload.
type UploadResponse struct {
	ID               string `json:"id"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
	Message          string `json:"message"`
	Success          bool   `json:"success"`
}

// TagsRequest adds tags to a photo.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// DuplicateCheckRequest asks whether content is already stored.
type DuplicateCheckRequest struct {
	FileHash string `json:"fileHash"`
}

// DuplicateCheckResponse answers a DuplicateCheckRequest.
type DuplicateCheckResponse struct {
	IsDuplicate     bool   `json:"isDuplicate"`
	ExistingPhotoID string `json:"existingPhotoId,omitempty"`
	Message         string `json:"message"`
}

// Upload stores a multipart upload: a "file" part and an optional
// comma-separated "tags" field.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.lib.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, photo.Invalid(photo.ReasonTooLarge, "upload exceeds the %d byte limit", limit))
			return
		}
		badRequest(w, r, "invalid multipart form: %v", err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "a file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		badRequest(w, r, "failed to read upload: %v", err)
		return
	}

	res := h.lib.Run(r.Context(), ingest.Request{
		Data:     data,
		Filename: header.Filename,
		Tags:     photo.SplitTags(r.FormValue("tags")),
	})
	if err := res.AsError(); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSONStatus(w, http.StatusCreated, UploadResponse{
		ID:               res.Record.ID,
		OriginalFilename: res.Record.OriginalFilename,
		FileSize:         res.Record.FileSize,
		Message:          "Photo uploaded successfully",
		Success:          true,
	})
}

// ListPhotos returns a page of every committed photo.
func (h *Handlers) ListPhotos(w http.ResponseWriter, r *http.Request) {
	opts, err := pageOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.search(w, r, opts)
}

// SearchPhotos filters by tags, capture date range, camera model and
// filename.
func (h *Handlers) SearchPhotos(w http.ResponseWriter, r *http.Request) {
	opts, err := pageOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	opts.Tags = photo.SplitTags(q.Get("tags"))
	opts.CameraModel = q.Get("cameraModel")
	opts.Filename = q.Get("query")

	if opts.From, err = parseDate(q.Get("startDate"), false); err != nil {
		writeError(w, r, err)
		return
	}
	if opts.To, err = parseDate(q.Get("endDate"), true); err != nil {
		writeError(w, r, err)
		return
	}

	h.search(w, r, opts)
}

func (h *Handlers) search(w http.ResponseWriter, r *http.Request, opts photo.SearchOptions) {
	page, err := h.lib.Search(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, page)
}

// GetPhoto returns one record.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	rec, err := h.lib.GetRecord(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

// GetImage serves a rendition selected by ?type= (thumbnail, preview or
// original; default preview).
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")
	if kind == "" {
		kind = string(photo.VariantPreview)
	}
	variant, ok := photo.ParseVariant(kind)
	if !ok {
		badRequest(w, r, "type must be thumbnail, preview or original")
		return
	}

	blob, err := h.lib.GetBlob(r.Context(), mux.Vars(r)["id"], variant)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if n, err := streaming.Write(r.Context(), w, blob.Data, h.stream); err != nil {
		logging.Debug("image %q: sent %d of %d bytes: %v", mux.Vars(r)["id"], n, len(blob.Data), err)
	}
}

// AddTags merges tags into a photo and returns the updated record.
func (h *Handlers) AddTags(w http.ResponseWriter, r *http.Request) {
	var req TagsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if len(photo.NormalizeTags(req.Tags)) == 0 {
		badRequest(w, r, "at least one non-empty tag is required")
		return
	}

	rec, err := h.lib.AddTags(r.Context(), mux.Vars(r)["id"], req.Tags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

// DeletePhoto removes a photo and its renditions.
func (h *Handlers) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckDuplicate reports whether content with the given SHA-256 is stored.
func (h *Handlers) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req DuplicateCheckRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4<<10)).Decode(&req); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}

	id, err := h.lib.CheckDuplicate(r.Context(), req.FileHash)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := DuplicateCheckResponse{Message: "No duplicate found"}
	if id != "" {
		resp = DuplicateCheckResponse{
			IsDuplicate:     true,
			ExistingPhotoID: id,
			Message:         "A photo with identical content already exists",
		}
	}
	writeJSONStatus(w, http.StatusOK, resp)
}

// pageOptions reads page, size, sortBy and sortDir.
func pageOptions(r *http.Request) (photo.SearchOptions, error) {
	q := r.URL.Query()
	opts := photo.SearchOptions{
		SortBy:    photo.SortField(q.Get("sortBy")),
		SortOrder: photo.SortOrder(q.Get("sortDir")),
	}

	var err error
	if opts.Page, err = optionalInt(q.Get("page"), "page"); err != nil {
		return opts, err
	}
	if opts.PageSize, err = optionalInt(q.Get("size"), "size"); err != nil {
		return opts, err
	}
	if opts.Page < 0 || q.Has("size") && opts.PageSize < 1 {
		return opts, photo.Invalid(photo.ReasonInvalidArgument, "page must be >= 0 and size >= 1")
	}
	return opts, nil
}

func optionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, photo.Invalid(photo.ReasonInvalidArgument, "%s must be an integer", name)
	}
	return n, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain end date
// covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, photo.Invalid(photo.ReasonInvalidArgument, "invalid date %q, use YYYY-MM-DD or RFC 3339", raw)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}
