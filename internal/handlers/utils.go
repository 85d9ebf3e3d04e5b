package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"photo-vault/internal/logging"
	"photo-vault/internal/photo"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	// ExistingPhotoID is set on duplicate uploads.
	ExistingPhotoID string `json:"existingPhotoId,omitempty"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, v)
}

// statusFor maps a library error to an HTTP status.
func statusFor(err error) int {
	var verr *photo.ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr):
		if verr.Reason == photo.ReasonTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case errors.Is(err, photo.ErrNotFound):
		return http.StatusNotFound
	case photo.IsProcessing(err):
		return http.StatusUnprocessableEntity
	}
	if _, ok := photo.IsDuplicate(err); ok {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err with the status it maps to. Server errors are
// logged and their details kept out of the response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{
		Error:     http.StatusText(status),
		Message:   err.Error(),
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	}

	if id, ok := photo.IsDuplicate(err); ok {
		resp.ExistingPhotoID = id
		resp.Message = "A photo with identical content already exists"
	}
	if status == http.StatusInternalServerError {
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
		if photo.IsStorage(err) {
			resp.Message = "Storage is unavailable, try again later"
		} else {
			resp.Message = "Internal server error"
		}
	}

	writeJSONStatus(w, status, resp)
}

// badRequest writes a 400 for malformed input that never reached the library.
func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	writeError(w, r, photo.Invalid(photo.ReasonInvalidArgument, format, args...))
}
