package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"photo-vault/internal/logging"
)

// Recover turns a panicking handler into a 500 reply and logs the stack.
// A panic after the headers went out can only be logged.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := newResponseWriter(w)
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			logging.Error("panic serving %s %s (request %s): %v\n%s",
				sanitizeLogField(r.Method), sanitizeLogField(r.URL.Path),
				sanitizeLogField(r.Header.Get(RequestIDHeader)), p, debug.Stack())

			if rw.wroteHeader {
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(rw).Encode(map[string]interface{}{
				"error":     http.StatusText(http.StatusInternalServerError),
				"message":   "Internal server error",
				"status":    http.StatusInternalServerError,
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"path":      r.URL.Path,
			})
		}()
		next.ServeHTTP(rw, r)
	})
}
