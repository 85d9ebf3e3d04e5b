// Package streaming sends large response bodies with per-chunk write
// deadlines, so a client that stops reading releases its connection after
// WriteTimeout instead of holding it for as long as the server runs. The
// server itself runs without a global write timeout because originals can
// be large.
//
// Deadlines are set through http.ResponseController, so every wrapping
// ResponseWriter in the middleware chain must implement Unwrap.
package streaming
