// Package middleware provides the HTTP middleware chain of the photo-vault
// server: request ids, panic recovery, W3C access logging, Prometheus
// request metrics labelled by route template, and gzip for JSON replies.
package middleware
