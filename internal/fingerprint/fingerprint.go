// Package fingerprint computes the content digest used for duplicate
// detection. A fingerprint is the lowercase hex SHA-256 of the exact bytes,
// independent of filename, timestamps, or upload order.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Length is the number of hex characters in a fingerprint.
const Length = sha256.Size * 2

// Sum returns the fingerprint of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SumReader streams r through the digest. Read errors are returned wrapped.
func SumReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to read content for hashing: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Valid reports whether s has the shape of a fingerprint.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Canonical lowercases a client supplied fingerprint so it can be compared
// with stored values.
func Canonical(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'F' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
