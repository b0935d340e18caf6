// Package hashing provides content hashes for chunk dedup and stable book IDs
// for watched files.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const pathPrefix = "book:"

// Content returns the hex SHA-256 of the trimmed UTF-8 text. It is the sole
// dedup key within a book: identical trimmed text always hashes identically.
func Content(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// PathID returns a stable book ID for a file path. The same path always
// yields the same ID, so re-ingesting a watched file updates the same book.
func PathID(absolutePath string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return pathPrefix + hex.EncodeToString(sum[:])
}
