package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"
)

// Fingerprint returns the SHA-256 hex digest of a file's contents.
// Returns "" for a missing or unreadable file; the sync coordinator
// treats an empty fingerprint as "no local data".
func Fingerprint(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintBytes returns the SHA-256 hex digest of a byte slice.
func FingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ModifiedAt returns a file's modification time in RFC 3339 form,
// or "" on any failure.
func ModifiedAt(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return info.ModTime().Format(time.RFC3339Nano)
}
