// Package model provides core data types for tally.
package model

import "errors"

// Error types for tally operations
var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrEmptyTempFile     = errors.New("temporary file missing or empty")
	ErrRemoteUnavailable = errors.New("remote unavailable")
	ErrNotSerializable   = errors.New("value not serializable")
)
