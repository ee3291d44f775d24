package blobgate

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Backend identifies which content adapter holds a blob's bytes.
type Backend string

const (
	BackendFS  Backend = "fs"
	BackendS3  Backend = "s3"
	BackendFTP Backend = "ftp"
	BackendDB  Backend = "db"
)

func (b Backend) IsValid() bool {
	switch b {
	case BackendFS, BackendS3, BackendFTP, BackendDB:
		return true
	default:
		return false
	}
}

func ParseBackend(s string) (Backend, error) {
	backend := Backend(s)
	if !backend.IsValid() {
		return "", fmt.Errorf("invalid backend: %s (valid backends: fs, s3, ftp, db)", s)
	}
	return backend, nil
}

// BlobMetadata is the authoritative record of a blob's existence. A row exists
// if and only if the content bytes are durably retrievable from the named
// backend; any longer-lived divergence is a bug.
type BlobMetadata struct {
	ID        string    `json:"id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Backend   Backend   `json:"backend"`
	Checksum  string    `json:"checksum"`
}

// Blob is the service-level view of a stored blob returned to callers.
type Blob struct {
	ID        string
	Data      []byte
	Size      int64
	CreatedAt time.Time
}

// SaveResult reports what a storage adapter wrote.
type SaveResult struct {
	Size      int64
	CreatedAt time.Time
}

// Object is a blob as read back from a storage adapter. CreatedAt carries the
// backend's own notion of creation time (mtime, Last-Modified, MDTM, or a
// server column); the service treats the metadata repository's timestamp as
// authoritative instead.
type Object struct {
	Data      []byte
	Size      int64
	CreatedAt time.Time
}

// MaxIDBytes bounds caller-supplied blob identifiers.
const MaxIDBytes = 512

// ValidateID checks that a blob identifier is non-empty, at most MaxIDBytes
// bytes, and valid UTF-8. Slashes and unicode are deliberately permitted; the
// derived storage key keeps arbitrary ids safe for every backend.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("validate id: %w: id cannot be empty", ErrBadRequest)
	}
	if len(id) > MaxIDBytes {
		return fmt.Errorf("validate id: %w: id exceeds %d bytes", ErrBadRequest, MaxIDBytes)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("validate id: %w: id is not valid UTF-8", ErrBadRequest)
	}
	return nil
}
