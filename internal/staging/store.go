package staging

import "io"

// stagingStore abstracts the storage mechanics for a staging area.
// Concurrency is managed by the caller (stagingArea.mu), so stores
// do not need to be safe for concurrent use.
type stagingStore interface {
	// Write reads r to EOF and stores it under id. Returns the SHA-256
	// checksum (hex) and the number of bytes written. On error nothing
	// is left behind.
	Write(id string, r io.Reader) (checksum string, size int64, err error)

	// Open returns a reader for the blob stored under id.
	Open(id string) (io.ReadCloser, error)

	// Remove deletes the blob stored under id. Removing an unknown id is not an error.
	Remove(id string) error

	// Location describes where id is kept.
	Location(id string) string

	// TotalSize returns total bytes of all stored blobs.
	TotalSize() (int64, error)
}
