package rembes

import "io"

// StagedBlob is a local temporary copy of a blob on its way to or from the vault.
type StagedBlob struct {
	ID       string
	Checksum string // SHA-256, hex
	Size     int64
}

// StagingArea holds temporary local copies of blobs: uploads before they
// are sent (so their size is known) and downloads during an edit.
// Every Stage must be paired with a Release.
type StagingArea interface {
	// Stage copies r into the staging area.
	Stage(r io.Reader) (*StagedBlob, error)

	// Open returns a reader over a staged blob.
	Open(blob *StagedBlob) (io.ReadCloser, error)

	// Release discards a staged blob. Releasing twice is a no-op.
	Release(blob *StagedBlob) error

	// Location describes where a staged blob lives, for recovery messages.
	Location(blob *StagedBlob) string

	// Size returns the total bytes currently staged.
	Size() (int64, error)
}
