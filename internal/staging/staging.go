package staging

import (
	"fmt"
	"io"
	"sync"

	"rembes-go/internal/rembes"
)

// stagingArea implements rembes.StagingArea using a pluggable stagingStore
// for the storage mechanics. All shared logic lives here.
type stagingArea struct {
	store   stagingStore
	ids     rembes.IDGenerator
	maxSize int64
	mu      sync.Mutex
}

var _ rembes.StagingArea = (*stagingArea)(nil)

// Stage copies r into the staging area under a fresh ID.
func (s *stagingArea) Stage(r io.Reader) (*rembes.StagedBlob, error) {
	id := s.ids.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	checksum, size, err := s.store.Write(id, r)
	if err != nil {
		return nil, fmt.Errorf("storing content: %w", err)
	}

	total, err := s.store.TotalSize()
	if err != nil {
		s.store.Remove(id)
		return nil, fmt.Errorf("getting current size: %w", err)
	}
	if total > s.maxSize {
		s.store.Remove(id)
		return nil, fmt.Errorf("staging area full: would exceed max size of %d bytes", s.maxSize)
	}

	return &rembes.StagedBlob{ID: id, Checksum: checksum, Size: size}, nil
}

// Open returns a reader over a staged blob.
func (s *stagingArea) Open(blob *rembes.StagedBlob) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, err := s.store.Open(blob.ID)
	if err != nil {
		return nil, fmt.Errorf("staged blob %s: %w", blob.ID, err)
	}
	return rc, nil
}

// Release discards a staged blob.
func (s *stagingArea) Release(blob *rembes.StagedBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Remove(blob.ID)
}

// Location describes where a staged blob is kept.
func (s *stagingArea) Location(blob *rembes.StagedBlob) string {
	return s.store.Location(blob.ID)
}

// Size returns the total size of staged content in bytes.
func (s *stagingArea) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.TotalSize()
}
