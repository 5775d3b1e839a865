package staging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"rembes-go/internal/rembes"
)

// memoryStore keeps staged blobs in a map. Useful for tests and for
// deployments without a writable disk; a lost record staged here does
// not survive a restart.
type memoryStore struct {
	blobs map[string][]byte
}

// NewMemoryStagingArea creates a new in-memory staging area.
// maxSize is the maximum total size in bytes; must be positive.
func NewMemoryStagingArea(ids rembes.IDGenerator, maxSize int64) rembes.StagingArea {
	return &stagingArea{
		store:   &memoryStore{blobs: make(map[string][]byte)},
		ids:     ids,
		maxSize: maxSize,
	}
}

func (m *memoryStore) Write(id string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, fmt.Errorf("reading content: %w", err)
	}
	sum := sha256.Sum256(data)
	m.blobs[id] = data
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}

func (m *memoryStore) Open(id string) (io.ReadCloser, error) {
	data, ok := m.blobs[id]
	if !ok {
		return nil, fmt.Errorf("not staged")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Remove(id string) error {
	delete(m.blobs, id)
	return nil
}

func (m *memoryStore) Location(id string) string {
	return "memory:" + id
}

func (m *memoryStore) TotalSize() (int64, error) {
	var total int64
	for _, data := range m.blobs {
		total += int64(len(data))
	}
	return total, nil
}
