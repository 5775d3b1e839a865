package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"rembes-go/internal/rembes"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps every object in a map, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name    string
	clock   rembes.Clock
	objects map[string]memoryObject // path -> object
	mu      sync.RWMutex
}

type memoryObject struct {
	data      []byte
	createdAt time.Time
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return NewMemoryVaultWithClock(name, rembes.RealClock{})
}

// NewMemoryVaultWithClock creates an in-memory vault that stamps objects
// with clock's time, so listing order is predictable in tests.
func NewMemoryVaultWithClock(name string, clock rembes.Clock) *MemoryVault {
	return &MemoryVault{
		name:    name,
		clock:   clock,
		objects: make(map[string]memoryObject),
	}
}

// List returns the objects directly under prefix.
func (m *MemoryVault) List(_ context.Context, prefix string) ([]rembes.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := []rembes.ObjectInfo{}
	for p, obj := range m.objects {
		name, ok := directChild(prefix, p)
		if !ok {
			continue
		}
		infos = append(infos, rembes.ObjectInfo{
			Name:      name,
			CreatedAt: obj.createdAt,
			Size:      int64(len(obj.data)),
		})
	}
	return infos, nil
}

// Put stores an object, replacing any existing one at path.
func (m *MemoryVault) Put(_ context.Context, path string, r io.Reader, size int64) error {
	if err := checkPath(path); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[path] = memoryObject{data: data, createdAt: m.clock.Now()}
	return nil
}

// Get writes the object at path to w.
func (m *MemoryVault) Get(_ context.Context, path string, w io.Writer) error {
	m.mu.RLock()
	obj, ok := m.objects[path]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", path, rembes.ErrObjectNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(obj.data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Delete removes the object at path.
func (m *MemoryVault) Delete(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[path]
	delete(m.objects, path)
	return ok, nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Compile-time check that MemoryVault implements rembes.Vault interface
var _ rembes.Vault = (*MemoryVault)(nil)
