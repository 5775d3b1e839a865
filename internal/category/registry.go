// Package category manages the set of expense categories. Each category is
// both a storage namespace and a chat command that starts the add flow.
package category

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// DefaultNames seeds a registry file that does not exist yet.
var DefaultNames = []string{"bensin", "grab", "lembur", "mrt", "parkir"}

// reserved names are taken by built-in commands.
var reserved = map[string]bool{
	"start": true, "help": true, "status": true, "summary": true, "list": true,
	"export": true, "delete": true, "hapus": true, "edit": true, "cancel": true,
	"batal": true, "addcategory": true, "removecategory": true,
}

var (
	ErrInvalidName = errors.New("category names may contain only letters a-z")
	ErrReserved    = errors.New("category name is a built-in command")
	ErrExists      = errors.New("category already exists")
	ErrNotFound    = errors.New("category not found")
)

// fileFormat is the on-disk TOML layout.
type fileFormat struct {
	Categories []string `toml:"categories"`
}

// Registry is the process-wide, ordered set of category names, persisted
// to a TOML file. Safe for concurrent use.
type Registry struct {
	path  string
	mu    sync.RWMutex
	names []string
}

// Normalize lower-cases and trims name and checks that it is usable.
func Normalize(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", ErrInvalidName
	}
	for _, r := range n {
		if r < 'a' || r > 'z' {
			return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
		}
	}
	if reserved[n] {
		return "", fmt.Errorf("%q: %w", n, ErrReserved)
	}
	return n, nil
}

// Load reads the registry at path, creating it with DefaultNames when the
// file does not exist.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}

	var f fileFormat
	_, err := toml.DecodeFile(path, &f)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := r.set(DefaultNames); err != nil {
			return nil, err
		}
		if err := r.save(); err != nil {
			return nil, fmt.Errorf("writing default categories: %w", err)
		}
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("reading categories from %s: %w", path, err)
	}

	if err := r.set(f.Categories); err != nil {
		return nil, fmt.Errorf("categories in %s: %w", path, err)
	}
	return r, nil
}

// NewMemoryRegistry creates a registry that is never persisted.
func NewMemoryRegistry(names ...string) (*Registry, error) {
	r := &Registry{}
	if err := r.set(names); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) set(names []string) error {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		n, err := Normalize(name)
		if err != nil {
			return err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	r.names = out
	return nil
}

// Path returns the backing file, or "" for an in-memory registry.
func (r *Registry) Path() string {
	return r.path
}

// Names returns the categories in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Len returns the number of categories.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Contains reports whether name (after normalization) is registered.
func (r *Registry) Contains(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := sort.SearchStrings(r.names, n)
	return i < len(r.names) && r.names[i] == n
}

// Add registers a new category and persists the registry. Returns the
// normalized name.
func (r *Registry) Add(name string) (string, error) {
	n, err := Normalize(name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.SearchStrings(r.names, n)
	if i < len(r.names) && r.names[i] == n {
		return "", fmt.Errorf("%q: %w", n, ErrExists)
	}

	prev := r.names
	next := make([]string, 0, len(prev)+1)
	next = append(next, prev[:i]...)
	next = append(next, n)
	next = append(next, prev[i:]...)
	r.names = next

	if err := r.save(); err != nil {
		r.names = prev
		return "", err
	}
	return n, nil
}

// Remove unregisters a category and persists the registry. Records stored
// under the category are left alone.
func (r *Registry) Remove(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))

	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.SearchStrings(r.names, n)
	if i >= len(r.names) || r.names[i] != n {
		return "", fmt.Errorf("%q: %w", n, ErrNotFound)
	}

	prev := r.names
	next := make([]string, 0, len(prev)-1)
	next = append(next, prev[:i]...)
	next = append(next, prev[i+1:]...)
	r.names = next

	if err := r.save(); err != nil {
		r.names = prev
		return "", err
	}
	return n, nil
}

// save writes the registry atomically. Callers hold r.mu (or own r exclusively).
func (r *Registry) save() error {
	if r.path == "" {
		return nil
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create categories directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".categories-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := toml.NewEncoder(tmp).Encode(fileFormat{Categories: r.names}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}
	return nil
}
