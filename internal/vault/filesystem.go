package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"rembes-go/internal/rembes"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// Object paths map directly onto the directory tree under root:
//
//	<root>/
//	  <category>/
//	    <YYYY-MM>/
//	      <key>    (receipt blob)
//
// The file's modification time stands in for the object's creation time.
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}

	return &FileSystemVault{
		name: name,
		root: root,
	}, nil
}

func (v *FileSystemVault) localPath(path string) string {
	return filepath.Join(v.root, filepath.FromSlash(path))
}

// List returns the regular files directly under prefix.
// A prefix that does not exist as a directory yields an empty listing.
func (v *FileSystemVault) List(_ context.Context, prefix string) ([]rembes.ObjectInfo, error) {
	dir := v.localPath(strings.TrimSuffix(prefix, "/"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []rembes.ObjectInfo{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	infos := make([]rembes.ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		infos = append(infos, rembes.ObjectInfo{
			Name:      e.Name(),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}
	return infos, nil
}

// Put stores an object, replacing any existing one at path.
func (v *FileSystemVault) Put(_ context.Context, path string, r io.Reader, size int64) error {
	if err := checkPath(path); err != nil {
		return err
	}
	dest := v.localPath(path)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return v.writeFile(dest, r, size)
}

// Get writes the object at path to w.
func (v *FileSystemVault) Get(_ context.Context, path string, w io.Writer) error {
	if err := checkPath(path); err != nil {
		return err
	}
	f, err := os.Open(v.localPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, rembes.ErrObjectNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Delete removes the object at path.
func (v *FileSystemVault) Delete(_ context.Context, path string) (bool, error) {
	if err := checkPath(path); err != nil {
		return false, err
	}
	if err := os.Remove(v.localPath(path)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove file: %w", err)
	}
	return true, nil
}

// ValidateSetup verifies that the vault root is an accessible directory.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}
	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemVault implements rembes.Vault interface
var _ rembes.Vault = (*FileSystemVault)(nil)
