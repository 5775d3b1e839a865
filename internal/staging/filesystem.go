package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"rembes-go/internal/rembes"
)

// fileSystemStore keeps staged blobs as files in a directory:
//
//	<staging_dir>/
//	  files/
//	    <blob_id>    (staged content)
//
// Files left behind by a failed edit survive restarts and can be
// re-uploaded with `rembes recover`.
type fileSystemStore struct {
	filesDir string
}

// NewFileSystemStagingArea creates a new filesystem-based staging area.
// maxSize is the maximum total size in bytes; must be positive.
func NewFileSystemStagingArea(ids rembes.IDGenerator, stagingDir string, maxSize int64) (rembes.StagingArea, error) {
	filesDir := filepath.Join(stagingDir, "files")
	if err := os.MkdirAll(filesDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &stagingArea{
		store:   &fileSystemStore{filesDir: filesDir},
		ids:     ids,
		maxSize: maxSize,
	}, nil
}

func (f *fileSystemStore) path(id string) string {
	return filepath.Join(f.filesDir, id)
}

func (f *fileSystemStore) Write(id string, r io.Reader) (string, int64, error) {
	dest := f.path(id)
	file, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", 0, fmt.Errorf("creating staged file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			os.Remove(dest)
		}
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, h), r)
	if err != nil {
		file.Close()
		return "", 0, fmt.Errorf("writing staged file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", 0, fmt.Errorf("closing staged file: %w", err)
	}

	success = true
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func (f *fileSystemStore) Open(id string) (io.ReadCloser, error) {
	file, err := os.Open(f.path(id))
	if err != nil {
		return nil, fmt.Errorf("opening staged file: %w", err)
	}
	return file, nil
}

func (f *fileSystemStore) Remove(id string) error {
	if err := os.Remove(f.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing staged file: %w", err)
	}
	return nil
}

func (f *fileSystemStore) Location(id string) string {
	return f.path(id)
}

func (f *fileSystemStore) TotalSize() (int64, error) {
	entries, err := os.ReadDir(f.filesDir)
	if err != nil {
		return 0, fmt.Errorf("reading staging directory: %w", err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("stat staged file: %w", err)
		}
		total += info.Size()
	}
	return total, nil
}
