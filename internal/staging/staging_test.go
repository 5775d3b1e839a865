package staging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"rembes-go/internal/config"
	"rembes-go/internal/rembes"
)

// newAreas returns one staging area per backend so every test runs against both.
func newAreas(t *testing.T, maxSize int64) map[string]rembes.StagingArea {
	t.Helper()
	fsArea, err := NewFileSystemStagingArea(rembes.UUIDGenerator{}, t.TempDir(), maxSize)
	if err != nil {
		t.Fatalf("NewFileSystemStagingArea() error = %v", err)
	}
	return map[string]rembes.StagingArea{
		"memory":     NewMemoryStagingArea(rembes.UUIDGenerator{}, maxSize),
		"filesystem": fsArea,
	}
}

func readAll(t *testing.T, sa rembes.StagingArea, blob *rembes.StagedBlob) string {
	t.Helper()
	rc, err := sa.Open(blob)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(data)
}

func TestStagingArea_Stage(t *testing.T) {
	for name, sa := range newAreas(t, 1024) {
		t.Run(name, func(t *testing.T) {
			blob, err := sa.Stage(strings.NewReader("receipt bytes"))
			if err != nil {
				t.Fatalf("Stage() error = %v", err)
			}

			sum := sha256.Sum256([]byte("receipt bytes"))
			if blob.Checksum != hex.EncodeToString(sum[:]) {
				t.Errorf("Checksum = %q, want %q", blob.Checksum, hex.EncodeToString(sum[:]))
			}
			if blob.Size != 13 {
				t.Errorf("Size = %d, want 13", blob.Size)
			}
			if got := readAll(t, sa, blob); got != "receipt bytes" {
				t.Errorf("content = %q, want %q", got, "receipt bytes")
			}

			size, err := sa.Size()
			if err != nil {
				t.Fatalf("Size() error = %v", err)
			}
			if size != 13 {
				t.Errorf("Size() = %d, want 13", size)
			}
		})
	}
}

func TestStagingArea_DistinctIDs(t *testing.T) {
	for name, sa := range newAreas(t, 1024) {
		t.Run(name, func(t *testing.T) {
			a, err := sa.Stage(strings.NewReader("same"))
			if err != nil {
				t.Fatalf("Stage() error = %v", err)
			}
			b, err := sa.Stage(strings.NewReader("same"))
			if err != nil {
				t.Fatalf("Stage() error = %v", err)
			}
			if a.ID == b.ID {
				t.Fatalf("IDs not distinct: %q", a.ID)
			}

			// Releasing one copy must not affect the other.
			if err := sa.Release(a); err != nil {
				t.Fatalf("Release() error = %v", err)
			}
			if got := readAll(t, sa, b); got != "same" {
				t.Errorf("content = %q, want %q", got, "same")
			}
		})
	}
}

func TestStagingArea_Release(t *testing.T) {
	for name, sa := range newAreas(t, 1024) {
		t.Run(name, func(t *testing.T) {
			blob, err := sa.Stage(strings.NewReader("hello"))
			if err != nil {
				t.Fatalf("Stage() error = %v", err)
			}
			if err := sa.Release(blob); err != nil {
				t.Fatalf("Release() error = %v", err)
			}
			if err := sa.Release(blob); err != nil {
				t.Errorf("second Release() error = %v, want nil", err)
			}
			if _, err := sa.Open(blob); err == nil {
				t.Error("Open() after Release expected error")
			}
			size, _ := sa.Size()
			if size != 0 {
				t.Errorf("Size() = %d, want 0", size)
			}
		})
	}
}

func TestStagingArea_MaxSize(t *testing.T) {
	for name, sa := range newAreas(t, 8) {
		t.Run(name, func(t *testing.T) {
			if _, err := sa.Stage(strings.NewReader("12345")); err != nil {
				t.Fatalf("Stage() error = %v", err)
			}
			if _, err := sa.Stage(strings.NewReader("67890")); err == nil {
				t.Fatal("Stage() expected error when exceeding max size")
			}
			size, _ := sa.Size()
			if size != 5 {
				t.Errorf("Size() = %d, want 5 (rejected blob removed)", size)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestStagingArea_ReadError(t *testing.T) {
	for name, sa := range newAreas(t, 1024) {
		t.Run(name, func(t *testing.T) {
			_, err := sa.Stage(io.MultiReader(bytes.NewReader([]byte("partial")), failingReader{}))
			if err == nil {
				t.Fatal("Stage() expected error")
			}
			if !strings.Contains(err.Error(), "connection reset") {
				t.Errorf("error = %v, want it to mention the read failure", err)
			}
			size, _ := sa.Size()
			if size != 0 {
				t.Errorf("Size() = %d, want 0 (partial blob removed)", size)
			}
		})
	}
}

func TestFileSystemStagingArea_Location(t *testing.T) {
	dir := t.TempDir()
	sa, err := NewFileSystemStagingArea(rembes.UUIDGenerator{}, dir, 1024)
	if err != nil {
		t.Fatalf("NewFileSystemStagingArea() error = %v", err)
	}
	blob, err := sa.Stage(strings.NewReader("keep me"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	loc := sa.Location(blob)
	if !strings.HasPrefix(loc, dir) {
		t.Errorf("Location() = %q, want path under %q", loc, dir)
	}
	data, err := os.ReadFile(loc)
	if err != nil {
		t.Fatalf("reading Location(): %v", err)
	}
	if string(data) != "keep me" {
		t.Errorf("file content = %q, want %q", data, "keep me")
	}
}

func TestNewStagingAreaFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StagingConfig
		wantErr bool
	}{
		{"memory", config.StagingConfig{Type: "memory"}, false},
		{"filesystem", config.StagingConfig{Type: "filesystem", StagingDir: t.TempDir()}, false},
		{"filesystem without dir", config.StagingConfig{Type: "filesystem"}, true},
		{"unknown", config.StagingConfig{Type: "tape"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStagingAreaFromConfig(tt.cfg, rembes.UUIDGenerator{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStagingAreaFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewStagingAreaFromConfig() returned nil")
			}
		})
	}
}
