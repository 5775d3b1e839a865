package rembes

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one object returned by Vault.List.
type ObjectInfo struct {
	Name      string // relative to the listed prefix
	CreatedAt time.Time
	Size      int64
}

// Vault is the object store holding every record blob. Objects are
// addressed by slash-separated paths; there is no rename and no query
// language beyond listing one prefix.
type Vault interface {
	// List returns the objects directly under prefix, in no particular order.
	// An empty slice means the prefix holds nothing; an error means the store
	// could not be asked.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Put stores size bytes read from r at path, replacing any existing object.
	Put(ctx context.Context, path string, r io.Reader, size int64) error

	// Get writes the object at path to w.
	// Returns ErrObjectNotFound if nothing is stored there.
	Get(ctx context.Context, path string, w io.Writer) error

	// Delete removes the object at path. Deleting an absent object succeeds
	// with existed == false.
	Delete(ctx context.Context, path string) (existed bool, err error)

	// ValidateSetup verifies that the store is reachable and usable.
	ValidateSetup(ctx context.Context) error
}
