package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"rembes-go/internal/rembes"
)

// GCSVault stores objects in a Google Cloud Storage bucket.
// It uses Application Default Credentials unless a credentials file is given.
type GCSVault struct {
	name   string
	bucket string
	prefix string
	client *storage.Client
}

// NewGCSVault creates a GCS vault. Call Close when done.
func NewGCSVault(ctx context.Context, name, bucket, prefix, credentialsFile string) (*GCSVault, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs vault requires gcs_bucket to be set")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSVault{
		name:   name,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
	}, nil
}

// Close releases the underlying client.
func (v *GCSVault) Close() error {
	return v.client.Close()
}

func (v *GCSVault) object(p string) *storage.ObjectHandle {
	return v.client.Bucket(v.bucket).Object(joinKey(v.prefix, p))
}

// List returns the objects directly under prefix.
func (v *GCSVault) List(ctx context.Context, prefix string) ([]rembes.ObjectInfo, error) {
	full := joinKey(v.prefix, prefix)
	if prefix != "" && !strings.HasSuffix(full, "/") {
		full += "/"
	}

	it := v.client.Bucket(v.bucket).Objects(ctx, &storage.Query{Prefix: full, Delimiter: "/"})
	infos := []rembes.ObjectInfo{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing gs://%s/%s: %w", v.bucket, full, err)
		}
		if attrs.Prefix != "" {
			continue
		}
		name, ok := directChild(full, attrs.Name)
		if !ok {
			continue
		}
		infos = append(infos, rembes.ObjectInfo{
			Name:      name,
			CreatedAt: attrs.Created,
			Size:      attrs.Size,
		})
	}
	return infos, nil
}

// Put uploads an object, replacing any existing one.
func (v *GCSVault) Put(ctx context.Context, p string, r io.Reader, size int64) error {
	if err := checkPath(p); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := v.object(p).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	written, err := io.Copy(w, r)
	if err != nil {
		// Cancelling the context before Close aborts the upload.
		cancel()
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	if written != size {
		cancel()
		_ = w.Close()
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// Get writes the object at p to w.
func (v *GCSVault) Get(ctx context.Context, p string, w io.Writer) error {
	r, err := v.object(p).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("%s: %w", p, rembes.ErrObjectNotFound)
		}
		return fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("read GCS object: %w", err)
	}
	return nil
}

// Delete removes the object at p.
func (v *GCSVault) Delete(ctx context.Context, p string) (bool, error) {
	if err := v.object(p).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete GCS object: %w", err)
	}
	return true, nil
}

// ValidateSetup verifies that the bucket exists and is reachable.
func (v *GCSVault) ValidateSetup(ctx context.Context) error {
	if _, err := v.client.Bucket(v.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("gcs bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// Compile-time check that GCSVault implements rembes.Vault interface
var _ rembes.Vault = (*GCSVault)(nil)
